package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/turn"
)

const (
	DefaultTTL = 24 * time.Hour
	indexKey   = "arena:index"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrStale is returned when a newer snapshot of the session is already stored.
	ErrStale = errors.New("stored snapshot is newer")
)

// Store keeps session snapshots in Redis so a game can be resumed.
type Store struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(redisURL string, ttl time.Duration, logger *zap.Logger) (*Store, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(redisURL))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{rdb: rdb, ttl: ttl, logger: logger}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

// Save writes snap unless a newer snapshot of the same session is stored.
func (s *Store) Save(ctx context.Context, snap turn.Snapshot) error {
	if strings.TrimSpace(snap.ID) == "" {
		return errors.New("snapshot id required")
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	key := sessionKey(snap.ID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var prev turn.Snapshot
			if jerr := json.Unmarshal(cur, &prev); jerr == nil && prev.UpdatedAt.After(snap.UpdatedAt) {
				return ErrStale
			}
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, raw, s.ttl)
			p.ZAdd(ctx, indexKey, redis.Z{Score: float64(snap.UpdatedAt.UnixMilli()), Member: snap.ID})
			return nil
		})
		return err
	}, key)
	if err != nil {
		if !errors.Is(err, ErrStale) {
			s.logger.Warn("session_save_failed", zap.String("session_id", snap.ID), zap.Error(err))
		}
		return err
	}
	return nil
}

func (s *Store) Load(ctx context.Context, id string) (turn.Snapshot, error) {
	raw, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return turn.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return turn.Snapshot{}, err
	}
	var snap turn.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return turn.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	return snap, nil
}

// Recent returns up to n snapshots, newest first. Index entries whose
// snapshot expired are pruned.
func (s *Store) Recent(ctx context.Context, n int) ([]turn.Snapshot, error) {
	if n <= 0 {
		return nil, nil
	}
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]turn.Snapshot, 0, len(vals))
	var expired []any
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			expired = append(expired, ids[i])
			continue
		}
		var snap turn.Snapshot
		if err := json.Unmarshal([]byte(str), &snap); err != nil {
			s.logger.Warn("session_decode_failed", zap.String("session_id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, snap)
	}
	if len(expired) > 0 {
		_ = s.rdb.ZRem(ctx, indexKey, expired...).Err()
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(id))
		p.ZRem(ctx, indexKey, id)
		return nil
	})
	return err
}

func sessionKey(id string) string { return "arena:session:" + strings.TrimSpace(id) }
