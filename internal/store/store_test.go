package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/park285/Cheese-arena/internal/turn"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	s, err := New(fmt.Sprintf("redis://%s/0", mr.Addr()), time.Hour, nil)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func snapshot(id string, at time.Time, moves ...string) turn.Snapshot {
	return turn.Snapshot{ID: id, FEN: "fen-" + id, Phase: "awaiting_move", Turn: "white", Moves: moves, UpdatedAt: at}
}

func TestSaveLoad(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := s.Save(ctx, snapshot("g1", now, "e2e4")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "g1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Moves) != 1 || got.Moves[0] != "e2e4" || !got.UpdatedAt.Equal(now) {
		t.Fatalf("loaded %+v", got)
	}
	if ttl := mr.TTL(sessionKey("g1")); ttl != time.Hour {
		t.Fatalf("ttl = %v", ttl)
	}
	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveRejectsOlderSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	if err := s.Save(ctx, snapshot("g1", now, "e2e4", "e7e5")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, snapshot("g1", now.Add(-time.Second), "e2e4")); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	got, _ := s.Load(ctx, "g1")
	if len(got.Moves) != 2 {
		t.Fatalf("older snapshot overwrote newer one: %v", got.Moves)
	}
}

func TestRecentNewestFirstAndPrunes(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	base := time.Now()
	for i, id := range []string{"a", "b", "c"} {
		if err := s.Save(ctx, snapshot(id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
	mr.Del(sessionKey("b"))

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c" || got[1].ID != "a" {
		t.Fatalf("recent = %+v", got)
	}
	members, _ := mr.ZMembers(indexKey)
	if len(members) != 2 {
		t.Fatalf("index not pruned: %v", members)
	}
}

func TestDelete(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, snapshot("g1", time.Now()))
	if err := s.Delete(ctx, "g1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(sessionKey("g1")) {
		t.Fatalf("session key still present")
	}
	if _, err := s.Load(ctx, "g1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load after delete: %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("http://localhost", time.Hour, nil); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestNewUsesURLCredentials(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	mr.RequireUserAuth("arena", "secret")

	s, err := New(fmt.Sprintf("redis://arena:secret@%s/2", mr.Addr()), time.Hour, nil)
	if err != nil {
		t.Fatalf("New with user: %v", err)
	}
	defer s.Close()
	if opts := s.rdb.Options(); opts.Username != "arena" || opts.DB != 2 {
		t.Fatalf("options = %+v", opts)
	}
	if _, err := New(fmt.Sprintf("redis://:secret@%s/0", mr.Addr()), time.Hour, nil); err == nil {
		t.Fatalf("expected auth failure without the user name")
	}
}
