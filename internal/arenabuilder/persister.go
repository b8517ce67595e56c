package arenabuilder

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/results"
	"github.com/park285/Cheese-arena/internal/store"
	"github.com/park285/Cheese-arena/internal/turn"
)

const persistQueue = 64

// persister saves a snapshot after every event and archives finished games.
// It runs on its own goroutine and reads state back through the loop.
type persister struct {
	store   *store.Store
	results *results.Repository
	loop    *turn.Loop
	logger  *zap.Logger

	queue   chan turn.Event
	done    chan struct{}
	started time.Time
}

func newPersister(st *store.Store, repo *results.Repository, logger *zap.Logger) *persister {
	return &persister{
		store:   st,
		results: repo,
		logger:  logger,
		queue:   make(chan turn.Event, persistQueue),
		done:    make(chan struct{}),
		started: time.Now(),
	}
}

func (p *persister) enabled() bool { return p.store != nil || p.results != nil }

func (p *persister) Enqueue(ev turn.Event) {
	if !p.enabled() {
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("persist_queue_full", zap.String("session_id", ev.SessionID), zap.String("kind", string(ev.Kind)))
	}
}

func (p *persister) Done() <-chan struct{} { return p.done }

func (p *persister) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.queue:
			p.handle(ctx, ev)
		}
	}
}

func (p *persister) handle(ctx context.Context, ev turn.Event) {
	snap, err := p.loop.Snapshot(ctx)
	if err != nil {
		if !errors.Is(err, turn.ErrLoopStopped) && !errors.Is(err, context.Canceled) {
			p.logger.Warn("persist_snapshot_failed", zap.String("session_id", ev.SessionID), zap.Error(err))
		}
		return
	}
	p.persist(ctx, ev, snap)
}

// flush persists events still queued once the loop has stopped. snap is
// the session's final state, read after the loop goroutine exited.
func (p *persister) flush(ctx context.Context, snap turn.Snapshot) {
	for {
		select {
		case ev := <-p.queue:
			p.persist(ctx, ev, snap)
		default:
			return
		}
	}
}

func (p *persister) persist(ctx context.Context, ev turn.Event, snap turn.Snapshot) {
	if p.store != nil {
		if err := p.store.Save(ctx, snap); err != nil && !errors.Is(err, store.ErrStale) {
			p.logger.Warn("session_save_failed", zap.String("session_id", snap.ID), zap.Error(err))
		}
	}
	if ev.Kind == turn.EventGameOver && ev.Result != nil && p.results != nil {
		rec := RecordFromSnapshot(snap, *ev.Result, p.started, ev.At)
		if err := p.results.SaveResult(ctx, rec); err != nil {
			p.logger.Warn("result_save_failed", zap.String("session_id", snap.ID), zap.Error(err))
			return
		}
		p.logger.Info("result_saved", zap.String("session_id", snap.ID), zap.String("result", string(ev.Result.Outcome)))
	}
}

// RecordFromSnapshot builds an archive record from a session snapshot.
func RecordFromSnapshot(snap turn.Snapshot, res board.Result, started, ended time.Time) results.Record {
	if ended.IsZero() {
		ended = time.Now()
	}
	rec := results.Record{
		GameID:    snap.ID,
		StartFEN:  snap.StartFEN,
		FinalFEN:  snap.FEN,
		Result:    res,
		MovesUCI:  snap.Moves,
		MovesSAN:  snap.SAN,
		StartedAt: started,
		EndedAt:   ended,
	}
	for _, info := range snap.Agents {
		pl := playerFrom(info)
		if info.Color == board.White {
			rec.White = pl
		} else {
			rec.Black = pl
		}
	}
	return rec
}

func playerFrom(info agent.Info) results.Player {
	pl := results.Player{Name: info.Name, Kind: string(info.Kind)}
	if info.Budgeted {
		pl.Used = time.Duration((info.TotalSeconds - info.RemainingSeconds) * float64(time.Second))
	}
	return pl
}
