package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/budget"
)

// decideFunc produces a move for fen given the budget left before the turn.
type decideFunc func(ctx context.Context, fen string, remaining time.Duration) (board.Move, string, error)

var errNotStarted = errors.New("decision cancelled before start")

// runner executes decisions on worker goroutines. Decisions of one agent
// are serialized so budget Start/End pairs never interleave.
type runner struct {
	tracker *budget.Tracker
	logger  *zap.Logger

	serial sync.Mutex

	mu       sync.Mutex
	inflight map[uint64]context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

func newRunner(tracker *budget.Tracker, logger *zap.Logger) *runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &runner{
		tracker:  tracker,
		logger:   logger,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

func (r *runner) launch(ctx context.Context, color board.Color, req Request, decide decideFunc) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	turnCtx, cancel := context.WithCancel(ctx)
	r.inflight[req.Token] = cancel
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		defer r.forget(req.Token)

		mv, raw, elapsed, err := r.timed(turnCtx, req.FEN, decide)
		if errors.Is(err, errNotStarted) {
			return
		}

		res := Result{
			Token:     req.Token,
			Color:     color,
			Move:      mv,
			Raw:       raw,
			Err:       err,
			Elapsed:   elapsed,
			Remaining: r.tracker.Remaining(),
			Exhausted: r.tracker.Exhausted(),
		}
		if err != nil {
			r.logger.Debug("agent_decide_failed",
				zap.Uint64("token", req.Token),
				zap.Duration("elapsed", elapsed),
				zap.Error(err))
		}
		if req.Deliver != nil {
			req.Deliver(res)
		}
	}()
	return true
}

// timed runs one decision under the serial lock, charging its wall time
// to the budget.
func (r *runner) timed(ctx context.Context, fen string, decide decideFunc) (board.Move, string, time.Duration, error) {
	r.serial.Lock()
	defer r.serial.Unlock()
	if ctx.Err() != nil {
		return board.Move{}, "", 0, errNotStarted
	}
	remaining := r.tracker.Remaining()
	r.tracker.StartTurn()
	mv, raw, err := decide(ctx, fen, remaining)
	return mv, raw, r.tracker.EndTurn(), err
}

func (r *runner) forget(token uint64) {
	r.mu.Lock()
	if cancel, ok := r.inflight[token]; ok {
		cancel()
		delete(r.inflight, token)
	}
	r.mu.Unlock()
}

// halt cancels every in-flight decision.
func (r *runner) halt() {
	r.mu.Lock()
	for token, cancel := range r.inflight {
		cancel()
		delete(r.inflight, token)
	}
	r.mu.Unlock()
}

func (r *runner) close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.halt()
	r.wg.Wait()
}
