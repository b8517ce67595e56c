package turn

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/input"
)

const inboxSize = 32

// Loop is the single goroutine that owns a Session. Every operation,
// including agent results, is a closure run in order on that goroutine.
type Loop struct {
	session *Session
	inbox   chan func()
	done    chan struct{}
	logger  *zap.Logger
}

func NewLoop(s *Session, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		session: s,
		inbox:   make(chan func(), inboxSize),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run starts the session and serves the inbox until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	l.session.Start(ctx, l.deliver)
	for {
		select {
		case <-ctx.Done():
			for _, a := range l.session.agents {
				a.Halt()
			}
			l.logger.Debug("turn_loop_stopped", zap.String("session_id", l.session.ID()))
			return ctx.Err()
		case fn := <-l.inbox:
			fn()
		}
	}
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

func (l *Loop) Session() *Session { return l.session }

func (l *Loop) deliver(res agent.Result) {
	select {
	case l.inbox <- func() { l.session.HandleResult(res) }:
	case <-l.done:
	}
}

func (l *Loop) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}
	select {
	case l.inbox <- task:
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) Click(ctx context.Context, p input.Point, buttons input.Button, choose input.PromotionChooser) (input.Outcome, error) {
	var (
		out    input.Outcome
		result error
	)
	if err := l.call(ctx, func() { out, result = l.session.Click(p, buttons, choose) }); err != nil {
		return input.OutcomeIgnored, err
	}
	return out, result
}

func (l *Loop) SubmitMove(ctx context.Context, mv board.Move, choose input.PromotionChooser) error {
	var result error
	if err := l.call(ctx, func() { result = l.session.SubmitMove(mv, choose) }); err != nil {
		return err
	}
	return result
}

func (l *Loop) Undo(ctx context.Context) (bool, error) {
	var ok bool
	err := l.call(ctx, func() { ok = l.session.Undo() })
	return ok, err
}

func (l *Loop) SetEnabled(ctx context.Context, c board.Color, on bool) error {
	return l.call(ctx, func() { l.session.SetEnabled(c, on) })
}

func (l *Loop) Resign(ctx context.Context, c board.Color) error {
	var result error
	if err := l.call(ctx, func() { result = l.session.Resign(c) }); err != nil {
		return err
	}
	return result
}

func (l *Loop) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := l.call(ctx, func() { snap = l.session.Snapshot() })
	return snap, err
}
