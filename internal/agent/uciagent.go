package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/budget"
	"github.com/park285/Cheese-arena/internal/uci"
)

const (
	defaultMovesToGo   = 30
	defaultMinMoveTime = 50 * time.Millisecond
)

// UCIConfig describes a long-lived UCI engine.
type UCIConfig struct {
	Path    string
	Args    []string
	Options uci.Options
	// MovesToGo divides the remaining budget into a per-move allotment.
	MovesToGo   int
	MinMoveTime time.Duration
	MaxMoveTime time.Duration
	Depth       int
}

// UCI plays through a UCI engine started on its first turn.
type UCI struct {
	base
	cfg     UCIConfig
	tracker *budget.Tracker
	logger  *zap.Logger
	run     *runner

	mu      sync.Mutex
	session *uci.Session
}

func NewUCI(color board.Color, name string, cfg UCIConfig, tracker *budget.Tracker, logger *zap.Logger) (*UCI, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("uci agent: engine path required")
	}
	if tracker == nil {
		return nil, errors.New("uci agent: budget tracker required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MovesToGo <= 0 {
		cfg.MovesToGo = defaultMovesToGo
	}
	if cfg.MinMoveTime <= 0 {
		cfg.MinMoveTime = defaultMinMoveTime
	}
	if name == "" {
		name = cfg.Path
	}
	logger = logger.With(zap.String("agent", name), zap.String("color", color.String()))
	u := &UCI{
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
		run:     newRunner(tracker, logger),
	}
	u.init(color, name, true)
	return u, nil
}

func (u *UCI) Kind() Kind { return KindUCI }

func (u *UCI) AcceptsInput() bool { return !u.Enabled() }

func (u *UCI) Budget() *budget.Tracker { return u.tracker }

func (u *UCI) TakeTurn(ctx context.Context, req Request) bool {
	if !u.acting(req.Side) {
		return false
	}
	return u.run.launch(ctx, u.color, req, u.decide)
}

// Decide searches fen once and charges the budget.
func (u *UCI) Decide(ctx context.Context, fen string) (board.Move, error) {
	mv, _, _, err := u.run.timed(ctx, fen, u.decide)
	return mv, err
}

// MoveTime is the search time allotted for one move out of remaining.
func (u *UCI) MoveTime(remaining time.Duration) time.Duration {
	d := remaining / time.Duration(u.cfg.MovesToGo)
	if u.cfg.MaxMoveTime > 0 && d > u.cfg.MaxMoveTime {
		d = u.cfg.MaxMoveTime
	}
	if d < u.cfg.MinMoveTime {
		d = u.cfg.MinMoveTime
	}
	return d
}

func (u *UCI) decide(ctx context.Context, fen string, remaining time.Duration) (board.Move, string, error) {
	session, err := u.ensureSession(ctx)
	if err != nil {
		return board.Move{}, "", &Failure{Kind: FailureLaunch, Agent: u.name, Err: err}
	}

	limits := uci.Limits{Depth: u.cfg.Depth}
	if u.cfg.Depth <= 0 {
		limits.MoveTimeMillis = int(u.MoveTime(remaining).Milliseconds())
	}
	resp, err := session.Search(ctx, uci.SearchRequest{FEN: fen, Limits: limits})
	if err != nil {
		u.dropSession(session)
		return board.Move{}, "", &Failure{Kind: FailureExit, Agent: u.name, Err: err}
	}
	u.logger.Debug("uci_search_done",
		zap.String("bestmove", resp.BestMove),
		zap.Int("depth", resp.Depth),
		zap.Int("eval_cp", resp.EvalCP))

	mv, err := board.ParseMove(resp.BestMove)
	if err != nil {
		return board.Move{}, resp.BestMove, &Failure{Kind: FailureOutput, Agent: u.name, Err: fmt.Errorf("bestmove: %w", err)}
	}
	return mv, resp.BestMove, nil
}

func (u *UCI) ensureSession(ctx context.Context) (*uci.Session, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.session != nil {
		return u.session, nil
	}
	s, err := uci.NewSession(ctx, u.cfg.Path, u.cfg.Args, u.cfg.Options, u.logger)
	if err != nil {
		return nil, err
	}
	if err := s.NewGame(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	u.session = s
	return s, nil
}

// dropSession discards a session whose engine stopped answering; the next
// turn starts a fresh one.
func (u *UCI) dropSession(s *uci.Session) {
	u.mu.Lock()
	if u.session == s {
		u.session = nil
	}
	u.mu.Unlock()
	if err := s.Close(); err != nil {
		u.logger.Debug("uci_close_failed", zap.Error(err))
	}
}

func (u *UCI) Halt() { u.run.halt() }

func (u *UCI) Close() error {
	u.run.close()
	u.mu.Lock()
	s := u.session
	u.session = nil
	u.mu.Unlock()
	if s != nil {
		return s.Close()
	}
	return nil
}
