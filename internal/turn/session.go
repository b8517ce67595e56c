package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/input"
	"github.com/park285/Cheese-arena/internal/rules"
)

type entry struct {
	color board.Color
	move  board.Move
	san   string
	prior rules.Position
}

// Session is the game aggregate and the turn state machine. It is not
// safe for concurrent use; a Loop owns it.
type Session struct {
	id       string
	rules    Rules
	agents   [2]agent.Agent
	policy   Policy
	geometry input.Geometry
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time

	start   rules.Position
	pos     rules.Position
	history []entry
	state   State
	agg     input.Aggregator
	strikes [2]int
	token   uint64

	ctx       context.Context
	deliver   func(agent.Result)
	started   bool
	updatedAt time.Time
}

type Option func(*Session)

func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

func WithPolicy(p Policy) Option { return func(s *Session) { s.policy = p } }

func WithGeometry(g input.Geometry) Option { return func(s *Session) { s.geometry = g } }

func WithSink(sink Sink) Option { return func(s *Session) { s.sink = sink } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSession(r Rules, start rules.Position, white, black agent.Agent, opts ...Option) (*Session, error) {
	if r == nil {
		return nil, errors.New("rules required")
	}
	if !start.Valid() {
		return nil, rules.ErrInvalidPosition
	}
	if white == nil || black == nil {
		return nil, errors.New("two agents required")
	}
	if white.Color() != board.White || black.Color() != board.Black {
		return nil, fmt.Errorf("agent colors mismatch: %s/%s", white.Color(), black.Color())
	}
	s := &Session{
		id:       uuid.NewString(),
		rules:    r,
		agents:   [2]agent.Agent{white, black},
		policy:   DefaultPolicy(),
		geometry: input.DefaultGeometry(),
		logger:   zap.NewNop(),
		now:      time.Now,
		start:    start,
		pos:      start,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session_id", s.id))
	s.state = State{Phase: PhaseAwaitingMove, Color: r.SideToMove(start)}
	s.updatedAt = s.now()
	return s, nil
}

func (s *Session) ID() string                      { return s.id }
func (s *Session) State() State                    { return s.state }
func (s *Session) Position() rules.Position        { return s.pos }
func (s *Session) FEN() string                     { return s.rules.Serialize(s.pos) }
func (s *Session) Agent(c board.Color) agent.Agent { return s.agents[c] }
func (s *Session) Geometry() input.Geometry        { return s.geometry }

// Replay applies recorded moves before Start without soliciting agents or
// emitting events. Used to resume a stored session.
func (s *Session) Replay(moves []board.Move) error {
	if s.started {
		return ErrAlreadyStarted
	}
	for i, mv := range moves {
		next, err := s.rules.Apply(s.pos, mv)
		if err != nil {
			return fmt.Errorf("replay ply %d: %w", i+1, err)
		}
		s.history = append(s.history, entry{color: s.rules.SideToMove(s.pos), move: mv, san: next.LastSAN(), prior: s.pos})
		s.pos = next
	}
	s.state = State{Phase: PhaseAwaitingMove, Color: s.rules.SideToMove(s.pos)}
	return nil
}

// Start enters the first state and solicits the side to move. deliver is
// handed to process agents for their results.
func (s *Session) Start(ctx context.Context, deliver func(agent.Result)) {
	if s.started {
		return
	}
	s.started = true
	if ctx != nil {
		s.ctx = ctx
	}
	s.deliver = deliver
	if res, ok := s.rules.Terminal(s.pos); ok {
		s.finish(res)
		return
	}
	s.state = State{Phase: PhaseAwaitingMove, Color: s.rules.SideToMove(s.pos)}
	s.logger.Info("session_started",
		zap.String("fen", s.FEN()),
		zap.String("white", s.agents[board.White].Name()),
		zap.String("black", s.agents[board.Black].Name()))
	s.solicit()
}

func (s *Session) solicit() {
	if s.state.Phase != PhaseAwaitingMove {
		return
	}
	s.token++
	side := s.state.Color
	a := s.agents[side]
	req := agent.Request{Token: s.token, FEN: s.FEN(), Side: side, Deliver: s.deliver}
	if a.TakeTurn(s.ctx, req) {
		s.logger.Debug("agent_solicited",
			zap.String("color", side.String()),
			zap.String("agent", a.Name()),
			zap.Uint64("token", s.token))
	}
}

func (s *Session) oracle() input.MoveOracle {
	return input.OracleFunc(func(mv board.Move) bool { return s.rules.Legal(s.pos, mv) })
}

// HandleResult processes a worker result. Results that are stale, out of
// turn, from a disabled agent or arriving after game over are dropped.
func (s *Session) HandleResult(res agent.Result) {
	if s.state.Phase != PhaseAwaitingMove {
		s.logger.Debug("result_discarded", zap.String("reason", "not_awaiting"), zap.Uint64("token", res.Token))
		return
	}
	if res.Token != s.token || res.Color != s.state.Color {
		s.logger.Debug("result_discarded", zap.String("reason", "stale"),
			zap.Uint64("token", res.Token), zap.Uint64("current", s.token))
		return
	}
	a := s.agents[res.Color]
	if !a.Enabled() {
		s.logger.Debug("result_discarded", zap.String("reason", "agent_disabled"), zap.String("color", res.Color.String()))
		return
	}
	if res.Err != nil {
		s.agentFailed(res.Color, res.Err)
		return
	}
	if s.policy.ForfeitOnTimeout && res.Exhausted {
		s.logger.Info("time_forfeit", zap.String("color", res.Color.String()), zap.Duration("elapsed", res.Elapsed))
		s.finish(board.WinFor(res.Color.Opponent(), board.ReasonTimeForfeit))
		return
	}

	mv, _ := input.ResolvePromotion(res.Move, s.oracle(), nil)
	if err := s.apply(res.Color, mv); err != nil {
		s.agentFailed(res.Color, &agent.Failure{Kind: agent.FailureIllegal, Agent: a.Name(), Err: err})
	}
}

func (s *Session) agentFailed(c board.Color, err error) {
	s.strikes[c]++
	strikes := s.strikes[c]
	s.logger.Warn("agent_failure",
		zap.String("color", c.String()),
		zap.String("agent", s.agents[c].Name()),
		zap.Int("strikes", strikes),
		zap.Error(err))
	s.emit(Event{Kind: EventAgentFailure, Color: c, Error: err.Error(), Strikes: strikes})

	switch {
	case strikes <= s.policy.MaxRetries:
		s.solicit()
	case s.policy.OnExhausted == ActionForfeit:
		s.finish(board.WinFor(c.Opponent(), board.ReasonAgentForfeit))
	default:
		s.logger.Warn("turn_stalled", zap.String("color", c.String()))
	}
}

// SubmitMove applies a typed move for the side to move. A missing
// promotion is resolved through choose.
func (s *Session) SubmitMove(mv board.Move, choose input.PromotionChooser) error {
	if s.state.Phase == PhaseGameOver {
		return ErrGameOver
	}
	side := s.state.Color
	if !s.agents[side].AcceptsInput() {
		return ErrNotAccepting
	}
	resolved, ok := input.ResolvePromotion(mv, s.oracle(), choose)
	if !ok {
		return ErrPromotionCancelled
	}
	if err := s.apply(side, resolved); err != nil {
		s.solicit()
		return err
	}
	return nil
}

// Click feeds one pointer press through the square mapper and the
// two-click aggregator.
func (s *Session) Click(p input.Point, buttons input.Button, choose input.PromotionChooser) (input.Outcome, error) {
	if s.state.Phase == PhaseGameOver {
		return input.OutcomeIgnored, ErrGameOver
	}
	if !s.agents[s.state.Color].AcceptsInput() {
		return input.OutcomeIgnored, ErrNotAccepting
	}
	sq, ok := s.geometry.SquareAt(p, buttons)
	if !ok {
		return input.OutcomeIgnored, nil
	}
	mv, out := s.agg.Select(sq, s.oracle(), choose)
	if out != input.OutcomeCandidate {
		return out, nil
	}
	if err := s.apply(s.state.Color, mv); err != nil {
		s.solicit()
		return out, err
	}
	return out, nil
}

func (s *Session) apply(c board.Color, mv board.Move) error {
	if s.state.Phase != PhaseAwaitingMove || s.state.Color != c {
		return fmt.Errorf("%w: %s to move", rules.ErrIllegalMove, s.state.Color)
	}
	s.state.Phase = PhaseApplying
	next, err := s.rules.Apply(s.pos, mv)
	if err != nil {
		s.state.Phase = PhaseAwaitingMove
		s.logger.Debug("move_rejected", zap.String("color", c.String()), zap.String("move", mv.String()), zap.Error(err))
		return err
	}

	s.history = append(s.history, entry{color: c, move: mv, san: next.LastSAN(), prior: s.pos})
	s.pos = next
	s.agg.Reset()
	s.strikes[c] = 0
	s.logger.Info("move_applied",
		zap.String("color", c.String()),
		zap.String("move", mv.String()),
		zap.String("san", next.LastSAN()),
		zap.Int("ply", len(s.history)))
	s.emit(Event{Kind: EventMoveApplied, Color: c, Move: mv.String(), SAN: next.LastSAN()})

	if res, ok := s.rules.Terminal(s.pos); ok {
		s.finish(res)
		return nil
	}
	s.state = State{Phase: PhaseAwaitingMove, Color: c.Opponent()}
	s.solicit()
	return nil
}

// Undo pops one ply and re-solicits the restored side. It returns false
// when there is nothing to undo. Undo after game over reopens the game.
func (s *Session) Undo() bool {
	if s.state.Phase == PhaseApplying || len(s.history) == 0 {
		return false
	}
	last := s.history[len(s.history)-1]
	s.history = s.history[:len(s.history)-1]
	s.pos = last.prior
	s.agg.Reset()
	s.strikes = [2]int{}
	s.state = State{Phase: PhaseAwaitingMove, Color: s.rules.SideToMove(s.pos)}
	s.logger.Info("move_undone", zap.String("move", last.move.String()), zap.Int("ply", len(s.history)))
	s.emit(Event{Kind: EventUndone, Color: last.color, Move: last.move.String(), SAN: last.san})
	s.solicit()
	return true
}

// SetEnabled toggles an agent. Enabling the side to move solicits it at once.
func (s *Session) SetEnabled(c board.Color, on bool) {
	a := s.agents[c]
	if a.Enabled() == on {
		return
	}
	a.SetEnabled(on)
	s.agg.Reset()
	s.logger.Info("agent_toggled", zap.String("color", c.String()), zap.Bool("enabled", on))
	if on && s.state.Phase == PhaseAwaitingMove && s.state.Color == c {
		s.strikes[c] = 0
		s.solicit()
	}
}

func (s *Session) Resign(c board.Color) error {
	if s.state.Phase == PhaseGameOver {
		return ErrGameOver
	}
	s.finish(board.WinFor(c.Opponent(), board.ReasonResignation))
	return nil
}

func (s *Session) finish(res board.Result) {
	s.state = State{Phase: PhaseGameOver, Color: s.rules.SideToMove(s.pos), Result: res}
	s.token++
	s.agg.Reset()
	for _, a := range s.agents {
		a.Halt()
	}
	s.logger.Info("game_over",
		zap.String("outcome", string(res.Outcome)),
		zap.String("reason", string(res.Reason)),
		zap.Int("ply", len(s.history)))
	r := res
	s.emit(Event{Kind: EventGameOver, Color: s.state.Color, Result: &r})
}

func (s *Session) emit(ev Event) {
	s.updatedAt = s.now()
	if s.sink == nil {
		return
	}
	ev.SessionID = s.id
	ev.Side = ev.Color.String()
	ev.FEN = s.FEN()
	ev.Ply = len(s.history)
	ev.At = s.updatedAt
	s.sink(ev)
}
