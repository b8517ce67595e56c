package turn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/rules"
)

var (
	ErrGameOver           = errors.New("game is over")
	ErrNotAccepting       = errors.New("side to move does not take manual input")
	ErrPromotionCancelled = errors.New("promotion cancelled")
	ErrLoopStopped        = errors.New("turn loop stopped")
	ErrAlreadyStarted     = errors.New("session already started")
)

// Rules is the legality and terminal-state oracle the session consults.
type Rules interface {
	Legal(pos rules.Position, mv board.Move) bool
	LegalMoves(pos rules.Position) []board.Move
	Apply(pos rules.Position, mv board.Move) (rules.Position, error)
	Terminal(pos rules.Position) (board.Result, bool)
	Serialize(pos rules.Position) string
	SideToMove(pos rules.Position) board.Color
}

type Phase int

const (
	PhaseAwaitingMove Phase = iota
	PhaseApplying
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseApplying:
		return "applying"
	case PhaseGameOver:
		return "game_over"
	default:
		return "awaiting_move"
	}
}

// State is the coordinator state. Color is meaningful while awaiting or
// applying; Result once the game is over.
type State struct {
	Phase  Phase
	Color  board.Color
	Result board.Result
}

func (s State) String() string {
	switch s.Phase {
	case PhaseGameOver:
		return fmt.Sprintf("game_over(%s %s)", s.Result.Outcome, s.Result.Reason)
	default:
		return fmt.Sprintf("%s(%s)", s.Phase, s.Color)
	}
}

type ExhaustedAction string

const (
	// ActionWait leaves the turn open for manual intervention.
	ActionWait    ExhaustedAction = "wait"
	ActionForfeit ExhaustedAction = "forfeit"
)

func ParseExhaustedAction(s string) (ExhaustedAction, error) {
	switch ExhaustedAction(strings.ToLower(strings.TrimSpace(s))) {
	case "", ActionWait:
		return ActionWait, nil
	case ActionForfeit:
		return ActionForfeit, nil
	default:
		return "", fmt.Errorf("unknown exhausted action %q", s)
	}
}

// Policy decides what happens after agent failures and budget exhaustion.
type Policy struct {
	// MaxRetries is how many consecutive failures of one color are
	// re-solicited before OnExhausted applies.
	MaxRetries       int
	OnExhausted      ExhaustedAction
	ForfeitOnTimeout bool
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: 2, OnExhausted: ActionWait}
}
