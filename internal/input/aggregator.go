package input

import "github.com/park285/Cheese-arena/internal/board"

// Outcome describes what a click did to the selection.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeSelected
	OutcomeReselected
	OutcomeCandidate
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSelected:
		return "selected"
	case OutcomeReselected:
		return "reselected"
	case OutcomeCandidate:
		return "candidate"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "ignored"
	}
}

// MoveOracle answers legality questions for the current position.
type MoveOracle interface {
	Legal(mv board.Move) bool
}

// OracleFunc adapts a function to MoveOracle.
type OracleFunc func(mv board.Move) bool

func (f OracleFunc) Legal(mv board.Move) bool { return f(mv) }

// PromotionChoice is the caller's answer to a promotion request.
// Kind NoPiece means "no preference" and resolves to a queen.
type PromotionChoice struct {
	Kind   board.PieceKind
	Cancel bool
}

// PromotionChooser is asked synchronously when a move is only legal as a promotion.
type PromotionChooser func(mv board.Move) PromotionChoice

// NeedsPromotion reports whether mv is legal only as a pawn promotion.
func NeedsPromotion(mv board.Move, oracle MoveOracle) bool {
	if mv.Promotion != board.NoPiece || oracle == nil {
		return false
	}
	return oracle.Legal(mv.WithPromotion(board.Queen)) && !oracle.Legal(mv)
}

// ResolvePromotion fills in the promotion piece when one is required.
// ok is false when the chooser cancelled.
func ResolvePromotion(mv board.Move, oracle MoveOracle, choose PromotionChooser) (board.Move, bool) {
	if !NeedsPromotion(mv, oracle) {
		return mv, true
	}
	kind := board.Queen
	if choose != nil {
		choice := choose(mv)
		if choice.Cancel {
			return board.Move{}, false
		}
		if choice.Kind != board.NoPiece {
			kind = choice.Kind
		}
	}
	return mv.WithPromotion(kind), true
}

// Aggregator turns two square selections into a candidate move.
// It is not safe for concurrent use; the turn loop owns it.
type Aggregator struct {
	pending    board.Square
	hasPending bool
}

func (a *Aggregator) Pending() (board.Square, bool) { return a.pending, a.hasPending }

func (a *Aggregator) Reset() {
	a.pending = board.Square{}
	a.hasPending = false
}

// Select feeds one clicked square. A move is returned only with OutcomeCandidate.
func (a *Aggregator) Select(sq board.Square, oracle MoveOracle, choose PromotionChooser) (board.Move, Outcome) {
	if !a.hasPending {
		a.pending = sq
		a.hasPending = true
		return board.Move{}, OutcomeSelected
	}
	if a.pending == sq {
		return board.Move{}, OutcomeReselected
	}
	candidate := board.Move{From: a.pending, To: sq}
	a.Reset()
	mv, ok := ResolvePromotion(candidate, oracle, choose)
	if !ok {
		return board.Move{}, OutcomeCancelled
	}
	return mv, OutcomeCandidate
}
