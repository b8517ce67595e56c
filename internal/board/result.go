package board

// Outcome is the final score of a game.
type Outcome string

const (
	NoOutcome Outcome = "*"
	WhiteWon  Outcome = "1-0"
	BlackWon  Outcome = "0-1"
	Draw      Outcome = "1/2-1/2"
)

// Reason names the terminal condition that ended a game.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonThreefoldRepetition  Reason = "threefold_repetition"
	ReasonFivefoldRepetition   Reason = "fivefold_repetition"
	ReasonFiftyMoveRule        Reason = "fifty_move_rule"
	ReasonSeventyFiveMoveRule  Reason = "seventy_five_move_rule"
	ReasonResignation          Reason = "resignation"
	ReasonTimeForfeit          Reason = "time_forfeit"
	ReasonAgentForfeit         Reason = "agent_forfeit"
)

type Result struct {
	Outcome Outcome `json:"outcome"`
	Reason  Reason  `json:"reason"`
}

// WinFor builds a decisive result in favour of c.
func WinFor(c Color, reason Reason) Result {
	if c == White {
		return Result{Outcome: WhiteWon, Reason: reason}
	}
	return Result{Outcome: BlackWon, Reason: reason}
}

func (r Result) Decided() bool { return r.Outcome != "" && r.Outcome != NoOutcome }

// Winner reports the winning color of a decisive result.
func (r Result) Winner() (Color, bool) {
	switch r.Outcome {
	case WhiteWon:
		return White, true
	case BlackWon:
		return Black, true
	default:
		return White, false
	}
}
