package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/Cheese-arena/internal/board"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrInvalidPosition = errors.New("invalid position")
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Position is an immutable game state. It keeps the move history of the
// underlying game so repetition draws are detected.
type Position struct {
	game    *nchess.Game
	lastSAN string
}

func (p Position) Valid() bool { return p.game != nil }

// LastSAN is the algebraic notation of the move that produced p.
func (p Position) LastSAN() string { return p.lastSAN }

// Chess adapts corentings/chess to the coordinator's rules contract.
type Chess struct{}

func New() *Chess { return &Chess{} }

func (c *Chess) Start() Position {
	return Position{game: nchess.NewGame()}
}

// Parse builds a position from FEN. "" and "startpos" mean the initial position.
func (c *Chess) Parse(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return c.Start(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return Position{game: nchess.NewGame(opt)}, nil
}

func (c *Chess) LegalMoves(pos Position) []board.Move {
	if !pos.Valid() {
		return nil
	}
	valid := pos.game.ValidMoves()
	out := make([]board.Move, 0, len(valid))
	for _, m := range valid {
		mv, ok := fromEngineMove(m.S1(), m.S2(), m.Promo())
		if ok {
			out = append(out, mv)
		}
	}
	return out
}

func (c *Chess) Legal(pos Position, mv board.Move) bool {
	if !pos.Valid() {
		return false
	}
	for _, m := range pos.game.ValidMoves() {
		cand, ok := fromEngineMove(m.S1(), m.S2(), m.Promo())
		if ok && cand == mv {
			return true
		}
	}
	return false
}

// Apply returns the position after mv. pos is left untouched.
func (c *Chess) Apply(pos Position, mv board.Move) (Position, error) {
	if !pos.Valid() {
		return Position{}, ErrInvalidPosition
	}
	if !c.Legal(pos, mv) {
		return Position{}, fmt.Errorf("%w: %s", ErrIllegalMove, mv)
	}
	before := pos.game.Position()
	decoded, err := nchess.UCINotation{}.Decode(before, mv.String())
	if err != nil {
		return Position{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, mv, err)
	}
	next := pos.game.Clone()
	if err := next.Move(decoded, nil); err != nil {
		return Position{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, mv, err)
	}
	san := mv.String()
	if moves := next.Moves(); len(moves) > 0 {
		san = nchess.AlgebraicNotation{}.Encode(before, moves[len(moves)-1])
	}
	return Position{game: next, lastSAN: san}, nil
}

// Terminal reports the result when pos ends the game.
func (c *Chess) Terminal(pos Position) (board.Result, bool) {
	if !pos.Valid() {
		return board.Result{}, false
	}
	var outcome board.Outcome
	switch pos.game.Outcome() {
	case nchess.WhiteWon:
		outcome = board.WhiteWon
	case nchess.BlackWon:
		outcome = board.BlackWon
	case nchess.Draw:
		outcome = board.Draw
	default:
		return board.Result{}, false
	}
	return board.Result{Outcome: outcome, Reason: reasonFromMethod(pos.game.Method())}, true
}

func (c *Chess) Serialize(pos Position) string {
	if !pos.Valid() {
		return ""
	}
	return pos.game.FEN()
}

func (c *Chess) SideToMove(pos Position) board.Color {
	if pos.Valid() && pos.game.Position().Turn() == nchess.Black {
		return board.Black
	}
	return board.White
}

func reasonFromMethod(m nchess.Method) board.Reason {
	switch m {
	case nchess.Checkmate:
		return board.ReasonCheckmate
	case nchess.Stalemate:
		return board.ReasonStalemate
	case nchess.InsufficientMaterial:
		return board.ReasonInsufficientMaterial
	case nchess.ThreefoldRepetition:
		return board.ReasonThreefoldRepetition
	case nchess.FivefoldRepetition:
		return board.ReasonFivefoldRepetition
	case nchess.FiftyMoveRule:
		return board.ReasonFiftyMoveRule
	case nchess.SeventyFiveMoveRule:
		return board.ReasonSeventyFiveMoveRule
	case nchess.Resignation:
		return board.ReasonResignation
	default:
		return board.Reason(strings.ToLower(m.String()))
	}
}

func fromEngineMove(s1, s2 nchess.Square, promo nchess.PieceType) (board.Move, bool) {
	from, err := board.NewSquare(int(s1.File()), int(s1.Rank()))
	if err != nil {
		return board.Move{}, false
	}
	to, err := board.NewSquare(int(s2.File()), int(s2.Rank()))
	if err != nil {
		return board.Move{}, false
	}
	mv := board.Move{From: from, To: to}
	switch promo {
	case nchess.Queen:
		mv.Promotion = board.Queen
	case nchess.Rook:
		mv.Promotion = board.Rook
	case nchess.Bishop:
		mv.Promotion = board.Bishop
	case nchess.Knight:
		mv.Promotion = board.Knight
	}
	return mv, true
}
