package board

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSquare = errors.New("invalid square")
	ErrInvalidMove   = errors.New("invalid move code")
	ErrInvalidColor  = errors.New("invalid color")
)

// Color identifies a side. White moves first.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Letter is the side-to-move letter used in FEN.
func (c Color) Letter() string {
	if c == White {
		return "w"
	}
	return "b"
}

func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w", "first":
		return White, nil
	case "black", "b", "second":
		return Black, nil
	default:
		return White, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
}

// PieceKind is a promotion target. NoPiece means "no promotion".
type PieceKind uint8

const (
	NoPiece PieceKind = iota
	Queen
	Rook
	Bishop
	Knight
)

func (k PieceKind) Letter() string {
	switch k {
	case Queen:
		return "q"
	case Rook:
		return "r"
	case Bishop:
		return "b"
	case Knight:
		return "n"
	default:
		return ""
	}
}

func (k PieceKind) String() string {
	switch k {
	case Queen:
		return "queen"
	case Rook:
		return "rook"
	case Bishop:
		return "bishop"
	case Knight:
		return "knight"
	default:
		return "none"
	}
}

// ParsePieceKind accepts a promotion letter or name. The empty string is NoPiece.
func ParsePieceKind(s string) (PieceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return NoPiece, true
	case "q", "queen":
		return Queen, true
	case "r", "rook":
		return Rook, true
	case "b", "bishop":
		return Bishop, true
	case "n", "knight":
		return Knight, true
	default:
		return NoPiece, false
	}
}

// Square is a board coordinate. The zero value is a1.
type Square struct {
	file int8
	rank int8
}

func NewSquare(file, rank int) (Square, error) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return Square{}, fmt.Errorf("%w: file=%d rank=%d", ErrInvalidSquare, file, rank)
	}
	return Square{file: int8(file), rank: int8(rank)}, nil
}

func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	f := int(s[0]) - 'a'
	r := int(s[1]) - '1'
	sq, err := NewSquare(f, r)
	if err != nil {
		return Square{}, fmt.Errorf("%w: %q", ErrInvalidSquare, s)
	}
	return sq, nil
}

func (s Square) File() int { return int(s.file) }
func (s Square) Rank() int { return int(s.rank) }

func (s Square) String() string {
	return string([]byte{byte('a' + s.file), byte('1' + s.rank)})
}

// Move is a source/destination pair with an optional promotion.
type Move struct {
	From      Square
	To        Square
	Promotion PieceKind
}

// String renders the 4 or 5 character move code.
func (m Move) String() string {
	return m.From.String() + m.To.String() + m.Promotion.Letter()
}

func (m Move) WithPromotion(k PieceKind) Move {
	m.Promotion = k
	return m
}

// ParseMove parses a move code such as "e2e4" or "e7e8q".
func ParseMove(code string) (Move, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if len(code) != 4 && len(code) != 5 {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, code)
	}
	from, err := ParseSquare(code[0:2])
	if err != nil {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, code)
	}
	to, err := ParseSquare(code[2:4])
	if err != nil {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, code)
	}
	if from == to {
		return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, code)
	}
	mv := Move{From: from, To: to}
	if len(code) == 5 {
		kind, ok := ParsePieceKind(code[4:])
		if !ok || kind == NoPiece {
			return Move{}, fmt.Errorf("%w: %q", ErrInvalidMove, code)
		}
		mv.Promotion = kind
	}
	return mv, nil
}
