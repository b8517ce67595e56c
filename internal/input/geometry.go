package input

import (
	"errors"

	"github.com/park285/Cheese-arena/internal/board"
)

// Button is a pointer button mask.
type Button uint8

const (
	ButtonNone      Button = 0
	ButtonPrimary   Button = 1 << 0
	ButtonSecondary Button = 1 << 1
	ButtonMiddle    Button = 1 << 2
)

type Point struct {
	X float64
	Y float64
}

// Geometry places the board on screen. The playable area is the square
// [Origin+Margin, Origin+Side-Margin] on both axes.
type Geometry struct {
	OriginX float64 `yaml:"origin_x" json:"origin_x"`
	OriginY float64 `yaml:"origin_y" json:"origin_y"`
	Side    float64 `yaml:"side" json:"side"`
	Margin  float64 `yaml:"margin" json:"margin"`
}

// DefaultGeometry matches a 600px board drawn 50px from the window corner
// with a 5% coordinate border.
func DefaultGeometry() Geometry {
	return Geometry{OriginX: 50, OriginY: 50, Side: 600, Margin: 30}
}

func (g Geometry) Validate() error {
	if g.Side <= 0 {
		return errors.New("board side must be > 0")
	}
	if g.Margin < 0 || 2*g.Margin >= g.Side {
		return errors.New("board margin must be >= 0 and smaller than half the side")
	}
	return nil
}

func (g Geometry) SquareSize() float64 { return (g.Side - 2*g.Margin) / 8 }

// SquareAt maps a primary-button press inside the playable area to a square.
func (g Geometry) SquareAt(p Point, buttons Button) (board.Square, bool) {
	if buttons != ButtonPrimary {
		return board.Square{}, false
	}
	size := g.SquareSize()
	if size <= 0 {
		return board.Square{}, false
	}
	left := g.OriginX + g.Margin
	top := g.OriginY + g.Margin
	right := g.OriginX + g.Side - g.Margin
	bottom := g.OriginY + g.Side - g.Margin
	if !(left < p.X && p.X < right && top < p.Y && p.Y < bottom) {
		return board.Square{}, false
	}
	file := clampIndex(int((p.X - left) / size))
	rank := 7 - clampIndex(int((p.Y-top)/size))
	sq, err := board.NewSquare(file, rank)
	if err != nil {
		return board.Square{}, false
	}
	return sq, true
}

// Center returns the screen point in the middle of sq.
func (g Geometry) Center(sq board.Square) Point {
	size := g.SquareSize()
	return Point{
		X: g.OriginX + g.Margin + (float64(sq.File())+0.5)*size,
		Y: g.OriginY + g.Margin + (float64(7-sq.Rank())+0.5)*size,
	}
}

func clampIndex(i int) int {
	if i < 0 {
		return 0
	}
	if i > 7 {
		return 7
	}
	return i
}
