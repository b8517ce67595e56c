package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/input"
)

type Options struct {
	LastMove *board.Move
	Pending  *board.Square
}

// Renderer paints a position on a canvas laid out by an input.Geometry, so
// pixel coordinates on the image map to squares through Geometry.SquareAt.
type Renderer struct{}

func New() *Renderer { return &Renderer{} }

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	frameColor          = color.RGBA{74, 52, 38, 255}
	backgroundColor     = color.RGBA{28, 31, 46, 255}
	lastMoveFill        = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	pendingFill         = color.NRGBA{R: 148, G: 207, B: 255, A: 170}
	checkFill           = color.NRGBA{R: 220, G: 40, B: 40, A: 160}
	coordinateTextColor = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
)

func (r *Renderer) RenderPNG(ctx context.Context, fen string, g input.Geometry, opts Options) ([]byte, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	pos, err := positionOf(fen)
	if err != nil {
		return nil, err
	}
	bm := pos.Board().SquareMap()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	width := int(math.Ceil(2*g.OriginX + g.Side))
	height := int(math.Ceil(2*g.OriginY + g.Side))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	frame := image.Rect(int(g.OriginX), int(g.OriginY), int(g.OriginX+g.Side), int(g.OriginY+g.Side))
	imagedraw.Draw(img, frame, image.NewUniform(frameColor), image.Point{}, imagedraw.Src)

	for rank := 0; rank < 8; rank++ {
		for file := 0; file < 8; file++ {
			sq, _ := board.NewSquare(file, rank)
			clr := lightSquare
			if (file+rank)%2 == 0 {
				clr = darkSquare
			}
			imagedraw.Draw(img, squareRect(g, sq), image.NewUniform(clr), image.Point{}, imagedraw.Src)
		}
	}
	if opts.LastMove != nil {
		drawSquareOverlay(img, g, opts.LastMove.From, lastMoveFill)
		drawSquareOverlay(img, g, opts.LastMove.To, lastMoveFill)
	}
	if opts.Pending != nil {
		drawSquareOverlay(img, g, *opts.Pending, pendingFill)
	}
	if king, ok := checkedKing(pos); ok {
		drawSquareOverlay(img, g, king, checkFill)
	}
	if err := drawPieces(img, g, bm); err != nil {
		return nil, err
	}
	drawCoordinates(img, g)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func positionOf(fen string) (*nchess.Position, error) {
	if fen == "" || fen == "startpos" {
		return nchess.NewGame().Position(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return nchess.NewGame(opt).Position(), nil
}

// checkedKing reports the king of the side to move when it is attacked.
// Attacks are the opponent's moves in a copy with the turn flipped and the
// opponent's king lifted, so its own king safety filters nothing out.
func checkedKing(pos *nchess.Position) (board.Square, bool) {
	defender := pos.Turn()
	attacker := defender.Other()
	placement := make(map[nchess.Square]nchess.Piece)
	kingSq := nchess.NoSquare
	for sq, pc := range pos.Board().SquareMap() {
		if pc.Type() == nchess.King {
			if pc.Color() == attacker {
				continue
			}
			kingSq = sq
		}
		placement[sq] = pc
	}
	if kingSq == nchess.NoSquare {
		return board.Square{}, false
	}
	opt, err := nchess.FEN(nchess.NewBoard(placement).String() + " " + attacker.String() + " - - 0 1")
	if err != nil {
		return board.Square{}, false
	}
	flipped := nchess.NewGame(opt).Position()
	for _, mv := range flipped.ValidMoves() {
		if mv.S2() == kingSq {
			target, err := board.NewSquare(int(kingSq.File()), int(kingSq.Rank()))
			return target, err == nil
		}
	}
	return board.Square{}, false
}

// squareRect rounds square edges so neighbouring squares share borders.
func squareRect(g input.Geometry, sq board.Square) image.Rectangle {
	size := g.SquareSize()
	left := g.OriginX + g.Margin
	top := g.OriginY + g.Margin
	row := 7 - sq.Rank()
	x0 := int(math.Round(left + float64(sq.File())*size))
	x1 := int(math.Round(left + float64(sq.File()+1)*size))
	y0 := int(math.Round(top + float64(row)*size))
	y1 := int(math.Round(top + float64(row+1)*size))
	return image.Rect(x0, y0, x1, y1)
}

func drawSquareOverlay(img *image.RGBA, g input.Geometry, sq board.Square, clr color.Color) {
	imagedraw.Draw(img, squareRect(g, sq), image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawPieces(dst *image.RGBA, g input.Geometry, bm map[nchess.Square]nchess.Piece) error {
	size := int(math.Floor(g.SquareSize()))
	for sq, piece := range bm {
		if piece == nchess.NoPiece {
			continue
		}
		target, err := board.NewSquare(int(sq.File()), int(sq.Rank()))
		if err != nil {
			continue
		}
		pimg, err := renderPieceImage(piece, size)
		if err != nil {
			return err
		}
		c := g.Center(target)
		x0 := int(math.Round(c.X - float64(size)/2))
		y0 := int(math.Round(c.Y - float64(size)/2))
		at := image.Rect(x0, y0, x0+size, y0+size)
		imagedraw.Draw(dst, at, pimg, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawCoordinates(dst *image.RGBA, g input.Geometry) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: dst, Face: face, Src: image.NewUniform(coordinateTextColor)}
	ascent := face.Metrics().Ascent.Ceil()
	for i := 0; i < 8; i++ {
		sq, _ := board.NewSquare(i, i)
		rect := squareRect(g, sq)
		name := sq.String()

		fileX := (rect.Min.X + rect.Max.X) / 2
		fileBaseline := int(g.OriginY+g.Side-g.Margin/2) + ascent/2
		drawCenteredText(drawer, name[:1], fileX, fileBaseline)

		rankX := int(g.OriginX + g.Margin/2)
		rankBaseline := (rect.Min.Y+rect.Max.Y)/2 + ascent/2
		drawCenteredText(drawer, name[1:], rankX, rankBaseline)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}
