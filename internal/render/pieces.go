package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece glyphs on a 45x45 canvas. STROKE is substituted per color.
var pieceShapes = map[nchess.PieceType]string{
	nchess.Pawn: `<circle cx="22.5" cy="14" r="5.5"/>` +
		`<path d="M 16 36 L 18 23 Q 22.5 19 27 23 L 29 36 Z"/>` +
		`<rect x="12" y="35" width="21" height="4" rx="1"/>`,
	nchess.Rook: `<path d="M 11 9 L 15 9 L 15 12 L 20 12 L 20 9 L 25 9 L 25 12 L 30 12 L 30 9 L 34 9 L 34 15 L 31 17 L 31 31 L 34 33 L 34 36 L 11 36 L 11 33 L 14 31 L 14 17 L 11 15 Z"/>` +
		`<rect x="9" y="36" width="27" height="3"/>`,
	nchess.Knight: `<path d="M 22 10 C 32 11 37 18 36 37 L 14 37 C 14 30 22 28 20 23 C 17 25 14 27 12 26 C 9 24 9 21 12 18 C 15 14 18 11 22 10 Z"/>` +
		`<circle cx="17" cy="17" r="1.3" fill="STROKE"/>`,
	nchess.Bishop: `<circle cx="22.5" cy="8" r="2.5"/>` +
		`<path d="M 22.5 10 C 30 15 31 24 27 29 L 18 29 C 14 24 15 15 22.5 10 Z"/>` +
		`<path d="M 15 30 L 30 30 L 31 33 L 14 33 Z"/>` +
		`<rect x="9" y="34" width="27" height="4" rx="2"/>`,
	nchess.Queen: `<path d="M 9 13 L 14 28 L 15 14 L 20 27 L 22.5 12 L 25 27 L 30 14 L 31 28 L 36 13 L 33 31 L 12 31 Z"/>` +
		`<circle cx="9" cy="12" r="2"/><circle cx="15" cy="12.5" r="2"/><circle cx="22.5" cy="10.5" r="2"/>` +
		`<circle cx="30" cy="12.5" r="2"/><circle cx="36" cy="12" r="2"/>` +
		`<rect x="11" y="31" width="23" height="7" rx="2"/>`,
	nchess.King: `<path d="M 21 5 L 24 5 L 24 8 L 27 8 L 27 11 L 24 11 L 24 15 L 21 15 L 21 11 L 18 11 L 18 8 L 21 8 Z"/>` +
		`<path d="M 22.5 16 C 35 14 40 22 32 31 L 13 31 C 5 22 10 14 22.5 16 Z"/>` +
		`<rect x="11" y="31" width="23" height="7" rx="2"/>`,
}

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceSVG(piece nchess.Piece) ([]byte, error) {
	shape, ok := pieceShapes[piece.Type()]
	if !ok {
		return nil, fmt.Errorf("no glyph for piece %v", piece)
	}
	fill, stroke := "#f8f6f0", "#1e1e1e"
	if piece.Color() == nchess.Black {
		fill, stroke = "#2b2b2b", "#e8e8e8"
	}
	shape = strings.ReplaceAll(shape, "STROKE", stroke)
	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	fmt.Fprintf(&b, `<g fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round">%s</g></svg>`, fill, stroke, shape)
	return b.Bytes(), nil
}

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceSVG(piece)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
