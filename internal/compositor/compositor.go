// Package compositor tiles per-source frames into one grid image.
package compositor

import (
	"errors"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
)

// ErrNoTiles is returned by Compose for an empty cycle.
var ErrNoTiles = errors.New("compositor: no tiles")

// BlankColor fills padding cells.
var BlankColor = color.RGBA{A: 255}

// Layout is the grid shape for N tiles.
type Layout struct {
	Cols, Rows int
}

// LayoutFor returns cols = ceil(sqrt(n)) and rows = ceil(n / cols).
func LayoutFor(n int) Layout {
	if n <= 0 {
		return Layout{}
	}
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols
	return Layout{Cols: cols, Rows: rows}
}

// Cells returns rows*cols.
func (l Layout) Cells() int {
	return l.Cols * l.Rows
}

// Compositor renders a fixed cell size grid.
type Compositor struct {
	CellWidth  int
	CellHeight int
	Scaler     draw.Scaler
}

// New returns a compositor using bilinear scaling.
func New(cellWidth, cellHeight int) *Compositor {
	return &Compositor{CellWidth: cellWidth, CellHeight: cellHeight, Scaler: draw.ApproxBiLinear}
}

// Compose tiles images row-major in the given order. Every tile is stretched
// to the cell size. Cells past len(tiles) are filled with BlankColor, as are
// nil tiles. The result is (cols*CellWidth) x (rows*CellHeight).
func (c *Compositor) Compose(tiles []image.Image) (*image.RGBA, error) {
	if len(tiles) == 0 {
		return nil, ErrNoTiles
	}
	if c.CellWidth <= 0 || c.CellHeight <= 0 {
		return nil, errors.New("compositor: cell size must be positive")
	}

	layout := LayoutFor(len(tiles))
	out := image.NewRGBA(image.Rect(0, 0, layout.Cols*c.CellWidth, layout.Rows*c.CellHeight))
	draw.Draw(out, out.Bounds(), image.NewUniform(BlankColor), image.Point{}, draw.Src)

	scaler := c.Scaler
	if scaler == nil {
		scaler = draw.ApproxBiLinear
	}
	for i, tile := range tiles {
		if tile == nil || tile.Bounds().Empty() {
			continue
		}
		cell := c.CellRect(layout, i)
		if tile.Bounds().Size() == cell.Size() {
			draw.Draw(out, cell, tile, tile.Bounds().Min, draw.Src)
			continue
		}
		scaler.Scale(out, cell, tile, tile.Bounds(), draw.Src, nil)
	}
	return out, nil
}

// CellRect returns the destination rectangle of tile i.
func (c *Compositor) CellRect(layout Layout, i int) image.Rectangle {
	col, row := i%layout.Cols, i/layout.Cols
	x, y := col*c.CellWidth, row*c.CellHeight
	return image.Rect(x, y, x+c.CellWidth, y+c.CellHeight)
}
