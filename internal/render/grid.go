package render

import (
	"image/color"
	"math"
	"strings"
)

const (
	markerRune = '●'
	blankRune  = ' '
)

// Grid is a character-cell surface for terminals. It keeps the logical size
// the renderer asks for and maps it down onto a fixed cols x rows grid.
type Grid struct {
	cols, rows int
	w, h       int
	cells      [][]rune
}

// NewGrid returns a grid of cols x rows character cells.
func NewGrid(cols, rows int) *Grid {
	g := &Grid{cols: cols, rows: rows}
	g.alloc()
	return g
}

// NewGridFactory is a Factory producing Grid surfaces of the given size.
func NewGridFactory(cols, rows int) Factory {
	return func(string) Surface { return NewGrid(cols, rows) }
}

func (g *Grid) alloc() {
	g.cells = make([][]rune, g.rows)
	for i := range g.cells {
		g.cells[i] = make([]rune, g.cols)
	}
	g.Clear()
}

func (g *Grid) Resize(w, h int) {
	g.w, g.h = w, h
	if g.cells == nil {
		g.alloc()
	}
}

func (g *Grid) Size() (int, int) {
	return g.w, g.h
}

func (g *Grid) Clear() {
	for _, row := range g.cells {
		for i := range row {
			row[i] = blankRune
		}
	}
}

// cell maps logical coordinates to a cell; ok is false outside the grid.
func (g *Grid) cell(x, y float64) (col, row int, ok bool) {
	if g.w <= 0 || g.h <= 0 || g.cells == nil || math.IsNaN(x+y) || math.IsInf(x+y, 0) {
		return 0, 0, false
	}
	col, row = g.col(x), g.row(y)
	return col, row, col >= 0 && col < g.cols && row >= 0 && row < g.rows
}

func (g *Grid) DrawCircle(x, y, _ float64, _ color.RGBA) {
	if col, row, ok := g.cell(x, y); ok {
		g.cells[row][col] = markerRune
	}
}

// DrawLine walks the cells between the endpoints (Bresenham) and leaves
// marker cells untouched so joints stay visible.
func (g *Grid) DrawLine(x1, y1, x2, y2, _ float64, _ color.RGBA) {
	if g.w <= 0 || g.h <= 0 || g.cells == nil {
		return
	}
	x1, y1, x2, y2, ok := clip(x1, y1, x2, y2, float64(g.w), float64(g.h))
	if !ok {
		return
	}
	glyph := lineRune(g.col(x2)-g.col(x1), g.row(y2)-g.row(y1))
	c0, r0 := clampInt(g.col(x1), g.cols-1), clampInt(g.row(y1), g.rows-1)
	c1, r1 := clampInt(g.col(x2), g.cols-1), clampInt(g.row(y2), g.rows-1)

	dc, dr := abs(c1-c0), -abs(r1-r0)
	sc, sr := sign(c1-c0), sign(r1-r0)
	e := dc + dr
	for {
		if c0 >= 0 && c0 < g.cols && r0 >= 0 && r0 < g.rows && g.cells[r0][c0] != markerRune {
			g.cells[r0][c0] = glyph
		}
		if c0 == c1 && r0 == r1 {
			return
		}
		e2 := 2 * e
		if e2 >= dr {
			e += dr
			c0 += sc
		}
		if e2 <= dc {
			e += dc
			r0 += sr
		}
	}
}

func (g *Grid) col(x float64) int {
	return int(math.Floor(x * float64(g.cols) / float64(g.w)))
}

func (g *Grid) row(y float64) int {
	return int(math.Floor(y * float64(g.rows) / float64(g.h)))
}

// clip trims the segment to the rectangle [0,w]x[0,h] (Liang-Barsky). ok is
// false when nothing of it is inside or a coordinate is not finite.
func clip(x1, y1, x2, y2, w, h float64) (float64, float64, float64, float64, bool) {
	for _, v := range []float64{x1, y1, x2, y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, 0, 0, false
		}
	}
	dx, dy := x2-x1, y2-y1
	t0, t1 := 0.0, 1.0
	for _, e := range [4][2]float64{{-dx, x1}, {dx, w - x1}, {-dy, y1}, {dy, h - y1}} {
		p, q := e[0], e[1]
		if p == 0 {
			if q < 0 {
				return 0, 0, 0, 0, false
			}
			continue
		}
		r := q / p
		if p < 0 {
			t0 = max(t0, r)
		} else {
			t1 = min(t1, r)
		}
		if t0 > t1 {
			return 0, 0, 0, 0, false
		}
	}
	return x1 + t0*dx, y1 + t0*dy, x1 + t1*dx, y1 + t1*dy, true
}

func clampInt(v, hi int) int {
	return min(max(v, 0), hi)
}

func lineRune(dc, dr int) rune {
	switch {
	case dr == 0:
		return '─'
	case dc == 0:
		return '│'
	case abs(dc) > 2*abs(dr):
		return '─'
	case abs(dr) > 2*abs(dc):
		return '│'
	case (dc > 0) == (dr > 0):
		return '╲'
	default:
		return '╱'
	}
}

// Cell returns the rune at col,row (blank outside the grid).
func (g *Grid) Cell(col, row int) rune {
	if row < 0 || row >= len(g.cells) || col < 0 || col >= g.cols {
		return blankRune
	}
	return g.cells[row][col]
}

// String renders the grid one line per row.
func (g *Grid) String() string {
	var b strings.Builder
	for i, row := range g.cells {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(row))
	}
	return b.String()
}

// Release drops the cell buffer.
func (g *Grid) Release() {
	g.cells = nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
