package viz

import (
	"strings"

	"github.com/san-kum/queuesim/internal/analysis"
)

// Braille cells hold 2x4 dots:
//
//	1 4
//	2 5
//	3 6
//	7 8
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a character grid addressed in braille sub-pixels, giving
// (Width*2)×(Height*4) dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = []rune(strings.Repeat(string(rune(brailleBlank)), w))
	}
	return c
}

// Set lights the dot at sub-pixel (x, y); y grows downwards.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

// DrawLine joins two sub-pixels with Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx, sy := -1, -1
	if x0 < x1 {
		sx = 1
	}
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// PlotPortrait traces a portrait on a braille canvas of w×h cells. Both axes
// span the probability range [0, 1].
func PlotPortrait(p *analysis.Portrait, w, h int) string {
	if p == nil || len(p.Points) == 0 || w <= 0 || h <= 0 {
		return ""
	}
	c := NewCanvas(w, h)
	maxX, maxY := float64(w*2-1), float64(h*4-1)
	project := func(pt analysis.Point) (int, int) {
		return int(pt.X*maxX + 0.5), int((1-pt.Y)*maxY + 0.5)
	}

	px, py := project(p.Points[0])
	c.Set(px, py)
	for _, pt := range p.Points[1:] {
		x, y := project(pt)
		c.DrawLine(px, py, x, y)
		px, py = x, y
	}
	return c.String()
}
