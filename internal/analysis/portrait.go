package analysis

import (
	"fmt"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// Point is one sample of a portrait.
type Point struct{ X, Y float64 }

// Portrait pairs the probabilities of two states over a trajectory, e.g. the
// idle state against the blocking state.
type Portrait struct {
	XIndex, YIndex int
	Points         []Point
}

// NewPortrait extracts states xIdx and yIdx from every vector of tr.
func NewPortrait(tr *dynamo.Trajectory, xIdx, yIdx int) (*Portrait, error) {
	if tr == nil || tr.Len() == 0 {
		return nil, fmt.Errorf("%w: empty trajectory", dynamo.ErrInvalidState)
	}
	dim := len(tr.States[0])
	if xIdx < 0 || yIdx < 0 || xIdx >= dim || yIdx >= dim {
		return nil, fmt.Errorf("%w: states %d and %d outside 0..%d", dynamo.ErrDimensionMismatch, xIdx, yIdx, dim-1)
	}

	portrait := &Portrait{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point, 0, tr.Len()),
	}
	for _, p := range tr.States {
		portrait.Points = append(portrait.Points, Point{X: p[xIdx], Y: p[yIdx]})
	}
	return portrait, nil
}

// PortraitToASCII scales the portrait into a width×height character grid.
// Probabilities live in [0, 1], so that is the fixed range of both axes.
func PortraitToASCII(portrait *Portrait, width, height int) string {
	if portrait == nil || len(portrait.Points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	canvas := newCanvas(width, height)
	for row := 0; row < height; row++ {
		canvas[row][0] = '│'
	}
	for col := 0; col < width; col++ {
		canvas[height-1][col] = '─'
	}
	canvas[height-1][0] = '└'

	for _, p := range portrait.Points {
		col := int(p.X * float64(width-1))
		row := height - 1 - int(p.Y*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = '•'
		}
	}
	return canvasString(canvas)
}
