package viz

import (
	"bufio"
	"fmt"
	"io"

	"github.com/san-kum/queuesim/internal/analysis"
	"github.com/san-kum/queuesim/internal/dynamo"
)

const svgBackground = "#0a0a0a"

func svgHeader(w *bufio.Writer, width, height int) {
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, svgBackground)
}

// svgPath writes a polyline through points given in the unit square, y up.
func svgPath(w *bufio.Writer, xs, ys []float64, width, height int, stroke string) {
	fmt.Fprintf(w, `<path fill="none" stroke="%s" stroke-width="1.5" d="`, stroke)
	for i := range xs {
		cmd := " L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(w, "%s%.1f,%.1f", cmd, xs[i]*float64(width), (1-ys[i])*float64(height))
	}
	w.WriteString("\"/>\n")
}

// WritePortraitSVG draws a portrait over the probability square [0, 1]².
func WritePortraitSVG(out io.Writer, p *analysis.Portrait, width, height int) error {
	if p == nil || len(p.Points) < 2 {
		return fmt.Errorf("%w: portrait needs at least two points", dynamo.ErrInvalidState)
	}
	w := bufio.NewWriter(out)
	svgHeader(w, width, height)

	xs := make([]float64, len(p.Points))
	ys := make([]float64, len(p.Points))
	for i, pt := range p.Points {
		xs[i], ys[i] = pt.X, pt.Y
	}
	svgPath(w, xs, ys, width, height, string(CurrentTheme.Accent))

	end := p.Points[len(p.Points)-1]
	fmt.Fprintf(w, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"/>
`, end.X*float64(width), (1-end.Y)*float64(height), string(CurrentTheme.Warning))
	w.WriteString("</svg>\n")
	return w.Flush()
}

// WriteTrajectorySVG draws every state probability against time, one path
// per state, with time scaled to the full width.
func WriteTrajectorySVG(out io.Writer, tr *dynamo.Trajectory, width, height int) error {
	if tr == nil || tr.Len() < 2 {
		return fmt.Errorf("%w: trajectory needs at least two vectors", dynamo.ErrInvalidState)
	}
	w := bufio.NewWriter(out)
	svgHeader(w, width, height)

	t0, t1 := tr.Times[0], tr.Times[tr.Len()-1]
	span := t1 - t0
	if span == 0 {
		span = 1
	}
	xs := make([]float64, tr.Len())
	for k, t := range tr.Times {
		xs[k] = (t - t0) / span
	}

	palette := []string{
		string(CurrentTheme.Primary), string(CurrentTheme.Secondary), string(CurrentTheme.Accent),
		string(CurrentTheme.Success), string(CurrentTheme.Text),
	}
	last := len(tr.States[0]) - 1
	for i := 0; i <= last; i++ {
		stroke := palette[i%len(palette)]
		if i == last {
			stroke = string(CurrentTheme.Error)
		}
		svgPath(w, xs, tr.Series(i), width, height, stroke)
	}
	w.WriteString("</svg>\n")
	return w.Flush()
}
