package viz

import (
	"fmt"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/queuesim/internal/analysis"
	"github.com/san-kum/queuesim/internal/dynamo"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan,
	asciigraph.Yellow,
	asciigraph.Green,
	asciigraph.Magenta,
	asciigraph.Red,
	asciigraph.Blue,
	asciigraph.White,
}

// ChartOptions sizes a chart; zero values pick asciigraph defaults.
type ChartOptions struct {
	Width   int
	Height  int
	Caption string
}

// PlotTrajectory draws the probability of each listed state over time. With
// no states listed every state is drawn.
func PlotTrajectory(tr *dynamo.Trajectory, states []int, opts ChartOptions) (string, error) {
	if tr == nil || tr.Len() == 0 {
		return "", fmt.Errorf("%w: empty trajectory", dynamo.ErrInvalidState)
	}
	dim := len(tr.States[0])
	if len(states) == 0 {
		for i := 0; i < dim; i++ {
			states = append(states, i)
		}
	}

	data := make([][]float64, 0, len(states))
	colors := make([]asciigraph.AnsiColor, 0, len(states))
	legends := make([]string, 0, len(states))
	for n, i := range states {
		if i < 0 || i >= dim {
			return "", fmt.Errorf("%w: state %d outside 0..%d", dynamo.ErrDimensionMismatch, i, dim-1)
		}
		data = append(data, tr.Series(i))
		colors = append(colors, seriesColors[n%len(seriesColors)])
		legends = append(legends, fmt.Sprintf("P%d", i))
	}

	caption := opts.Caption
	if caption == "" {
		caption = fmt.Sprintf("P_i(t), t ∈ [0, %.3g]", tr.Times[len(tr.Times)-1])
	}
	options := append(chartOptions(opts, caption, colors), asciigraph.SeriesLegends(legends...))
	return asciigraph.PlotMany(data, options...), nil
}

// PlotResponse draws the defined points of a response curve.
func PlotResponse(points []analysis.ResponsePoint, metric string, opts ChartOptions) (string, error) {
	values := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Defined {
			values = append(values, p.Value)
		}
	}
	if len(values) == 0 {
		return "", fmt.Errorf("%w: %s is undefined over the whole range", dynamo.ErrUndefinedResult, metric)
	}

	caption := opts.Caption
	if caption == "" {
		caption = fmt.Sprintf("%s vs λ ∈ [%.3g, %.3g]", metric, points[0].ArrivalRate, points[len(points)-1].ArrivalRate)
	}
	return asciigraph.Plot(values, chartOptions(opts, caption, seriesColors[:1])...), nil
}

func chartOptions(opts ChartOptions, caption string, colors []asciigraph.AnsiColor) []asciigraph.Option {
	out := []asciigraph.Option{
		asciigraph.Caption(caption),
		asciigraph.Precision(4),
		asciigraph.SeriesColors(colors...),
	}
	if opts.Width > 0 {
		out = append(out, asciigraph.Width(opts.Width))
	}
	if opts.Height > 0 {
		out = append(out, asciigraph.Height(opts.Height))
	}
	return out
}
