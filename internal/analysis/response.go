package analysis

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
)

// ResponsePoint is one steady-state metric value at a given arrival rate.
// Defined is false where the closed form has no value, e.g. at ρ = c.
type ResponsePoint struct {
	ArrivalRate float64
	Value       float64
	Defined     bool
}

// ResponseCurve evaluates the steady-state metric named key for steps arrival
// rates spread evenly over [minRate, maxRate], keeping every other parameter
// of base.
func ResponseCurve(base models.Scenario, key string, minRate, maxRate float64, steps int) ([]ResponsePoint, error) {
	if steps < 2 {
		steps = 2
	}
	if !(maxRate > minRate) {
		return nil, &dynamo.ParameterError{Field: "arrival_rate", Value: maxRate, Reason: "range end must exceed its start"}
	}
	stride := (maxRate - minRate) / float64(steps-1)

	points := make([]ResponsePoint, 0, steps)
	for i := 0; i < steps; i++ {
		lambda := minRate + float64(i)*stride
		s, err := base.WithArrivalRate(lambda)
		if err != nil {
			return nil, err
		}
		ss, err := metrics.Analyze(s)
		if errors.Is(err, dynamo.ErrUndefinedResult) {
			points = append(points, ResponsePoint{ArrivalRate: lambda})
			continue
		}
		if err != nil {
			return nil, err
		}
		v, ok := ss.Map()[key]
		if !ok {
			return nil, fmt.Errorf("unknown metric %q", key)
		}
		points = append(points, ResponsePoint{ArrivalRate: lambda, Value: v, Defined: true})
	}
	return points, nil
}

// ResponseToASCII draws the defined points of a response curve, one column
// per point.
func ResponseToASCII(data []ResponsePoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	var minVal, maxVal float64
	found := false
	for _, p := range data {
		if !p.Defined {
			continue
		}
		if !found {
			minVal, maxVal = p.Value, p.Value
			found = true
			continue
		}
		minVal = min(minVal, p.Value)
		maxVal = max(maxVal, p.Value)
	}
	if !found {
		return ""
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	canvas := newCanvas(width, height)
	for i, p := range data {
		if !p.Defined {
			continue
		}
		col := min(i*width/len(data), width-1)
		row := height - 1 - int((p.Value-minVal)/(maxVal-minVal)*float64(height-1))
		if row >= 0 && row < height {
			canvas[row][col] = '•'
		}
	}
	return canvasString(canvas)
}

func newCanvas(width, height int) [][]rune {
	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}
	return canvas
}

func canvasString(canvas [][]rune) string {
	var sb strings.Builder
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
