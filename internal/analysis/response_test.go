package analysis

import (
	"errors"
	"strings"
	"testing"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
)

func TestResponseCurve(t *testing.T) {
	base, err := models.NewScenario(30, 5, 3, 3, 1, 100, 0.01)
	if err != nil {
		t.Fatal(err)
	}

	// λ = 15 puts ρ exactly on the channel count.
	points, err := ResponseCurve(base, metrics.KeyRejectionProbability, 5, 25, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 5 {
		t.Fatalf("expected 5 points, got %d", len(points))
	}
	if points[2].ArrivalRate != 15 || points[2].Defined {
		t.Errorf("expected undefined point at λ=15, got %+v", points[2])
	}
	if !points[1].Defined || !points[3].Defined || points[3].Value <= points[1].Value {
		t.Errorf("rejection should grow with arrival rate: %+v", points)
	}

	plot := ResponseToASCII(points, 20, 5)
	if strings.Count(plot, "\n") != 5 || strings.Count(plot, "•") != 4 {
		t.Errorf("unexpected plot:\n%s", plot)
	}
}

func TestResponseCurveErrors(t *testing.T) {
	base, _ := models.NewScenario(30, 5, 3, 3, 1, 100, 0.01)

	if _, err := ResponseCurve(base, "no_such_metric", 1, 2, 3); err == nil {
		t.Error("expected unknown metric error")
	}
	if _, err := ResponseCurve(base, metrics.KeyLoadFactor, 2, 1, 3); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for reversed range, got %v", err)
	}
	if _, err := ResponseCurve(base, metrics.KeyLoadFactor, 0, 1, 3); !errors.Is(err, dynamo.ErrParameterBounds) {
		t.Errorf("expected ErrParameterBounds for zero arrival rate, got %v", err)
	}
}

func TestPortrait(t *testing.T) {
	tr := &dynamo.Trajectory{
		Times:  []float64{0, 1, 2},
		States: []dynamo.State{{1, 0, 0}, {0.5, 0.3, 0.2}, {0.2, 0.3, 0.5}},
	}
	p, err := NewPortrait(tr, 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Points) != 3 || p.Points[2] != (Point{X: 0.2, Y: 0.5}) {
		t.Errorf("unexpected points %+v", p.Points)
	}

	if _, err := NewPortrait(tr, 0, 3); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}

	art := PortraitToASCII(p, 11, 6)
	if strings.Count(art, "•") != 3 {
		t.Errorf("expected three plotted points:\n%s", art)
	}
}
