package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// decay moves mass from state 0 to state 1 at rate 1.
type decay struct{}

func (d *decay) Derive(p dynamo.State, t float64) dynamo.State {
	return dynamo.State{-p[0], p[0]}
}

func (d *decay) StateDim() int { return 2 }

type eulerIntegrator struct{}

func (e *eulerIntegrator) Step(sys dynamo.System, p dynamo.State, t float64, dt float64) dynamo.State {
	dp := sys.Derive(p, t)
	return dynamo.State{p[0] + dt*dp[0], p[1] + dt*dp[1]}
}

// leaky loses a fraction of mass on every step, which renormalization must undo.
type leaky struct{}

func (l *leaky) Step(sys dynamo.System, p dynamo.State, t float64, dt float64) dynamo.State {
	return p.Scale(0.9)
}

type exploding struct{ after int }

func (e *exploding) Step(sys dynamo.System, p dynamo.State, t float64, dt float64) dynamo.State {
	e.after--
	if e.after < 0 {
		return dynamo.State{math.NaN(), 0}
	}
	return p.Clone()
}

func TestSimulatorRun(t *testing.T) {
	s := New(&decay{}, &eulerIntegrator{})

	tr, err := s.Run(dynamo.State{1.0, 0.0}, Config{StepSize: 0.1, Steps: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if tr.Len() != 11 {
		t.Errorf("expected 11 states, got %d", tr.Len())
	}
	if len(tr.Times) != 11 {
		t.Errorf("expected 11 times, got %d", len(tr.Times))
	}
	if math.Abs(tr.Times[10]-1.0) > 1e-12 {
		t.Errorf("final time = %v, want 1.0", tr.Times[10])
	}

	expected := math.Exp(-1.0)
	if math.Abs(tr.Final()[0]-expected) > 0.05 {
		t.Errorf("expected final p0 ~%.4f, got %.4f", expected, tr.Final()[0])
	}
}

func TestSimulatorNormalizesInitialVector(t *testing.T) {
	s := New(&decay{}, &eulerIntegrator{})

	tr, err := s.Run(dynamo.State{3, 1}, Config{StepSize: 0.1, Steps: 0})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected a single vector for zero steps, got %d", tr.Len())
	}
	if tr.States[0][0] != 0.75 || tr.States[0][1] != 0.25 {
		t.Errorf("initial vector not renormalized: %v", tr.States[0])
	}
}

func TestSimulatorRenormalizesEveryStep(t *testing.T) {
	s := New(&decay{}, &leaky{})

	tr, err := s.Run(dynamo.State{0.5, 0.5}, Config{StepSize: 0.1, Steps: 50})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for k, p := range tr.States {
		if math.Abs(p.Sum()-1) > MassTolerance {
			t.Fatalf("vector %d sums to %v", k, p.Sum())
		}
	}
	if math.Abs(tr.MassDrift-0.1) > 1e-12 {
		t.Errorf("MassDrift = %v, want 0.1", tr.MassDrift)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s := New(&decay{}, &eulerIntegrator{})

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero step", Config{StepSize: 0, Steps: 10}},
		{"negative step", Config{StepSize: -0.1, Steps: 10}},
		{"nan step", Config{StepSize: math.NaN(), Steps: 10}},
		{"negative steps", Config{StepSize: 0.1, Steps: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := s.Run(dynamo.State{1.0, 0.0}, tt.cfg)
			if !errors.Is(err, dynamo.ErrParameterBounds) {
				t.Errorf("expected ErrParameterBounds, got %v", err)
			}
			if tr != nil {
				t.Error("no trajectory may be returned on failure")
			}
		})
	}
}

func TestSimulatorShapeMismatch(t *testing.T) {
	s := New(&decay{}, &eulerIntegrator{})
	_, err := s.Run(dynamo.State{1, 0, 0}, Config{StepSize: 0.1, Steps: 1})
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestSimulatorInvalidInitial(t *testing.T) {
	s := New(&decay{}, &eulerIntegrator{})
	for _, p0 := range []dynamo.State{{0, 0}, {-1, 2}, {math.Inf(1), 0}} {
		if _, err := s.Run(p0, Config{StepSize: 0.1, Steps: 1}); !errors.Is(err, dynamo.ErrInvalidState) {
			t.Errorf("p0=%v: expected ErrInvalidState, got %v", p0, err)
		}
	}
}

func TestSimulatorDivergence(t *testing.T) {
	s := New(&decay{}, &exploding{after: 3})
	tr, err := s.Run(dynamo.State{1, 0}, Config{StepSize: 0.1, Steps: 10})
	if tr != nil {
		t.Error("expected no partial trajectory")
	}
	var se *dynamo.SimulationError
	if !errors.As(err, &se) {
		t.Fatalf("expected SimulationError, got %v", err)
	}
	if se.Step != 4 {
		t.Errorf("failure reported at step %d, want 4", se.Step)
	}
	if !errors.Is(err, dynamo.ErrInvalidState) {
		t.Error("SimulationError should wrap ErrInvalidState")
	}
}

type countMetric struct {
	count int
	sum   float64
}

func (c *countMetric) Name() string { return "test" }
func (c *countMetric) Observe(p dynamo.State, t float64) {
	c.count++
	c.sum += p[0]
}
func (c *countMetric) Value() float64 {
	if c.count == 0 {
		return 0
	}
	return c.sum / float64(c.count)
}
func (c *countMetric) Reset() {
	c.count = 0
	c.sum = 0
}

func TestSimulatorMetrics(t *testing.T) {
	s := New(&decay{}, &eulerIntegrator{})

	metric := &countMetric{}
	s.AddMetric(metric)

	tr, err := s.Run(dynamo.State{1.0, 0.0}, Config{StepSize: 0.1, Steps: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := tr.Metrics["test"]; !ok {
		t.Error("metric not found in trajectory")
	}
	if metric.count != 11 {
		t.Errorf("expected 11 observations, got %d", metric.count)
	}

	if _, err := s.Run(dynamo.State{1.0, 0.0}, Config{StepSize: 0.1, Steps: 10}); err != nil {
		t.Fatal(err)
	}
	if metric.count != 11 {
		t.Errorf("metric should be reset between runs, got %d observations", metric.count)
	}
}

func TestSimulatorRestartable(t *testing.T) {
	run := func() *dynamo.Trajectory {
		tr, err := New(&decay{}, &eulerIntegrator{}).Run(dynamo.State{2, 1}, Config{StepSize: 0.05, Steps: 40})
		if err != nil {
			t.Fatal(err)
		}
		return tr
	}
	a, b := run(), run()
	for k := range a.States {
		for i := range a.States[k] {
			if a.States[k][i] != b.States[k][i] {
				t.Fatalf("run differs at step %d state %d", k, i)
			}
		}
	}
}

func TestRunWithCallback(t *testing.T) {
	s := New(&decay{}, &eulerIntegrator{})
	calls := 0
	err := s.RunWithCallback(dynamo.State{1, 0}, Config{StepSize: 0.1, Steps: 10}, func(p dynamo.State, t float64) bool {
		calls++
		return calls < 5
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 5 {
		t.Errorf("expected callback to stop after 5 calls, got %d", calls)
	}
}

func TestEnsemble(t *testing.T) {
	e := NewEnsemble(func() dynamo.Integrator { return &eulerIntegrator{} })
	jobs := make([]Job, 8)
	for i := range jobs {
		jobs[i] = Job{System: &decay{}, Initial: dynamo.State{1, 0}, Config: Config{StepSize: 0.1, Steps: i}}
	}

	results, err := e.Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	for i, tr := range results {
		if tr.Len() != i+1 {
			t.Errorf("job %d: expected %d vectors, got %d", i, i+1, tr.Len())
		}
	}

	jobs[3].Initial = dynamo.State{1}
	if _, err := e.Run(context.Background(), jobs); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected failing job to surface, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Run(ctx, jobs[:2]); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
