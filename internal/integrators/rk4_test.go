package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// twoState is the chain 0 ⇄ 1 with rates a (0→1) and b (1→0). Its exact
// solution from p(0) = (1, 0) is p1(t) = a/(a+b)·(1 − e^{−(a+b)t}).
type twoState struct{ a, b float64 }

func (s *twoState) StateDim() int { return 2 }

func (s *twoState) Derive(p dynamo.State, t float64) dynamo.State {
	flow := s.a*p[0] - s.b*p[1]
	return dynamo.State{-flow, flow}
}

func exactTwoState(a, b, t float64) float64 {
	return a / (a + b) * (1 - math.Exp(-(a+b)*t))
}

func TestRK4Accuracy(t *testing.T) {
	sys := &twoState{a: 2, b: 5}
	integ := NewRK4()

	p := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		p = integ.Step(sys, p, float64(i)*dt, dt)
	}

	expected := exactTwoState(2, 5, float64(steps)*dt)
	if math.Abs(p[1]-expected) > 1e-8 {
		t.Errorf("p1 error too large: got %.10f, expected %.10f", p[1], expected)
	}
	if math.Abs(p.Sum()-1) > 1e-12 {
		t.Errorf("mass not conserved: %v", p.Sum())
	}
}

func TestRK4_BeatsEuler(t *testing.T) {
	sys := &twoState{a: 3, b: 1}
	rk4 := NewRK4()
	euler := NewEuler()

	p4 := dynamo.State{1, 0}
	pe := dynamo.State{1, 0}
	dt := 0.05
	for i := 0; i < 20; i++ {
		p4 = rk4.Step(sys, p4, float64(i)*dt, dt)
		pe = euler.Step(sys, pe, float64(i)*dt, dt)
	}

	exact := exactTwoState(3, 1, 1.0)
	err4 := math.Abs(p4[1] - exact)
	errE := math.Abs(pe[1] - exact)
	if err4 >= errE {
		t.Errorf("RK4 error %e should be below Euler error %e", err4, errE)
	}
}

func TestRK4_ScratchResize(t *testing.T) {
	integ := NewRK4()
	small := integ.Step(&twoState{a: 1, b: 1}, dynamo.State{1, 0}, 0, 0.1)
	if len(small) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(small))
	}

	three := &chain3{}
	out := integ.Step(three, dynamo.State{1, 0, 0}, 0, 0.1)
	if len(out) != 3 {
		t.Fatalf("expected 3 entries after resize, got %d", len(out))
	}
}

type chain3 struct{}

func (c *chain3) StateDim() int { return 3 }
func (c *chain3) Derive(p dynamo.State, t float64) dynamo.State {
	return dynamo.State{-p[0], p[0] - p[1], p[1]}
}
