package integrators

import (
	"math"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// Dormand–Prince 5(4) tableau. Row 6 of dpA holds the fifth-order weights,
// so the last stage is evaluated at the new solution.
var (
	dpC = [7]float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	}
	// dpE is the fifth-order minus the fourth-order weights.
	dpE = [7]float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	}
)

// RK45 covers each output step with as many Dormand–Prince sub-steps as the
// local error estimate requires. Large output steps on stiff generators stay
// stable where fixed-step RK4 would blow up. Like RK4, an instance keeps
// scratch space and serves one run at a time.
type RK45 struct {
	Tol      float64
	MaxSteps int

	safety   float64
	minScale float64
	maxScale float64

	h        float64
	k        [7]dynamo.State
	scratch  dynamo.State
	rejected int
}

func NewRK45(tol float64) *RK45 {
	return &RK45{
		Tol:      tol,
		MaxSteps: 100000,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 5.0,
	}
}

// Rejected reports how many sub-steps failed the error test so far.
func (r *RK45) Rejected() int { return r.rejected }

func (r *RK45) ensureScratch(n int) {
	if len(r.scratch) != n {
		for s := range r.k {
			r.k[s] = make(dynamo.State, n)
		}
		r.scratch = make(dynamo.State, n)
		r.h = 0
	}
}

// Step integrates from t to t+dt. When the step size collapses or the
// sub-step budget runs out, the returned vector is NaN so the caller sees
// an invalid state.
func (r *RK45) Step(sys dynamo.System, p dynamo.State, t, dt float64) dynamo.State {
	r.ensureScratch(len(p))

	h := r.h
	if h <= 0 || h > dt {
		h = dt
	}
	x := p.Clone()
	remaining := dt
	for n := 0; remaining > 1e-12*dt; n++ {
		if n >= r.MaxSteps || h < 1e-14*dt {
			return failed(len(p))
		}
		h = math.Min(h, remaining)
		next, ratio := r.attempt(sys, x, t, h)
		if ratio <= 1 {
			x = next
			t += h
			remaining -= h
		} else {
			r.rejected++
		}
		h *= r.scale(ratio)
	}
	r.h = h
	return x
}

// attempt takes one sub-step of size h and returns the candidate and its
// error relative to the tolerance.
func (r *RK45) attempt(sys dynamo.System, x dynamo.State, t, h float64) (dynamo.State, float64) {
	for s := range r.k {
		for i := range x {
			acc := 0.0
			for j := 0; j < s; j++ {
				acc += dpA[s][j] * r.k[j][i]
			}
			r.scratch[i] = x[i] + h*acc
		}
		copy(r.k[s], sys.Derive(r.scratch, t+dpC[s]*h))
	}
	next := r.scratch.Clone()

	ratio := 0.0
	for i := range x {
		e := 0.0
		for s := range r.k {
			e += dpE[s] * r.k[s][i]
		}
		tol := r.Tol * (1 + math.Max(math.Abs(x[i]), math.Abs(next[i])))
		ratio = math.Max(ratio, math.Abs(h*e)/tol)
	}
	if math.IsNaN(ratio) {
		ratio = math.Inf(1)
	}
	return next, ratio
}

func (r *RK45) scale(ratio float64) float64 {
	if ratio == 0 {
		return r.maxScale
	}
	f := r.safety * math.Pow(ratio, -0.2)
	if ratio > 1 {
		return math.Max(r.minScale, math.Min(f, 1))
	}
	return math.Min(r.maxScale, math.Max(f, 1))
}

func failed(n int) dynamo.State {
	p := make(dynamo.State, n)
	for i := range p {
		p[i] = math.NaN()
	}
	return p
}
