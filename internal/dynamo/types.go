package dynamo

import (
	"fmt"
	"math"
)

// State is an occupancy vector indexed by state number: entry i is the
// probability that the system holds exactly i requests.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sum returns the total probability mass.
func (s State) Sum() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v
	}
	return sum
}

// MaxAbsDiff returns the largest entrywise distance between s and other.
// Vectors of different length are compared over the shorter prefix.
func (s State) MaxAbsDiff(other State) float64 {
	n := len(s)
	if len(other) < n {
		n = len(other)
	}
	d := 0.0
	for i := 0; i < n; i++ {
		d = math.Max(d, math.Abs(s[i]-other[i]))
	}
	return d
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

// Normalized returns a copy of s divided by its sum. Negative, NaN or Inf
// weights and a non-positive total are rejected with ErrInvalidState.
func (s State) Normalized() (State, error) {
	sum := 0.0
	for i, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: weight %d is %v", ErrInvalidState, i, v)
		}
		sum += v
	}
	if sum <= 0 {
		return nil, fmt.Errorf("%w: total mass is %v", ErrInvalidState, sum)
	}
	return s.Scale(1 / sum), nil
}

// Mean returns the expected state index, i.e. the mean number of requests.
func (s State) Mean() float64 {
	m := 0.0
	for i, v := range s {
		m += float64(i) * v
	}
	return m
}

// System is a linear master equation dp/dt = f(p).
type System interface {
	Derive(p State, t float64) State
	StateDim() int
}

type Integrator interface {
	Step(sys System, p State, t float64, dt float64) State
}

type Metric interface {
	Name() string
	Observe(p State, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(p State, t float64)
}

// Trajectory is the ordered sequence of (time, occupancy vector) pairs produced
// by one integration run. Times[k] belongs to States[k].
type Trajectory struct {
	Times     []float64
	States    []State
	Metrics   map[string]float64
	MassDrift float64
}

func (tr *Trajectory) Len() int { return len(tr.States) }

// Final returns the last vector of the trajectory, or nil if it is empty.
func (tr *Trajectory) Final() State {
	if len(tr.States) == 0 {
		return nil
	}
	return tr.States[len(tr.States)-1]
}

// Series extracts the time series of state i.
func (tr *Trajectory) Series(i int) []float64 {
	out := make([]float64, len(tr.States))
	for k, p := range tr.States {
		if i < len(p) {
			out[k] = p[i]
		}
	}
	return out
}
