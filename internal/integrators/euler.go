package integrators

import "github.com/san-kum/queuesim/internal/dynamo"

// Euler is the explicit first-order method, kept for integrator comparisons.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys dynamo.System, p dynamo.State, t float64, dt float64) dynamo.State {
	dp := sys.Derive(p, t)
	result := make(dynamo.State, len(p))
	for i := range p {
		result[i] = p[i] + dt*dp[i]
	}
	return result
}
