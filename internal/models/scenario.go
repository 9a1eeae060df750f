package models

import (
	"math"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// Scenario holds the parameters of one M/M/c/K system and its integration
// window. It is validated by NewScenario and read-only afterwards.
type Scenario struct {
	arrivalRate float64
	serviceRate float64
	channels    int
	capacity    int
	horizon     float64
	steps       int
	stepSize    float64
}

// NewScenario validates and builds a scenario.
//
// lambda and mu are the arrival and per-channel service rates, channels the
// number of parallel servers c, capacity the queue bound K, horizon the
// simulated time T, steps the iteration count N and stepSize the RK4 step h.
func NewScenario(lambda, mu float64, channels, capacity int, horizon float64, steps int, stepSize float64) (Scenario, error) {
	if err := positive("arrival_rate", lambda); err != nil {
		return Scenario{}, err
	}
	if err := positive("service_rate", mu); err != nil {
		return Scenario{}, err
	}
	if channels < 1 {
		return Scenario{}, &dynamo.ParameterError{Field: "channel_count", Value: float64(channels), Reason: "must be at least 1"}
	}
	if capacity < 0 {
		return Scenario{}, &dynamo.ParameterError{Field: "queue_capacity", Value: float64(capacity), Reason: "must not be negative"}
	}
	if err := positive("horizon_time", horizon); err != nil {
		return Scenario{}, err
	}
	if steps < 0 {
		return Scenario{}, &dynamo.ParameterError{Field: "iteration_count", Value: float64(steps), Reason: "must not be negative"}
	}
	if err := positive("step_size", stepSize); err != nil {
		return Scenario{}, err
	}

	return Scenario{
		arrivalRate: lambda,
		serviceRate: mu,
		channels:    channels,
		capacity:    capacity,
		horizon:     horizon,
		steps:       steps,
		stepSize:    stepSize,
	}, nil
}

func positive(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return &dynamo.ParameterError{Field: field, Value: v, Reason: "must be a positive finite number"}
	}
	return nil
}

func (s Scenario) ArrivalRate() float64 { return s.arrivalRate }
func (s Scenario) ServiceRate() float64 { return s.serviceRate }
func (s Scenario) Channels() int        { return s.channels }
func (s Scenario) Capacity() int        { return s.capacity }
func (s Scenario) Horizon() float64     { return s.horizon }
func (s Scenario) Steps() int           { return s.steps }
func (s Scenario) StepSize() float64    { return s.stepSize }

// MaxState is S = c+K, the index of the blocking state.
func (s Scenario) MaxState() int { return s.channels + s.capacity }

// NumStates is S+1, the dimension of the generator and of every occupancy vector.
func (s Scenario) NumStates() int { return s.MaxState() + 1 }

// Load is the load factor ρ = λ/μ.
func (s Scenario) Load() float64 { return s.arrivalRate / s.serviceRate }

// IsLossSystem reports whether the scenario has no waiting room (K = 0).
func (s Scenario) IsLossSystem() bool { return s.capacity == 0 }

// EmptySystem returns the occupancy vector with all mass on state 0.
func (s Scenario) EmptySystem() dynamo.State {
	p := make(dynamo.State, s.NumStates())
	p[0] = 1
	return p
}

// WithArrivalRate returns a copy of s with a different λ, validated the same
// way NewScenario validates it.
func (s Scenario) WithArrivalRate(lambda float64) (Scenario, error) {
	return NewScenario(lambda, s.serviceRate, s.channels, s.capacity, s.horizon, s.steps, s.stepSize)
}

// WithShape returns a copy of s with a different channel count and queue capacity.
func (s Scenario) WithShape(channels, capacity int) (Scenario, error) {
	return NewScenario(s.arrivalRate, s.serviceRate, channels, capacity, s.horizon, s.steps, s.stepSize)
}
