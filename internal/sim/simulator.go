package sim

import (
	"fmt"
	"math"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// Simulator advances an occupancy vector through time under a master
// equation. It owns integrator scratch space and is not safe for concurrent
// use; build one per run.
type Simulator struct {
	sys        dynamo.System
	integrator dynamo.Integrator
	metrics    []dynamo.Metric
	observers  []dynamo.Observer
}

func New(sys dynamo.System, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		sys:        sys,
		integrator: integrator,
		metrics:    make([]dynamo.Metric, 0),
		observers:  make([]dynamo.Observer, 0),
	}
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// Run integrates from p0 for cfg.Steps steps. p0 need not be normalized; it
// is divided by its sum before the first step, and so is every step result,
// which keeps probability mass from drifting over long runs.
//
// Either the full trajectory of cfg.Steps+1 vectors is returned or an error
// and no trajectory.
func (s *Simulator) Run(p0 dynamo.State, cfg Config) (*dynamo.Trajectory, error) {
	if err := s.validateConfig(cfg); err != nil {
		return nil, err
	}
	if dim := s.sys.StateDim(); len(p0) != dim {
		return nil, fmt.Errorf("%w: initial vector has %d entries, generator has %d states", dynamo.ErrDimensionMismatch, len(p0), dim)
	}

	p, err := p0.Normalized()
	if err != nil {
		return nil, err
	}

	tr := &dynamo.Trajectory{
		Times:   make([]float64, 0, cfg.Steps+1),
		States:  make([]dynamo.State, 0, cfg.Steps+1),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	dt := cfg.StepSize
	s.emit(tr, p, 0)

	for i := 0; i < cfg.Steps; i++ {
		next, mass, err := s.advance(p, i, dt)
		if err != nil {
			return nil, err
		}
		tr.MassDrift = math.Max(tr.MassDrift, math.Abs(mass-1))
		p = next
		s.emit(tr, p, float64(i+1)*dt)
	}

	for _, m := range s.metrics {
		tr.Metrics[m.Name()] = m.Value()
	}

	return tr, nil
}

// advance takes step i from p and renormalizes the result, returning the
// pre-normalization mass alongside it.
func (s *Simulator) advance(p dynamo.State, i int, dt float64) (dynamo.State, float64, error) {
	t := float64(i) * dt
	next := s.integrator.Step(s.sys, p, t, dt)

	mass := next.Sum()
	if !next.IsValid() || math.IsNaN(mass) || mass <= 0 {
		return nil, 0, &dynamo.SimulationError{Step: i + 1, Time: t + dt, Wrapped: dynamo.ErrInvalidState}
	}
	for j := range next {
		next[j] /= mass
	}
	return next, mass, nil
}

func (s *Simulator) emit(tr *dynamo.Trajectory, p dynamo.State, t float64) {
	tr.States = append(tr.States, p)
	tr.Times = append(tr.Times, t)
	for _, m := range s.metrics {
		m.Observe(p, t)
	}
	for _, obs := range s.observers {
		obs.OnStep(p, t)
	}
}

func (s *Simulator) validateConfig(cfg Config) error {
	if math.IsNaN(cfg.StepSize) || math.IsInf(cfg.StepSize, 0) || cfg.StepSize <= 0 {
		return &dynamo.ParameterError{Field: "step_size", Value: cfg.StepSize, Reason: "must be a positive finite number"}
	}
	if cfg.Steps < 0 {
		return &dynamo.ParameterError{Field: "iteration_count", Value: float64(cfg.Steps), Reason: "must not be negative"}
	}
	return nil
}

// RunWithCallback integrates like Run but hands every vector to callback
// instead of recording it. Returning false from callback stops the run early.
func (s *Simulator) RunWithCallback(p0 dynamo.State, cfg Config, callback func(p dynamo.State, t float64) bool) error {
	if err := s.validateConfig(cfg); err != nil {
		return err
	}
	if dim := s.sys.StateDim(); len(p0) != dim {
		return fmt.Errorf("%w: initial vector has %d entries, generator has %d states", dynamo.ErrDimensionMismatch, len(p0), dim)
	}

	p, err := p0.Normalized()
	if err != nil {
		return err
	}

	dt := cfg.StepSize
	if !callback(p, 0) {
		return nil
	}
	for i := 0; i < cfg.Steps; i++ {
		next, _, err := s.advance(p, i, dt)
		if err != nil {
			return err
		}
		p = next
		if !callback(p, float64(i+1)*dt) {
			return nil
		}
	}
	return nil
}
