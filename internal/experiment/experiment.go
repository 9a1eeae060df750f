package experiment

import (
	"errors"
	"fmt"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
	"github.com/san-kum/queuesim/internal/sim"
)

// Result carries the three artifacts of a run: the generator, the transient
// trajectory and the steady-state characteristics.
type Result struct {
	Config     *config.Config
	Scenario   models.Scenario
	Generator  *models.Generator
	Trajectory *dynamo.Trajectory
	// Steady is nil when the closed form is undefined for the scenario;
	// SteadyErr then holds the reason.
	Steady    *metrics.SteadyState
	SteadyErr error
}

// Experiment runs one configuration end to end.
type Experiment struct {
	cfg       *config.Config
	registry  *Registry
	observers []dynamo.Observer
}

func New(cfg *config.Config, registry *Registry) *Experiment {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Experiment{cfg: cfg, registry: registry}
}

// AddObserver registers an observer that sees every emitted vector.
func (e *Experiment) AddObserver(o dynamo.Observer) {
	e.observers = append(e.observers, o)
}

// Run validates the configuration, builds the generator, integrates the
// master equation and analyzes the steady state.
//
// An undefined steady-state metric does not fail the run: the transient
// result is still meaningful, so it is reported in Result.SteadyErr.
func (e *Experiment) Run() (*Result, error) {
	s, err := e.cfg.Scenario()
	if err != nil {
		return nil, err
	}
	p0, err := e.cfg.InitialVector(s)
	if err != nil {
		return nil, err
	}
	integrator, err := e.registry.GetIntegrator(e.cfg.Integrator)
	if err != nil {
		return nil, err
	}

	gen, err := models.NewGenerator(s)
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}

	res := &Result{Config: e.cfg, Scenario: s, Generator: gen}
	res.Steady, res.SteadyErr = metrics.Analyze(s)
	if res.SteadyErr != nil && !errors.Is(res.SteadyErr, dynamo.ErrUndefinedResult) {
		return nil, res.SteadyErr
	}

	simulator := sim.New(models.NewKolmogorov(gen), integrator)
	if res.Steady != nil {
		for _, m := range e.registry.DefaultMetrics(res.Steady.Probabilities()) {
			simulator.AddMetric(m)
		}
	}
	for _, o := range e.observers {
		simulator.AddObserver(o)
	}

	res.Trajectory, err = simulator.Run(p0, sim.ConfigFor(s))
	if err != nil {
		return nil, fmt.Errorf("integrate: %w", err)
	}
	return res, nil
}

// Metrics merges the steady-state map with the transient metrics of the
// trajectory.
func (r *Result) Metrics() metrics.Map {
	m := metrics.Map{}
	if r.Steady != nil {
		m = r.Steady.Map()
	}
	if r.Trajectory != nil {
		for k, v := range r.Trajectory.Metrics {
			m[k] = v
		}
	}
	return m
}
