package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/integrators"
	"github.com/san-kum/queuesim/internal/metrics"
)

// Registry maps names used in configuration files and on the command line to
// integrator and transient metric factories. Every lookup builds a fresh
// instance, since integrators keep per-run scratch space.
type Registry struct {
	integrators map[string]func() dynamo.Integrator
	metrics     map[string]func(ref dynamo.State) dynamo.Metric
}

// adaptiveTolerance is the local error bound of the rk45 integrator.
const adaptiveTolerance = 1e-9

func NewRegistry() *Registry {
	r := &Registry{
		integrators: make(map[string]func() dynamo.Integrator),
		metrics:     make(map[string]func(dynamo.State) dynamo.Metric),
	}

	r.integrators["rk4"] = func() dynamo.Integrator { return integrators.NewRK4() }
	r.integrators["euler"] = func() dynamo.Integrator { return integrators.NewEuler() }
	r.integrators["rk45"] = func() dynamo.Integrator { return integrators.NewRK45(adaptiveTolerance) }

	r.metrics["mean_occupancy"] = func(dynamo.State) dynamo.Metric { return metrics.NewMeanOccupancy() }
	r.metrics["peak_blocking"] = func(dynamo.State) dynamo.Metric { return metrics.NewPeakBlocking() }
	r.metrics["steady_state_gap"] = func(ref dynamo.State) dynamo.Metric { return metrics.NewSteadyStateGap(ref) }

	return r
}

func (r *Registry) GetIntegrator(name string) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(), nil
}

// IntegratorFactory returns the constructor behind name, for callers that
// build one integrator per concurrent run.
func (r *Registry) IntegratorFactory(name string) (func() dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn, nil
}

func (r *Registry) ListIntegrators() []string {
	return sortedKeys(r.integrators)
}

// DefaultMetrics builds every registered transient metric. ref is the
// steady-state vector the gap metric compares against.
func (r *Registry) DefaultMetrics(ref dynamo.State) []dynamo.Metric {
	out := make([]dynamo.Metric, 0, len(r.metrics))
	for _, name := range sortedKeys(r.metrics) {
		out = append(out, r.metrics[name](ref))
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
