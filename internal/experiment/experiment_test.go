package experiment

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
)

type counter struct{ calls int }

func (c *counter) OnStep(p dynamo.State, t float64) { c.calls++ }

func TestRunDefault(t *testing.T) {
	obs := &counter{}
	e := New(config.DefaultConfig(), nil)
	e.AddObserver(obs)

	res, err := e.Run()
	require.NoError(t, err)

	assert.Equal(t, 7, res.Generator.Dim())
	assert.Equal(t, 101, res.Trajectory.Len())
	assert.Equal(t, 101, obs.calls)
	require.NotNil(t, res.Steady)
	assert.NoError(t, res.SteadyErr)

	for _, p := range res.Trajectory.States {
		assert.InDelta(t, 1.0, p.Sum(), 1e-6)
	}

	m := res.Metrics()
	assert.InDelta(t, 288.0/565, m[metrics.KeyRejectionProbability], 1e-12)
	assert.Contains(t, m, "mean_occupancy")
	assert.Contains(t, m, "peak_blocking")
	assert.Contains(t, m, "steady_state_gap")
}

func TestRunConvergesOnLongHorizon(t *testing.T) {
	res, err := New(config.GetPreset("long_horizon"), nil).Run()
	require.NoError(t, err)

	gap := res.Trajectory.Final().MaxAbsDiff(res.Steady.Probabilities())
	assert.Less(t, gap, 1e-6)
	assert.Less(t, res.Metrics()["steady_state_gap"], 1e-6)
}

func TestRunUndefinedSteadyState(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ArrivalRate = 15
	cfg.QueueCapacity = 2

	res, err := New(cfg, nil).Run()
	require.NoError(t, err)
	assert.Nil(t, res.Steady)
	assert.ErrorIs(t, res.SteadyErr, dynamo.ErrUndefinedResult)
	assert.Equal(t, 101, res.Trajectory.Len())
	assert.NotContains(t, res.Metrics(), "steady_state_gap")
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		target error
	}{
		{"bad channels", func(c *config.Config) { c.ChannelCount = 0 }, dynamo.ErrParameterBounds},
		{"bad step", func(c *config.Config) { c.StepSize = math.NaN() }, dynamo.ErrParameterBounds},
		{"short initial state", func(c *config.Config) { c.InitialState = []float64{1} }, dynamo.ErrDimensionMismatch},
		{"negative weight", func(c *config.Config) { c.InitialState = []float64{1, -1, 0, 0, 0, 0, 1} }, dynamo.ErrInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			res, err := New(cfg, nil).Run()
			assert.Nil(t, res)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}

	cfg := config.DefaultConfig()
	cfg.Integrator = "leapfrog"
	_, err := New(cfg, nil).Run()
	assert.ErrorContains(t, err, "unknown integrator")
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"euler", "rk4", "rk45"}, r.ListIntegrators())

	a, err := r.GetIntegrator("rk4")
	require.NoError(t, err)
	b, err := r.GetIntegrator("rk4")
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	_, err = r.IntegratorFactory("verlet")
	assert.Error(t, err)

	ms := r.DefaultMetrics(dynamo.State{1, 0})
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = m.Name()
	}
	assert.Equal(t, []string{"mean_occupancy", "peak_blocking", "steady_state_gap"}, names)
}

func TestRunAdaptiveOnCoarseGrid(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Integrator = "rk45"
	cfg.HorizonTime = 10
	cfg.StepSize = 0.1
	cfg.IterationCount = 100

	res, err := New(cfg, nil).Run()
	require.NoError(t, err)
	assert.Equal(t, 101, res.Trajectory.Len())
	assert.Less(t, res.Trajectory.Final().MaxAbsDiff(res.Steady.Probabilities()), 1e-6)
}
