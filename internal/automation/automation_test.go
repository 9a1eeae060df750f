package automation

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
)

const batchYAML = `
name: capacity study
description: queue room against blocking
runs:
  - name: baseline
    preset: scenario_a
  - name: more room
    preset: scenario_a
    queue_capacity: 6
  - preset: mm11
    initial_state: [0, 1]
  - name: broken
    channel_count: 0
`

func quietRunner() *Runner {
	return NewRunner(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParseBatch(t *testing.T) {
	b, err := ParseBatch([]byte(batchYAML))
	require.NoError(t, err)

	assert.Equal(t, "capacity study", b.Name)
	require.Len(t, b.Runs, 4)
	assert.Equal(t, "baseline", b.Runs[0].Name)
	assert.Equal(t, 3, b.Runs[0].Config.QueueCapacity)
	assert.Equal(t, 6, b.Runs[1].Config.QueueCapacity)
	assert.Equal(t, 30.0, b.Runs[1].Config.ArrivalRate)
	assert.Equal(t, "run_3", b.Runs[2].Name)
	assert.Equal(t, []float64{0, 1}, b.Runs[2].Config.InitialState)
	assert.Equal(t, 0, b.Runs[3].Config.ChannelCount)

	assert.Equal(t, 3, config.GetPreset("scenario_a").QueueCapacity, "overrides must not leak into presets")
}

func TestParseBatchErrors(t *testing.T) {
	_, err := ParseBatch([]byte("runs:\n  - preset: nope\n"))
	assert.ErrorContains(t, err, "unknown preset")

	_, err = ParseBatch([]byte("runs: {"))
	assert.Error(t, err)

	_, err = LoadBatch(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(batchYAML), 0644))

	b, err := LoadBatch(path)
	require.NoError(t, err)
	assert.Len(t, b.Runs, 4)
}

func TestRunBatch(t *testing.T) {
	b, err := ParseBatch([]byte(batchYAML))
	require.NoError(t, err)

	results, err := quietRunner().RunBatch(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, results, 4)

	for i, r := range results[:3] {
		require.NoError(t, r.Err, "run %d", i)
		assert.Equal(t, b.Runs[i].Name, r.Name)
	}
	assert.ErrorIs(t, results[3].Err, dynamo.ErrParameterBounds)
	assert.Nil(t, results[3].Result)

	base := results[0].Result.Steady.RejectionProbability
	roomy := results[1].Result.Steady.RejectionProbability
	assert.Less(t, roomy, base, "more queue room should reduce blocking")

	// mm11 starting busy.
	assert.Equal(t, dynamo.State{0, 1}, results[2].Result.Trajectory.States[0])
}

func TestRunBatchCancelled(t *testing.T) {
	b, err := ParseBatch([]byte(batchYAML))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = quietRunner().RunBatch(ctx, b)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunSweep(t *testing.T) {
	sw := &Sweep{Base: config.DefaultConfig(), Param: "queue_capacity", Min: 0, Max: 4, Steps: 5}
	results, err := quietRunner().RunSweep(context.Background(), sw)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for i, r := range results {
		assert.Equal(t, float64(i), r.ParamValue)
		assert.Len(t, r.Final, 3+i+1)
		if i > 0 {
			assert.Less(t, r.Metrics[metrics.KeyRejectionProbability], results[i-1].Metrics[metrics.KeyRejectionProbability])
		}
	}
}

func TestRunSweepArrivalRateHitsUndefinedPoint(t *testing.T) {
	sw := &Sweep{Base: config.DefaultConfig(), Param: "arrival_rate", Min: 5, Max: 25, Steps: 5}
	results, err := quietRunner().RunSweep(context.Background(), sw)
	require.NoError(t, err)

	assert.ErrorIs(t, results[2].SteadyErr, dynamo.ErrUndefinedResult)
	assert.NoError(t, results[1].SteadyErr)
	assert.NotContains(t, results[2].Metrics, metrics.KeyMeanQueueLength)
}

func TestRunSweepErrors(t *testing.T) {
	r := quietRunner()

	_, err := r.RunSweep(context.Background(), &Sweep{Base: config.DefaultConfig(), Param: "horizon", Min: 1, Max: 2, Steps: 3})
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)

	_, err = r.RunSweep(context.Background(), &Sweep{Base: config.DefaultConfig(), Param: "arrival_rate", Min: 1, Max: 2, Steps: 1})
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)

	_, err = r.RunSweep(context.Background(), &Sweep{Base: config.DefaultConfig(), Param: "channel_count", Min: 0, Max: 2, Steps: 3})
	assert.ErrorIs(t, err, dynamo.ErrParameterBounds)
}

func TestRunMonteCarlo(t *testing.T) {
	mc := &MonteCarloConfig{
		Base:      config.GetPreset("long_horizon"),
		Trials:    12,
		Seed:      7,
		Tolerance: 1e-6,
	}
	results, err := quietRunner().RunMonteCarlo(context.Background(), mc)
	require.NoError(t, err)
	require.Len(t, results, 12)

	settled, unsettled := MonteCarloStats(results)
	assert.Equal(t, 12, settled)
	assert.Zero(t, unsettled)

	for i, r := range results {
		assert.Equal(t, i, r.TrialID)
		assert.Len(t, r.Initial, 7)
	}

	again, err := quietRunner().RunMonteCarlo(context.Background(), mc)
	require.NoError(t, err)
	assert.Equal(t, results[5].Initial, again[5].Initial, "a fixed seed must reproduce the draws")
}

func TestRunMonteCarloShortHorizon(t *testing.T) {
	mc := &MonteCarloConfig{Base: config.GetPreset("scenario_a"), Trials: 4, Seed: 1, Tolerance: 1e-12}
	mc.Base.HorizonTime = 0.01
	mc.Base.IterationCount = 1

	results, err := quietRunner().RunMonteCarlo(context.Background(), mc)
	require.NoError(t, err)
	settled, unsettled := MonteCarloStats(results)
	assert.Zero(t, settled)
	assert.Equal(t, 4, unsettled)
}

func TestRunMonteCarloValidation(t *testing.T) {
	r := quietRunner()
	for _, n := range []int{0, -1} {
		_, err := r.RunMonteCarlo(context.Background(), &MonteCarloConfig{Base: config.GetPreset("mm11"), Trials: n, Seed: 1})
		assert.ErrorIs(t, err, dynamo.ErrParameterBounds, "trials=%d", n)
	}

	base := config.GetPreset("mm11")
	base.Integrator = "leapfrog"
	_, err := r.RunMonteCarlo(context.Background(), &MonteCarloConfig{Base: base, Trials: 2, Seed: 1})
	assert.ErrorContains(t, err, "unknown integrator")
}

func TestRunMonteCarloCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := quietRunner().RunMonteCarlo(ctx, &MonteCarloConfig{Base: config.GetPreset("mm11"), Trials: 3, Seed: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
