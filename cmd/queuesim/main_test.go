package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/storage"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("QUEUESIM_CONFIG", "")
	root := newRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestMetricsCommand(t *testing.T) {
	out, err := execute(t, "metrics", "--preset", "mm11")
	require.NoError(t, err)
	assert.Contains(t, out, "0.714286")
	assert.Contains(t, out, "rejection probability")
}

func TestRunListExport(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "run", "--preset", "mm11", "--data", dir)
	require.NoError(t, err)

	var runID string
	for _, line := range strings.Split(out, "\n") {
		if id, ok := strings.CutPrefix(line, "run id: "); ok {
			runID = id
		}
	}
	require.True(t, strings.HasPrefix(runID, "mmck_c1_k0_"), "unexpected output:\n%s", out)

	out, err = execute(t, "list", "--data", dir)
	require.NoError(t, err)
	assert.Contains(t, out, runID)

	out, err = execute(t, "export-json", runID, "--data", dir)
	require.NoError(t, err)
	var data storage.ExportData
	require.NoError(t, json.Unmarshal([]byte(out), &data))
	assert.Equal(t, 2.0, data.Scenario.ArrivalRate)
	assert.Equal(t, 501, data.Steps)

	out, err = execute(t, "export-csv", runID, "--generator", "--data", dir)
	require.NoError(t, err)
	assert.Equal(t, "-2,2\n5,-5\n", out)
}

func TestInitConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	_, err := execute(t, "init-config", path, "--preset", "scenario_a", "--capacity", "5", "--horizon", "2")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.QueueCapacity)
	assert.Equal(t, 3, cfg.ChannelCount)
	assert.Equal(t, 200, cfg.Steps())
}

func TestCommandErrors(t *testing.T) {
	_, err := execute(t, "metrics", "--preset", "nope")
	assert.ErrorContains(t, err, "unknown preset")

	_, err = execute(t, "metrics", "--theme", "neon")
	assert.ErrorContains(t, err, "unknown theme")

	_, err = execute(t, "metrics", "--lambda", "-1")
	assert.Error(t, err)
}

func TestResponseDefaultRange(t *testing.T) {
	out, err := execute(t, "response", "--plain", "--preset", "scenario_a")
	require.NoError(t, err)
	assert.Contains(t, out, "rejection_probability vs arrival rate 1..60 (60 points)")

	out, err = execute(t, "response", "--plain", "--preset", "scenario_a", "--min", "10", "--max", "20", "--points", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "vs arrival rate 10..20 (3 points)")
}
