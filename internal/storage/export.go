package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/queuesim/internal/experiment"
)

// ExportData is the self-contained JSON form of one run.
type ExportData struct {
	Scenario    ScenarioMetadata   `json:"scenario"`
	Integrator  string             `json:"integrator"`
	Steps       int                `json:"steps"`
	MassDrift   float64            `json:"mass_drift"`
	Generator   [][]float64        `json:"generator"`
	Times       []float64          `json:"times"`
	States      [][]float64        `json:"states"`
	Metrics     map[string]float64 `json:"metrics"`
	SteadyError string             `json:"steady_error,omitempty"`
}

func exportData(res *experiment.Result) ExportData {
	data := ExportData{
		Scenario:   describe(res.Scenario),
		Integrator: res.Config.Integrator,
		Steps:      res.Trajectory.Len(),
		MassDrift:  res.Trajectory.MassDrift,
		Generator:  res.Generator.Rows(),
		Times:      res.Trajectory.Times,
		States:     make([][]float64, res.Trajectory.Len()),
		Metrics:    New("").finite(res.Metrics()),
	}
	for i, p := range res.Trajectory.States {
		data.States[i] = p
	}
	if res.SteadyErr != nil {
		data.SteadyError = res.SteadyErr.Error()
	}
	return data
}

// ExportJSON writes res to path.
func ExportJSON(path string, res *experiment.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteJSON(file, res); err != nil {
		return err
	}
	return file.Close()
}

// WriteJSON writes res as indented JSON to w, e.g. os.Stdout.
func WriteJSON(w io.Writer, res *experiment.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(res))
}
