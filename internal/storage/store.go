package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/experiment"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
	generatorFile  = "generator.csv"
)

// Store keeps one directory per saved run under baseDir.
type Store struct {
	baseDir string
	log     *slog.Logger
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, log: slog.Default().With("component", "storage")}
}

// WithLogger replaces the logger used for diagnostics.
func (s *Store) WithLogger(l *slog.Logger) *Store {
	s.log = l.With("component", "storage")
	return s
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// ScenarioMetadata is the serialized form of models.Scenario.
type ScenarioMetadata struct {
	ArrivalRate float64 `json:"arrival_rate"`
	ServiceRate float64 `json:"service_rate"`
	Channels    int     `json:"channel_count"`
	Capacity    int     `json:"queue_capacity"`
	Horizon     float64 `json:"horizon_time"`
	Steps       int     `json:"iteration_count"`
	StepSize    float64 `json:"step_size"`
}

func describe(sc models.Scenario) ScenarioMetadata {
	return ScenarioMetadata{
		ArrivalRate: sc.ArrivalRate(),
		ServiceRate: sc.ServiceRate(),
		Channels:    sc.Channels(),
		Capacity:    sc.Capacity(),
		Horizon:     sc.Horizon(),
		Steps:       sc.Steps(),
		StepSize:    sc.StepSize(),
	}
}

// Scenario rebuilds and revalidates the stored scenario.
func (m ScenarioMetadata) Scenario() (models.Scenario, error) {
	return models.NewScenario(m.ArrivalRate, m.ServiceRate, m.Channels, m.Capacity, m.Horizon, m.Steps, m.StepSize)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Timestamp   time.Time          `json:"timestamp"`
	Scenario    ScenarioMetadata   `json:"scenario"`
	Integrator  string             `json:"integrator"`
	MassDrift   float64            `json:"mass_drift"`
	SteadyError string             `json:"steady_error,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes the metadata, trajectory and generator of res into a new run
// directory and returns the run id.
func (s *Store) Save(res *experiment.Result) (string, error) {
	if res == nil || res.Trajectory == nil || res.Generator == nil {
		return "", errors.New("storage: incomplete result")
	}

	now := time.Now()
	runID := fmt.Sprintf("mmck_c%d_k%d_%d", res.Scenario.Channels(), res.Scenario.Capacity(), now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}
	saved := false
	defer func() {
		if !saved {
			if err := os.RemoveAll(runDir); err != nil {
				s.log.Warn("remove partial run", "id", runID, "err", err)
			}
		}
	}()

	meta := RunMetadata{
		ID:         runID,
		Timestamp:  now,
		Scenario:   describe(res.Scenario),
		Integrator: res.Config.Integrator,
		MassDrift:  res.Trajectory.MassDrift,
		Metrics:    s.finite(res.Metrics()),
	}
	if res.SteadyErr != nil {
		meta.SteadyError = res.SteadyErr.Error()
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeCSVFile(filepath.Join(runDir, trajectoryFile), func(w *csv.Writer) error {
		return writeTrajectory(w, res.Trajectory)
	}); err != nil {
		return "", err
	}
	if err := writeCSVFile(filepath.Join(runDir, generatorFile), func(w *csv.Writer) error {
		return writeMatrix(w, res.Generator.Rows())
	}); err != nil {
		return "", err
	}

	saved = true
	s.log.Debug("run saved", "id", runID, "states", res.Scenario.NumStates(), "vectors", res.Trajectory.Len())
	return runID, nil
}

// finite drops values JSON cannot carry.
func (s *Store) finite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			s.log.Warn("dropping non-finite metric", "metric", k, "value", v)
			continue
		}
		out[k] = v
	}
	return out
}

// List returns the metadata of every readable run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			s.log.Debug("skipping unreadable run", "dir", entry.Name(), "err", err)
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadTrajectory reads back the trajectory of a run. Transient metrics are
// kept in the metadata, not here.
func (s *Store) LoadTrajectory(runID string) (*dynamo.Trajectory, error) {
	records, err := readCSVFile(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}

	tr := &dynamo.Trajectory{Metrics: make(map[string]float64)}
	if len(records) < 2 {
		return tr, nil
	}

	for i, record := range records[1:] {
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("run %s: trajectory row %d: %w", runID, i+1, err)
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("run %s: trajectory row %d: %w", runID, i+1, dynamo.ErrDimensionMismatch)
		}
		tr.Times = append(tr.Times, row[0])
		tr.States = append(tr.States, dynamo.State(row[1:]))
	}

	if meta, err := s.Load(runID); err == nil {
		tr.MassDrift = meta.MassDrift
	}
	return tr, nil
}

// LoadGenerator reads back the generator rows of a run.
func (s *Store) LoadGenerator(runID string) ([][]float64, error) {
	records, err := readCSVFile(filepath.Join(s.baseDir, runID, generatorFile))
	if err != nil {
		return nil, err
	}

	rows := make([][]float64, 0, len(records))
	for i, record := range records {
		row, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("run %s: generator row %d: %w", runID, i, err)
		}
		if len(row) != len(records) {
			return nil, fmt.Errorf("run %s: generator row %d: %w", runID, i, dynamo.ErrDimensionMismatch)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCSVFile(path string, fill func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := fill(w); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeTrajectory(w *csv.Writer, tr *dynamo.Trajectory) error {
	if tr.Len() == 0 {
		return nil
	}

	if len(tr.Times) != len(tr.States) {
		return fmt.Errorf("%w: %d times for %d vectors", dynamo.ErrDimensionMismatch, len(tr.Times), len(tr.States))
	}

	header := []string{"time"}
	for i := range tr.States[0] {
		header = append(header, fmt.Sprintf("p%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for k, p := range tr.States {
		if len(p) != len(tr.States[0]) {
			return fmt.Errorf("%w: vector %d has %d states, want %d", dynamo.ErrDimensionMismatch, k, len(p), len(tr.States[0]))
		}
		row := make([]string, 0, len(p)+1)
		row = append(row, formatFloat(tr.Times[k]))
		for _, v := range p {
			row = append(row, formatFloat(v))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func writeMatrix(w *csv.Writer, rows [][]float64) error {
	for _, r := range rows {
		rec := make([]string, len(r))
		for j, v := range r {
			rec[j] = formatFloat(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

func readCSVFile(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))
	for j, field := range record {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, err
		}
		row[j] = v
	}
	return row, nil
}

// formatFloat uses the shortest representation that parses back to v.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTrajectoryCSV writes tr as time,p0..pS rows to w.
func WriteTrajectoryCSV(w io.Writer, tr *dynamo.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := writeTrajectory(cw, tr); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// WriteMatrixCSV writes generator rows to w.
func WriteMatrixCSV(w io.Writer, rows [][]float64) error {
	cw := csv.NewWriter(w)
	if err := writeMatrix(cw, rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// LoadResult rebuilds a run from its files. The generator and the steady
// state are recomputed from the stored scenario.
func (s *Store) LoadResult(runID string) (*experiment.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	sc, err := meta.Scenario.Scenario()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	gen, err := models.NewGenerator(sc)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	tr, err := s.LoadTrajectory(runID)
	if err != nil {
		return nil, err
	}
	for k, v := range meta.Metrics {
		tr.Metrics[k] = v
	}

	res := &experiment.Result{
		Config: &config.Config{
			ChannelCount:   sc.Channels(),
			QueueCapacity:  sc.Capacity(),
			ArrivalRate:    sc.ArrivalRate(),
			ServiceRate:    sc.ServiceRate(),
			HorizonTime:    sc.Horizon(),
			IterationCount: sc.Steps(),
			StepSize:       sc.StepSize(),
			Integrator:     meta.Integrator,
		},
		Scenario:   sc,
		Generator:  gen,
		Trajectory: tr,
	}
	res.Steady, res.SteadyErr = metrics.Analyze(sc)
	return res, nil
}
