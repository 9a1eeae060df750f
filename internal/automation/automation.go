package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/experiment"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
	"github.com/san-kum/queuesim/internal/sim"
)

// Runner executes batches, sweeps and Monte Carlo studies. Independent runs
// are spread over GOMAXPROCS goroutines, each with its own integrator.
type Runner struct {
	registry *experiment.Registry
	log      *slog.Logger
	limit    int
}

func NewRunner(registry *experiment.Registry, log *slog.Logger) *Runner {
	if registry == nil {
		registry = experiment.NewRegistry()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		registry: registry,
		log:      log.With("component", "automation"),
		limit:    runtime.GOMAXPROCS(0),
	}
}

// Batch is a named list of runs read from YAML. Every run starts from a
// preset (or the default configuration) and overrides individual fields:
//
//	name: capacity study
//	runs:
//	  - name: baseline
//	    preset: scenario_a
//	  - name: more room
//	    preset: scenario_a
//	    queue_capacity: 6
type Batch struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Runs        []BatchRun `yaml:"-"`
}

type BatchRun struct {
	Name   string
	Config *config.Config
}

type runHeader struct {
	Name   string `yaml:"name"`
	Preset string `yaml:"preset"`
}

// LoadBatch reads a batch file from path.
func LoadBatch(path string) (*Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBatch(data)
}

func ParseBatch(data []byte) (*Batch, error) {
	var doc struct {
		Name        string      `yaml:"name"`
		Description string      `yaml:"description"`
		Runs        []yaml.Node `yaml:"runs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}

	batch := &Batch{Name: doc.Name, Description: doc.Description}
	for i := range doc.Runs {
		node := &doc.Runs[i]

		var hdr runHeader
		if err := node.Decode(&hdr); err != nil {
			return nil, fmt.Errorf("batch run %d: %w", i+1, err)
		}

		cfg := config.DefaultConfig()
		if hdr.Preset != "" {
			if cfg = config.GetPreset(hdr.Preset); cfg == nil {
				return nil, fmt.Errorf("batch run %d: unknown preset %q", i+1, hdr.Preset)
			}
		}
		if err := node.Decode(cfg); err != nil {
			return nil, fmt.Errorf("batch run %d: %w", i+1, err)
		}

		name := hdr.Name
		if name == "" {
			name = fmt.Sprintf("run_%d", i+1)
		}
		batch.Runs = append(batch.Runs, BatchRun{Name: name, Config: cfg})
	}
	return batch, nil
}

// BatchResult is the outcome of one batch run. Err is set instead of Result
// when that run failed; other runs are unaffected.
type BatchResult struct {
	Name   string
	Result *experiment.Result
	Err    error
}

// RunBatch executes every run of b concurrently and returns the outcomes in
// batch order. Only a cancelled context fails the batch as a whole.
func (r *Runner) RunBatch(ctx context.Context, b *Batch) ([]BatchResult, error) {
	results := make([]BatchResult, len(b.Runs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i, run := range b.Runs {
		i, run := i, run
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := experiment.New(run.Config, r.registry).Run()
			results[i] = BatchResult{Name: run.Name, Result: res, Err: err}
			if err != nil {
				r.log.Warn("batch run failed", "run", run.Name, "err", err)
			} else {
				r.log.Info("batch run complete", "run", run.Name, "index", i+1, "total", len(b.Runs), "elapsed", time.Since(start))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Sweep varies one configuration field over [Min, Max] in Steps evenly spaced
// values. Integer fields are rounded to the nearest whole value.
type Sweep struct {
	Base  *config.Config
	Param string
	Min   float64
	Max   float64
	Steps int
}

// SweepParams lists the fields a sweep can vary.
var SweepParams = []string{"arrival_rate", "service_rate", "channel_count", "queue_capacity"}

type SweepResult struct {
	ParamValue float64
	Final      dynamo.State
	Metrics    metrics.Map
	SteadyErr  error
}

func applyParam(cfg *config.Config, name string, v float64) error {
	switch name {
	case "arrival_rate":
		cfg.ArrivalRate = v
	case "service_rate":
		cfg.ServiceRate = v
	case "channel_count":
		cfg.ChannelCount = int(math.Round(v))
	case "queue_capacity":
		cfg.QueueCapacity = int(math.Round(v))
	default:
		return &dynamo.ParameterError{Field: "sweep_param", Value: v, Reason: fmt.Sprintf("cannot sweep %q", name)}
	}
	// A fixed initial vector would not fit a different state count.
	if name == "channel_count" || name == "queue_capacity" {
		cfg.InitialState = nil
	}
	return nil
}

// RunSweep runs every sweep point concurrently. The first failing point
// cancels the rest.
func (r *Runner) RunSweep(ctx context.Context, sw *Sweep) ([]SweepResult, error) {
	if sw.Steps < 2 {
		return nil, &dynamo.ParameterError{Field: "steps", Value: float64(sw.Steps), Reason: "a sweep needs at least 2 points"}
	}
	if err := applyParam(sw.Base.Clone(), sw.Param, sw.Min); err != nil {
		return nil, err
	}

	stride := (sw.Max - sw.Min) / float64(sw.Steps-1)
	results := make([]SweepResult, sw.Steps)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for i := 0; i < sw.Steps; i++ {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v := sw.Min + float64(i)*stride
			cfg := sw.Base.Clone()
			if err := applyParam(cfg, sw.Param, v); err != nil {
				return err
			}
			res, err := experiment.New(cfg, r.registry).Run()
			if err != nil {
				return fmt.Errorf("%s=%g: %w", sw.Param, v, err)
			}
			results[i] = SweepResult{
				ParamValue: v,
				Final:      res.Trajectory.Final(),
				Metrics:    res.Metrics(),
				SteadyErr:  res.SteadyErr,
			}
			r.log.Debug("sweep point complete", "param", sw.Param, "value", v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MonteCarloConfig draws random initial distributions for one scenario.
type MonteCarloConfig struct {
	Base   *config.Config
	Trials int
	Seed   int64
	// Tolerance is the largest entrywise gap to the steady state at which a
	// trial counts as settled.
	Tolerance float64
}

type MonteCarloResult struct {
	TrialID  int
	Initial  dynamo.State
	Final    dynamo.State
	FinalGap float64
	Settled  bool
}

// RunMonteCarlo integrates the base scenario from Trials random initial
// distributions. An ergodic chain forgets its start, so on a long enough
// horizon every trial should settle on the same steady state.
func (r *Runner) RunMonteCarlo(ctx context.Context, mc *MonteCarloConfig) ([]MonteCarloResult, error) {
	if mc.Trials < 1 {
		return nil, &dynamo.ParameterError{Field: "trials", Value: float64(mc.Trials), Reason: "must be at least 1"}
	}
	s, err := mc.Base.Scenario()
	if err != nil {
		return nil, err
	}
	ss, err := metrics.Analyze(s)
	if err != nil {
		return nil, err
	}
	ref := ss.Probabilities()

	newIntegrator, err := r.registry.IntegratorFactory(mc.Base.Integrator)
	if err != nil {
		return nil, err
	}
	gen, err := models.NewGenerator(s)
	if err != nil {
		return nil, fmt.Errorf("build generator: %w", err)
	}
	system := models.NewKolmogorov(gen)
	grid := sim.ConfigFor(s)

	seed := mc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	jobs := make([]sim.Job, mc.Trials)
	for i := range jobs {
		p := make(dynamo.State, s.NumStates())
		for j := range p {
			p[j] = rng.Float64()
		}
		jobs[i] = sim.Job{System: system, Initial: p, Config: grid}
	}

	trajectories, err := sim.NewEnsemble(newIntegrator).Run(ctx, jobs)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, mc.Trials)
	for i, tr := range trajectories {
		final := tr.Final()
		gap := final.MaxAbsDiff(ref)
		results[i] = MonteCarloResult{
			TrialID:  i,
			Initial:  jobs[i].Initial,
			Final:    final,
			FinalGap: gap,
			Settled:  gap <= mc.Tolerance,
		}
	}
	r.log.Debug("monte carlo done", "trials", mc.Trials, "seed", seed)
	return results, nil
}

func MonteCarloStats(results []MonteCarloResult) (settled int, unsettled int) {
	for _, r := range results {
		if r.Settled {
			settled++
		} else {
			unsettled++
		}
	}
	return
}
