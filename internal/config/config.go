package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/models"
)

const (
	DefaultArrivalRate = 30.0
	DefaultServiceRate = 5.0
	DefaultChannels    = 3
	DefaultCapacity    = 3
	DefaultHorizon     = 1.0
	DefaultSteps       = 100
	DefaultStepSize    = 0.01
	DefaultIntegrator  = "rk4"
)

// Config is the on-disk description of one run.
type Config struct {
	ChannelCount   int       `yaml:"channel_count"`
	QueueCapacity  int       `yaml:"queue_capacity"`
	ArrivalRate    float64   `yaml:"arrival_rate"`
	ServiceRate    float64   `yaml:"service_rate"`
	InitialState   []float64 `yaml:"initial_state,omitempty"`
	HorizonTime    float64   `yaml:"horizon_time"`
	IterationCount int       `yaml:"iteration_count"`
	StepSize       float64   `yaml:"step_size"`
	Integrator     string    `yaml:"integrator"`
}

func DefaultConfig() *Config {
	return &Config{
		ChannelCount:   DefaultChannels,
		QueueCapacity:  DefaultCapacity,
		ArrivalRate:    DefaultArrivalRate,
		ServiceRate:    DefaultServiceRate,
		HorizonTime:    DefaultHorizon,
		IterationCount: DefaultSteps,
		StepSize:       DefaultStepSize,
		Integrator:     DefaultIntegrator,
	}
}

// Load reads a YAML file on top of DefaultConfig, so omitted fields keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Steps returns the iteration count. A zero count is derived from
// horizon_time/step_size when that ratio is a positive whole number.
func (c *Config) Steps() int {
	if c.IterationCount != 0 || !(c.StepSize > 0) || !(c.HorizonTime > 0) {
		return c.IterationCount
	}
	ratio := c.HorizonTime / c.StepSize
	n := math.Round(ratio)
	if n >= 1 && math.Abs(ratio-n) <= 1e-9*n && n <= math.MaxInt32 {
		return int(n)
	}
	return c.IterationCount
}

// Scenario validates the configuration and builds the scenario it describes.
func (c *Config) Scenario() (models.Scenario, error) {
	return models.NewScenario(c.ArrivalRate, c.ServiceRate, c.ChannelCount, c.QueueCapacity, c.HorizonTime, c.Steps(), c.StepSize)
}

// InitialVector returns the configured initial occupancy for s, or an empty
// system when none is configured. The weights are normalized by the simulator.
func (c *Config) InitialVector(s models.Scenario) (dynamo.State, error) {
	if len(c.InitialState) == 0 {
		return s.EmptySystem(), nil
	}
	if len(c.InitialState) != s.NumStates() {
		return nil, fmt.Errorf("%w: initial_state has %d weights, system has %d states",
			dynamo.ErrDimensionMismatch, len(c.InitialState), s.NumStates())
	}
	return dynamo.State(c.InitialState).Clone(), nil
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.InitialState = append([]float64(nil), c.InitialState...)
	if len(out.InitialState) == 0 {
		out.InitialState = nil
	}
	return &out
}
