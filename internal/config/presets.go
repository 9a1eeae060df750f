package config

import "sort"

var Presets = map[string]*Config{
	"scenario_a": {
		ChannelCount: 3, QueueCapacity: 3, ArrivalRate: 30, ServiceRate: 5,
		HorizonTime: 1, IterationCount: 100, StepSize: 0.01, Integrator: "rk4",
	},
	"long_horizon": {
		ChannelCount: 3, QueueCapacity: 3, ArrivalRate: 30, ServiceRate: 5,
		HorizonTime: 10, IterationCount: 1000, StepSize: 0.01, Integrator: "rk4",
	},
	"mm11": {
		ChannelCount: 1, QueueCapacity: 0, ArrivalRate: 2, ServiceRate: 5,
		HorizonTime: 5, IterationCount: 500, StepSize: 0.01, Integrator: "rk4",
	},
	"loss": {
		ChannelCount: 3, QueueCapacity: 0, ArrivalRate: 30, ServiceRate: 5,
		HorizonTime: 2, IterationCount: 200, StepSize: 0.01, Integrator: "rk4",
	},
	"light_load": {
		ChannelCount: 2, QueueCapacity: 4, ArrivalRate: 4, ServiceRate: 5,
		HorizonTime: 5, IterationCount: 500, StepSize: 0.01, Integrator: "rk4",
	},
}

// GetPreset returns a copy of the named preset, or nil if there is none.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
