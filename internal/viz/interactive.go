package viz

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/queuesim/internal/config"
	"github.com/san-kum/queuesim/internal/experiment"
)

var presetInfo = map[string]string{
	"scenario_a":   "3 channels, 3 queue places, ρ=6",
	"long_horizon": "scenario_a integrated to t=10",
	"mm11":         "single server loss system",
	"loss":         "3 channels, no waiting room",
	"light_load":   "2 channels, ρ=0.8",
}

const (
	stateMenu = iota
	stateConfig
	stateReplay
)

// field is one editable configuration value in the config screen.
type field struct {
	name  string
	get   func(*config.Config) float64
	set   func(*config.Config, float64)
	isInt bool
}

var fields = []field{
	{"arrival_rate", func(c *config.Config) float64 { return c.ArrivalRate }, func(c *config.Config, v float64) { c.ArrivalRate = v }, false},
	{"service_rate", func(c *config.Config) float64 { return c.ServiceRate }, func(c *config.Config, v float64) { c.ServiceRate = v }, false},
	{"channel_count", func(c *config.Config) float64 { return float64(c.ChannelCount) }, func(c *config.Config, v float64) { c.ChannelCount = int(v) }, true},
	{"queue_capacity", func(c *config.Config) float64 { return float64(c.QueueCapacity) }, func(c *config.Config, v float64) { c.QueueCapacity = int(v) }, true},
	{"horizon_time", func(c *config.Config) float64 { return c.HorizonTime }, func(c *config.Config, v float64) { c.HorizonTime = v }, false},
	{"step_size", func(c *config.Config) float64 { return c.StepSize }, func(c *config.Config, v float64) { c.StepSize = v }, false},
}

// App is the interactive front end: pick a preset, adjust it, then replay
// the resulting run.
type App struct {
	state    int
	cursor   int
	presets  []string
	cfg      *config.Config
	field    int
	editing  bool
	editBuf  string
	err      error
	registry *experiment.Registry
	replay   ReplayModel
}

func NewInteractiveApp(registry *experiment.Registry) App {
	if registry == nil {
		registry = experiment.NewRegistry()
	}
	return App{state: stateMenu, presets: config.ListPresets(), registry: registry}
}

func (a App) Init() tea.Cmd { return nil }

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.state == stateReplay {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			a.state = stateConfig
			return a, nil
		}
		next, cmd := a.replay.Update(msg)
		a.replay = next.(ReplayModel)
		return a, cmd
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		if a.state == stateMenu {
			return a.menuKey(k)
		}
		return a.configKey(k)
	}
	return a, nil
}

func (a App) menuKey(msg tea.KeyMsg) (App, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "up", "k":
		a.cursor = max(a.cursor-1, 0)
	case "down", "j":
		a.cursor = min(a.cursor+1, len(a.presets)-1)
	case "enter", " ":
		a.cfg = config.GetPreset(a.presets[a.cursor])
		a.state, a.field, a.err = stateConfig, 0, nil
	}
	return a, nil
}

func (a App) configKey(msg tea.KeyMsg) (App, tea.Cmd) {
	f := fields[a.field]
	if a.editing {
		switch msg.String() {
		case "enter":
			if v, err := strconv.ParseFloat(a.editBuf, 64); err == nil {
				f.set(a.cfg, v)
			}
			a.editing, a.editBuf = false, ""
		case "esc":
			a.editing, a.editBuf = false, ""
		case "backspace":
			if len(a.editBuf) > 0 {
				a.editBuf = a.editBuf[:len(a.editBuf)-1]
			}
		default:
			if s := msg.String(); len(s) == 1 && strings.ContainsAny(s, "0123456789.-e") {
				a.editBuf += s
			}
		}
		return a, nil
	}

	switch msg.String() {
	case "q", "esc":
		a.state = stateMenu
	case "up", "k":
		a.field = max(a.field-1, 0)
	case "down", "j":
		a.field = min(a.field+1, len(fields)-1)
	case "enter", " ":
		a.editing, a.editBuf = true, strconv.FormatFloat(f.get(a.cfg), 'g', -1, 64)
	case "left", "h":
		a.nudge(f, -1)
	case "right", "l":
		a.nudge(f, 1)
	case "s":
		return a.start()
	}
	return a, nil
}

// nudge steps integer fields by one and real fields by 10%.
func (a *App) nudge(f field, dir float64) {
	v := f.get(a.cfg)
	if f.isInt {
		f.set(a.cfg, max(v+dir, 0))
		return
	}
	f.set(a.cfg, v*(1+0.1*dir))
}

func (a App) start() (App, tea.Cmd) {
	cfg := a.cfg.Clone()
	cfg.IterationCount = 0
	res, err := experiment.New(cfg, a.registry).Run()
	if err != nil {
		a.err = err
		return a, nil
	}
	a.err = nil

	var steady []float64
	if res.Steady != nil {
		steady = res.Steady.Probabilities()
	}
	title := fmt.Sprintf("M/M/%d/%d  λ=%g μ=%g", cfg.ChannelCount, cfg.QueueCapacity, cfg.ArrivalRate, cfg.ServiceRate)
	a.replay = NewReplayModel(title, res.Trajectory, steady)
	a.state = stateReplay
	return a, a.replay.Init()
}

func (a App) View() string {
	switch a.state {
	case stateMenu:
		return a.viewMenu()
	case stateConfig:
		return a.viewConfig()
	case stateReplay:
		return a.replay.View() + hintStyle().Render("esc back to parameters") + "\n"
	}
	return ""
}

func (a App) viewMenu() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle().Render("QUEUESIM") + "\n  " + labelStyle().Render("M/M/c/K transient and steady state") + "\n  " + Separator(36) + "\n\n")
	for i, name := range a.presets {
		if i == a.cursor {
			fmt.Fprintf(&b, "  %s %s  %s\n", titleStyle().Render("▸"), valueStyle().Render(fmt.Sprintf("%-14s", name)), labelStyle().Render(presetInfo[name]))
		} else {
			fmt.Fprintf(&b, "    %s  %s\n", labelStyle().Render(fmt.Sprintf("%-14s", name)), labelStyle().Render(presetInfo[name]))
		}
	}
	b.WriteString("\n  " + hintStyle().Render("j/k navigate  enter select  q quit") + "\n")
	return b.String()
}

func (a App) viewConfig() string {
	var b strings.Builder
	b.WriteString("\n  " + titleStyle().Render(strings.ToUpper(a.presets[a.cursor])) + "\n  " + Separator(36) + "\n\n")
	for i, f := range fields {
		val := fmt.Sprintf("%10.4g", f.get(a.cfg))
		if a.editing && i == a.field {
			val = fmt.Sprintf("%10s", a.editBuf+"_")
		}
		if i == a.field {
			fmt.Fprintf(&b, "  %s %s %s\n", titleStyle().Render("▸"), valueStyle().Render(fmt.Sprintf("%-15s", f.name)), valueStyle().Render(val))
		} else {
			fmt.Fprintf(&b, "    %s %s\n", labelStyle().Render(fmt.Sprintf("%-15s", f.name)), labelStyle().Render(val))
		}
	}
	if a.err != nil {
		b.WriteString("\n  " + errorText(a.err.Error()) + "\n")
	}
	b.WriteString("\n  " + hintStyle().Render("j/k select  h/l adjust  enter edit  s start  esc back") + "\n")
	return b.String()
}

// RunInteractive starts the interactive app and blocks until it exits.
func RunInteractive(registry *experiment.Registry) error {
	_, err := tea.NewProgram(NewInteractiveApp(registry), tea.WithAltScreen()).Run()
	return err
}
