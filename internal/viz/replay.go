package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/queuesim/internal/dynamo"
)

const (
	frameInterval = time.Second / 30
	maxSpeed      = 64
	barWidth      = 40
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// ReplayModel plays back a recorded trajectory frame by frame.
type ReplayModel struct {
	title    string
	tr       *dynamo.Trajectory
	steady   dynamo.State
	playHead int
	running  bool
	speed    int
	showHelp bool
	blocking []float64
}

// NewReplayModel builds a replay of tr. steady may be nil when the closed
// form is undefined for the scenario.
func NewReplayModel(title string, tr *dynamo.Trajectory, steady dynamo.State) ReplayModel {
	last := 0
	if tr.Len() > 0 {
		last = len(tr.States[0]) - 1
	}
	return ReplayModel{
		title:    title,
		tr:       tr,
		steady:   steady,
		running:  true,
		speed:    1,
		blocking: tr.Series(last),
	}
}

func (m ReplayModel) PlayHead() int  { return m.playHead }
func (m ReplayModel) Running() bool  { return m.running }
func (m ReplayModel) Speed() int     { return m.speed }
func (m ReplayModel) Init() tea.Cmd  { return tick() }
func (m ReplayModel) lastFrame() int { return max(m.tr.Len()-1, 0) }

func (m ReplayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.playHead >= m.lastFrame() {
				m.playHead = 0
			}
			m.running = !m.running
		case "[", "left", "h":
			m.running = false
			m.playHead = max(m.playHead-1, 0)
		case "]", "right", "l":
			m.running = false
			m.playHead = min(m.playHead+1, m.lastFrame())
		case "r", "home":
			m.playHead = 0
		case "G", "end":
			m.playHead = m.lastFrame()
			m.running = false
		case "+", "=":
			m.speed = min(m.speed*2, maxSpeed)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "t":
			SetTheme(nextTheme())
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.playHead += m.speed
			if m.playHead >= m.lastFrame() {
				m.playHead = m.lastFrame()
				m.running = false
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m ReplayModel) View() string {
	if m.tr.Len() == 0 {
		return "empty trajectory\n"
	}
	p := m.tr.States[m.playHead]
	t := m.tr.Times[m.playHead]

	status := lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Success).Render("PLAYING")
	if !m.running {
		status = lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Warning).Render("PAUSED")
	}

	var b strings.Builder
	b.WriteString(titleStyle().Render(m.title) + "  " + status + "\n")
	fmt.Fprintf(&b, "%s %s   %s %s   %s %s\n\n",
		labelStyle().Render("t"), valueStyle().Render(fmt.Sprintf("%.4f", t)),
		labelStyle().Render("frame"), valueStyle().Render(fmt.Sprintf("%d/%d", m.playHead, m.lastFrame())),
		labelStyle().Render("speed"), valueStyle().Render(fmt.Sprintf("%dx", m.speed)))

	b.WriteString(RenderDistribution(p, barWidth, 0.5))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s %s\n", labelStyle().Render("E[N]      "), valueStyle().Render(fmt.Sprintf("%.4f", p.Mean())))
	if m.steady != nil {
		fmt.Fprintf(&b, "%s %s\n", labelStyle().Render("gap       "), valueStyle().Render(fmt.Sprintf("%.3e", p.MaxAbsDiff(m.steady))))
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle().Render("blocking  "), SparklineChart(m.blocking[:m.playHead+1], barWidth))

	b.WriteString("\n")
	if m.showHelp {
		b.WriteString(hintStyle().Render("space play/pause  [/] step  r restart  G end  +/- speed  t theme  q quit") + "\n")
	} else {
		b.WriteString(hintStyle().Render("? help") + "\n")
	}
	return b.String()
}

// RunReplay opens the replay TUI for tr and blocks until it is closed.
func RunReplay(title string, tr *dynamo.Trajectory, steady dynamo.State) error {
	_, err := tea.NewProgram(NewReplayModel(title, tr, steady), tea.WithAltScreen()).Run()
	return err
}
