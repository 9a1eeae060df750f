package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
)

// metricLabels gives the scalar metrics their report captions.
var metricLabels = map[string]string{
	metrics.KeyLoadFactor:             "load factor ρ",
	metrics.KeyIdleProbability:        "idle probability P0",
	metrics.KeyRejectionProbability:   "rejection probability",
	metrics.KeyMeanArrivals:           "mean arrivals λT",
	metrics.KeyMeanServiceTime:        "mean service time 1/μ",
	metrics.KeyMeanChannelServiceTime: "mean channel service ρT",
	metrics.KeyMeanBusyChannels:       "mean busy channels",
	metrics.KeyChannelUtilization:     "channel utilization",
	metrics.KeyEffectiveArrivalRate:   "effective arrival rate",
	metrics.KeyMeanQueueLength:        "mean queue length Lq",
	metrics.KeyMeanQueueWait:          "mean queue wait Wq",
	metrics.KeyMeanInSystem:           "mean in system L",
	metrics.KeyMeanSystemTime:         "mean system time W",
}

// RenderMetrics lays out a metrics map as a titled two-column panel.
func RenderMetrics(title string, m metrics.Map) string {
	var b strings.Builder
	b.WriteString(titleStyle().Render(title) + "\n")

	keys := m.Keys()
	width := 0
	for _, k := range keys {
		width = max(width, lipgloss.Width(label(k)))
	}
	for _, k := range keys {
		l := labelStyle().Width(width + 2).Render(label(k))
		b.WriteString(l + valueStyle().Render(fmt.Sprintf("%.6g", m[k])) + "\n")
	}
	return panelStyle().Render(strings.TrimRight(b.String(), "\n"))
}

func label(key string) string {
	if l, ok := metricLabels[key]; ok {
		return l
	}
	return key
}

// RenderMatrix prints generator rows with aligned columns.
func RenderMatrix(rows [][]float64) string {
	cells := make([][]string, len(rows))
	width := 0
	for i, r := range rows {
		cells[i] = make([]string, len(r))
		for j, v := range r {
			cells[i][j] = fmt.Sprintf("%.4g", v)
			width = max(width, len(cells[i][j]))
		}
	}

	var b strings.Builder
	header := make([]string, len(rows))
	for j := range rows {
		header[j] = fmt.Sprintf("%*s", width, fmt.Sprintf("S%d", j))
	}
	b.WriteString(labelStyle().Render(fmt.Sprintf("%4s  %s", "", strings.Join(header, " "))) + "\n")

	for i, r := range cells {
		padded := make([]string, len(r))
		for j, c := range r {
			padded[j] = fmt.Sprintf("%*s", width, c)
		}
		b.WriteString(labelStyle().Render(fmt.Sprintf("%4s", fmt.Sprintf("S%d", i))) + "  " + strings.Join(padded, " ") + "\n")
	}
	return b.String()
}

// RenderDistribution draws one bar per state. The last state is the
// blocking state and is highlighted once it holds more than warn.
func RenderDistribution(p dynamo.State, barWidth int, warn float64) string {
	var b strings.Builder
	for i, v := range p {
		threshold := 1.0
		if i == len(p)-1 {
			threshold = warn
		}
		fmt.Fprintf(&b, "%s %s %s\n",
			labelStyle().Render(fmt.Sprintf("S%-3d", i)),
			Bar(v, barWidth, threshold),
			valueStyle().Render(fmt.Sprintf("%.4f", v)))
	}
	return b.String()
}
