package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Secondary)
}

func labelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
}

func valueStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Text).Bold(true)
}

func hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted).Italic(true)
}

func panelStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(CurrentTheme.Muted).
		Padding(0, 1)
}

// Bar renders a horizontal bar filled to fraction of width. Fractions above
// warn are drawn in the warning color, e.g. for a blocking state.
func Bar(fraction float64, width int, warn float64) string {
	filled := int(fraction*float64(width) + 0.5)
	filled = max(0, min(filled, width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	color := CurrentTheme.Success
	if fraction > warn {
		color = CurrentTheme.Warning
	}
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}

// SparklineChart renders values as a one-line sparkline, sampled to width.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := max(len(values)/width, 1)

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := max(0, min(int(norm*float64(len(chars)-1)), len(chars)-1))
		result.WriteRune(chars[idx])
	}
	return lipgloss.NewStyle().Foreground(CurrentTheme.Accent).Render(result.String())
}

// Separator draws a muted rule of the given width.
func Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(mid-3, 0))
	right := strings.Repeat("─", max(width-mid-3, 0))
	return labelStyle().Render(left + " ◆ " + right)
}

func errorText(msg string) string {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(msg)
}
