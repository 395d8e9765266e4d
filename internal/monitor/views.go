package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const (
	barWidth    = 24
	barFullness = 4.0 // activity score that fills a bar
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB000"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	stateStyles = map[string]lipgloss.Style{
		"steady":  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB000")),
		"flicker": lipgloss.NewStyle().Foreground(lipgloss.Color("#AA7700")),
		"off":     lipgloss.NewStyle().Foreground(lipgloss.Color("#555555")),
	}
)

var channelNames = []string{"beat", "flair", "mid", "high"}

func renderMonitor(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	if !m.Last.Primed {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Priming trend window... tick %d", m.Last.Tick)))
		b.WriteString("\n\n")
	} else {
		b.WriteString(renderActivity(m.Last.Activity))
		b.WriteString("\n")
		b.WriteString(renderPermutation(m.Last.Permutation))
		b.WriteString("\n")
		b.WriteString(renderRelay(m.Last.Relay))
		b.WriteString("\n\n")
	}

	b.WriteString(renderFooter(m))
	return b.String()
}

func renderHeader(m Model) string {
	title := titleStyle.Render("Lightshow 💡 - Live Monitor")
	subtitle := mutedStyle.Italic(true).Render(fmt.Sprintf("tick %d, up %s",
		m.Last.Tick, time.Since(m.StartTime).Truncate(time.Second)))
	return title + "\n" + subtitle
}

func renderActivity(activity []float64) string {
	var b strings.Builder
	for i, a := range activity {
		name := fmt.Sprintf("ch%d", i)
		if i < len(channelNames) {
			name = channelNames[i]
		}
		fmt.Fprintf(&b, "%-6s %s %+6.2f\n", name, renderBar(a, barWidth), a)
	}
	return b.String()
}

// renderBar fills in proportion to positive activity; negative scores show empty.
func renderBar(activity float64, width int) string {
	filled := 0
	if activity > 0 {
		filled = int(min(activity/barFullness, 1) * float64(width))
	}
	bar := strings.Repeat("█", filled)
	if filled > 0 {
		bar = activeStyle.Render(bar)
	}
	return bar + mutedStyle.Render(strings.Repeat("░", width-filled))
}

func renderPermutation(perm []string) string {
	parts := make([]string, len(perm))
	for i, st := range perm {
		style, ok := stateStyles[st]
		if !ok {
			style = mutedStyle
		}
		parts[i] = style.Render(fmt.Sprintf("%-7s", st))
	}
	return mutedStyle.Render("slots  ") + strings.Join(parts, " ")
}

func renderRelay(frame [4]byte) string {
	groups := make([]string, len(frame))
	for i, v := range frame {
		var g strings.Builder
		for bit := 0; bit < 8; bit++ {
			if v&(0x80>>bit) != 0 {
				g.WriteString(activeStyle.Render("●"))
			} else {
				g.WriteString(mutedStyle.Render("○"))
			}
		}
		groups[i] = g.String()
	}
	return mutedStyle.Render("relay  ") + strings.Join(groups, " ")
}

func renderFooter(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#888888")).
		Padding(0, 1).
		Width(60)

	content := fmt.Sprintf("%d beats, %d reseeds in %d ticks seen", m.Beats, m.Reseeds, m.Ticks)
	if m.Closed {
		content += " (stopped)"
	}
	return box.Render(content) + "\n" + mutedStyle.Render("q to quit")
}
