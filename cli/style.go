// Package cli provides the operator command line client.
package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the renderers used for terminal output. Plain styles are
// used when output is not a terminal.
type styles struct {
	title lipgloss.Style
	key   lipgloss.Style
	ok    lipgloss.Style
	fail  lipgloss.Style
	dim   lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{title: plain, key: plain, ok: plain, fail: plain, dim: plain}
	}
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		key:   lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		ok:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		fail:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// formatDuration formats a duration in a human-readable format.
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
