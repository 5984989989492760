// Package ui renders turbodelete's terminal output: colored status lines,
// the per-target progress bar and the final summary.
package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles are bound to one writer so color is dropped when it is not a terminal
type styles struct {
	badge   lipgloss.Style
	warn    lipgloss.Style
	path    lipgloss.Style
	command lipgloss.Style
	dim     lipgloss.Style
	good    lipgloss.Style
	bad     lipgloss.Style
	heading lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		badge: r.NewStyle().
			Background(lipgloss.Color("9")).
			Foreground(lipgloss.Color("0")),
		warn:    r.NewStyle().Foreground(lipgloss.Color("11")),
		path:    r.NewStyle().Foreground(lipgloss.Color("10")),
		command: r.NewStyle().Foreground(lipgloss.Color("14")),
		dim:     r.NewStyle().Foreground(lipgloss.Color("8")),
		good:    r.NewStyle().Foreground(lipgloss.Color("10")),
		bad:     r.NewStyle().Foreground(lipgloss.Color("9")),
		heading: r.NewStyle().Underline(true),
	}
}

func (s styles) errorBadge() string {
	return s.badge.Render(" ERROR ")
}
