package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/fdg312/calorie-hub/internal/host"
)

type styles struct {
	app    lipgloss.Style
	title  lipgloss.Style
	badge  lipgloss.Style
	card   lipgloss.Style
	label  lipgloss.Style
	value  lipgloss.Style
	muted  lipgloss.Style
	accent lipgloss.Style
	cursor lipgloss.Style
	errMsg lipgloss.Style
}

// newStyles resolves colours from the style scope the host adapter wrote.
func newStyles(scope *host.Scope) styles {
	if scope == nil {
		scope = host.DefaultScope
	}
	bg := lipgloss.Color(scope.Get(host.VarBackground))
	fg := lipgloss.Color(scope.Get(host.VarText))
	hint := lipgloss.Color(scope.Get(host.VarHint))
	button := lipgloss.Color(scope.Get(host.VarButton))

	return styles{
		app:   lipgloss.NewStyle().Background(bg).Foreground(fg).Padding(0, 1),
		title: lipgloss.NewStyle().Bold(true).Foreground(fg),
		badge: lipgloss.NewStyle().Foreground(bg).Background(button).Padding(0, 1),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(hint).
			Padding(0, 1),
		label:  lipgloss.NewStyle().Foreground(hint),
		value:  lipgloss.NewStyle().Bold(true).Foreground(fg),
		muted:  lipgloss.NewStyle().Foreground(hint),
		accent: lipgloss.NewStyle().Foreground(button),
		cursor: lipgloss.NewStyle().Bold(true).Foreground(button),
		errMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")),
	}
}
