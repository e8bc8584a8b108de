package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the Lipgloss styles used by the UI.
type Styles struct {
	Header   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Notice   lipgloss.Style
	Error    lipgloss.Style
	Help     lipgloss.Style

	// Per-status label styles.
	Status map[string]lipgloss.Style
}

// DefaultStyles returns the default color scheme.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Selected: lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("236")),
		Notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Help:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Status: map[string]lipgloss.Style{
			"downloading": lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
			"queued":      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
			"paused":      lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
			"completed":   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
			"error":       lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
			"canceled":    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		},
	}
}

func (s Styles) statusStyle(status string) lipgloss.Style {
	if style, ok := s.Status[status]; ok {
		return style
	}
	return s.Muted
}
