package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the terminal color scheme.
type Theme struct {
	Primary lipgloss.Color
	Dim     lipgloss.Color
	Error   lipgloss.Color
}

// DefaultTheme is the default bright green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Error:   lipgloss.Color("#ff5f87"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Prompt lipgloss.Style
	Label  lipgloss.Style
	Help   lipgloss.Style
	Error  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Prompt: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Foreground(t.Primary),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Error:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
	}
}

// KeyValue renders "label: value" with a styled label.
func (s Styles) KeyValue(label, value string) string {
	return s.Label.Render(label+":") + " " + value
}
