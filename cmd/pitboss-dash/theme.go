package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for the pitboss dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for pitboss-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// Styles holds the pre-built lipgloss styles derived from a Theme.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Muted   lipgloss.Style
	Col     lipgloss.Style
	Urgent  lipgloss.Style
	Warn    lipgloss.Style
	OK      lipgloss.Style
	Section lipgloss.Style
}

// NewStyles builds the styles for a theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Header:  lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Col:     lipgloss.NewStyle().PaddingRight(1),
		Urgent:  lipgloss.NewStyle().Foreground(theme.Error),
		Warn:    lipgloss.NewStyle().Foreground(theme.Warning),
		OK:      lipgloss.NewStyle().Foreground(theme.Success),
		Section: lipgloss.NewStyle().MarginTop(1),
	}
}
