// Package tui provides Bubble Tea views for the lifi CLI.
//
// TUI rules:
//   - TUI is opt-in only (--tui flag)
//   - The receive view is interactive; inspect views are read-only
//   - TUI renders the same payloads as the non-TUI renderers
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
	textColor      = lipgloss.Color("#FFFFFF")
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(12)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(textColor)

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for warning states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// ButtonStyle for the scan/pause and save buttons.
	ButtonStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(mutedColor).
			Padding(0, 2)

	// ReadyStyle is the save button once every chunk has arrived.
	ReadyStyle = ButtonStyle.
			Background(successColor).
			Bold(true)

	// StatBoxStyle for stat display boxes.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 1).
			Width(14).
			Align(lipgloss.Center)

	// StatLabelStyle for stat labels.
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	// StatValueStyle for stat values.
	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor).
			Align(lipgloss.Center)
)

// StateStyle returns a style for a connection or validity label.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "receiving", "complete", "valid":
		return SuccessStyle
	case "waiting", "incomplete":
		return WarningStyle
	case "invalid", "error":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
