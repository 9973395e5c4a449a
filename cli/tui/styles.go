// Package tui provides Bubble Tea components for the netbackup CLI.
//
// The only interactive view is the transfer progress bar. It is shown on
// stderr when stderr is a terminal and --no-progress is not set.
package tui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#7C3AED") // Purple
	successColor = lipgloss.Color("#10B981") // Green
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Styles for TUI components and CLI summaries.
var (
	// TitleStyle for the transfer heading.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// SuccessStyle for completed operations.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// ErrorStyle for failed operations.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// MutedStyle for counters and hints.
	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// OpStyle returns the style used for a journal op or transfer outcome.
func OpStyle(op string) lipgloss.Style {
	switch op {
	case "commit", "store", "done":
		return SuccessStyle
	case "delete", "failed", "canceled":
		return ErrorStyle
	default:
		return MutedStyle
	}
}
