// Package ui renders console panels and tables for the secops commands.
package ui

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	Primary = lipgloss.Color("#4A86E8")
	Success = lipgloss.Color("#00D26A")
	Warning = lipgloss.Color("#FFB800")
	Error   = lipgloss.Color("#FF3838")
	Muted   = lipgloss.Color("#6B7280")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(Primary).
			Padding(0, 1)

	SectionStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginTop(1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)

	CellStyle = lipgloss.NewStyle().Padding(0, 1)

	BorderStyle = lipgloss.NewStyle().Foreground(Muted)

	SuccessStyle = lipgloss.NewStyle().Foreground(Success).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(Warning).Bold(true)
	ErrorStyle   = lipgloss.NewStyle().Foreground(Error).Bold(true)
	MutedStyle   = lipgloss.NewStyle().Foreground(Muted)
)

// StatusStyle picks the colour for a status or mark cell
func StatusStyle(status string) (lipgloss.Style, bool) {
	switch status {
	case "Success", "Verified", "✓":
		return SuccessStyle, true
	case "Failed", "False Positive", "✗":
		return ErrorStyle, true
	case "Skipped", "Manual Check Required", "!":
		return WarningStyle, true
	case "Not Verified (Dry Run)":
		return MutedStyle, true
	}
	return lipgloss.Style{}, false
}
