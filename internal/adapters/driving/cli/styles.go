package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// palette mirrors the graphloom colour scheme.
var palette = struct {
	Primary, Secondary, Muted, Success, Warning, Error lipgloss.Color
}{
	Primary:   lipgloss.Color("#7C3AED"),
	Secondary: lipgloss.Color("#06B6D4"),
	Muted:     lipgloss.Color("#6C7086"),
	Success:   lipgloss.Color("#A6E3A1"),
	Warning:   lipgloss.Color("#F9E2AF"),
	Error:     lipgloss.Color("#F38BA8"),
}

// Styles used by command output. lipgloss drops colour automatically
// when stdout is not a terminal.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(palette.Primary)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(palette.Secondary)
	mutedStyle   = lipgloss.NewStyle().Foreground(palette.Muted)
	successStyle = lipgloss.NewStyle().Foreground(palette.Success)
	warningStyle = lipgloss.NewStyle().Foreground(palette.Warning)
	errorStyle   = lipgloss.NewStyle().Foreground(palette.Error)
	cellStyle    = lipgloss.NewStyle().PaddingRight(2)
)

// provenanceStyle colours an entity by the stage that surfaced it.
func provenanceStyle(p string) lipgloss.Style {
	switch p {
	case "uuid_coordinated":
		return successStyle
	case "vector_semantic":
		return headerStyle
	case "audit_activity":
		return warningStyle
	default:
		return mutedStyle
	}
}
