// Package style holds the lipgloss styles used by the CLI surface
package style

import "github.com/charmbracelet/lipgloss"

var (
	// Error renders top-level failure messages
	Error = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	// Valid and Invalid render check-report verdicts
	Valid   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	Invalid = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
