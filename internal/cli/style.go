package cli

import (
	"github.com/charmbracelet/lipgloss"

	"transcript-tool/internal/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func statusStyle(s models.CredentialStatus) lipgloss.Style {
	switch s {
	case models.CredentialActive:
		return doneStyle
	case models.CredentialExpired:
		return errStyle
	}
	return mutedStyle
}
