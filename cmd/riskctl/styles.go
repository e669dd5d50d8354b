package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jwolfsohn/Atlas-Sentinel/models"
)

var (
	colorDanger  = lipgloss.Color("#FF6B6B")
	colorWarning = lipgloss.Color("#FFD93D")
	colorSuccess = lipgloss.Color("#6BCF7F")
	colorPrimary = lipgloss.Color("#00BFFF")
	colorMuted   = lipgloss.Color("#6C757D")

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	highStyle = lipgloss.NewStyle().
			Foreground(colorDanger).
			Bold(true)

	mediumStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	lowStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	severityStyles = map[models.Severity]lipgloss.Style{
		models.SeverityExtreme:  highStyle,
		models.SeveritySevere:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C42")).Bold(true),
		models.SeverityModerate: mediumStyle,
	}
)

// renderLevel pads before styling so columns line up under ANSI colour codes.
func renderLevel(level models.RiskLevel) string {
	text := lipgloss.NewStyle().Width(6).Render(string(level))
	switch level {
	case models.RiskHigh:
		return highStyle.Render(text)
	case models.RiskMedium:
		return mediumStyle.Render(text)
	default:
		return lowStyle.Render(text)
	}
}

func renderSeverity(s models.Severity) string {
	text := lipgloss.NewStyle().Width(8).Render(string(s))
	if style, ok := severityStyles[s]; ok {
		return style.Render(text)
	}
	return mutedStyle.Render(text)
}
