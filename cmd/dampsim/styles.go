package main

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	goodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

func title(s string) string { return titleStyle.Render(s) }

func field(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value)
}
