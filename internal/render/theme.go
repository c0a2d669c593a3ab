// Package render formats pipeline results for the terminal.
package render

import "github.com/charmbracelet/lipgloss"

var (
	Mauve    = lipgloss.Color("#cba6f7")
	Red      = lipgloss.Color("#f38ba8")
	Green    = lipgloss.Color("#a6e3a1")
	Yellow   = lipgloss.Color("#f9e2af")
	Blue     = lipgloss.Color("#89b4fa")
	Overlay0 = lipgloss.Color("#6c7086")
	Surface2 = lipgloss.Color("#585b70")
	Lavender = lipgloss.Color("#b4befe")
	Crust    = lipgloss.Color("#11111b")
)

var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(Crust).
	Background(Mauve).
	Padding(0, 1)

var Panel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Surface2).
	Padding(0, 1)

var TopPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Mauve).
	Padding(0, 1)

var Header = lipgloss.NewStyle().
	Bold(true).
	Foreground(Lavender)

var Dim = lipgloss.NewStyle().
	Foreground(Overlay0)

var Key = lipgloss.NewStyle().
	Foreground(Mauve).
	Bold(true)

var Good = lipgloss.NewStyle().
	Foreground(Green)

var Warn = lipgloss.NewStyle().
	Foreground(Yellow)

var Bad = lipgloss.NewStyle().
	Foreground(Red).
	Bold(true)

var Command = lipgloss.NewStyle().
	Foreground(Blue)

// RiskStyle colours a risk level.
func RiskStyle(risk string) lipgloss.Style {
	switch risk {
	case "low":
		return Good
	case "high":
		return Bad
	default:
		return Warn
	}
}
