package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	biliPink  = lipgloss.Color("#FB7299")
	dimGray   = lipgloss.Color("#6B7280")
	lightGray = lipgloss.Color("#9CA3AF")
	white     = lipgloss.Color("#F9FAFB")
	green     = lipgloss.Color("#10B981")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(white).
			Bold(true)

	groupStyle = lipgloss.NewStyle().
			Foreground(biliPink).
			Bold(true)

	itemStyle = lipgloss.NewStyle().
			Foreground(lightGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(white).
			Background(lipgloss.Color("#374151"))

	pinStyle = lipgloss.NewStyle().
			Foreground(green)

	dimStyle = lipgloss.NewStyle().
			Foreground(dimGray)

	footerStyle = lipgloss.NewStyle().
			Foreground(dimGray).
			MarginTop(1)
)
