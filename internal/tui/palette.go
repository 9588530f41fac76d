package tui

import "github.com/charmbracelet/lipgloss"

// Shared colors for progress, summaries and per-file reference listings.
var (
	ColorText   = lipgloss.Color("#E5E9F0")
	ColorMuted  = lipgloss.Color("#7A8291")
	ColorFile   = lipgloss.Color("#88C0D0")
	ColorBullet = lipgloss.Color("#81A1C1")
	ColorSaved  = lipgloss.Color("#A3BE8C")
	ColorWarn   = lipgloss.Color("#EBCB8B")
)
