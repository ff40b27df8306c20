package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/slurmdash/internal/query"
)

// Semantic colors for status indication. ANSI codes so the palette follows
// the user's terminal theme.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// HealthColor picks the color a cluster health is rendered in.
func HealthColor(h query.Health) lipgloss.Color {
	switch h {
	case query.HealthOK:
		return ColorSuccess
	case query.HealthPartial, query.HealthStale:
		return ColorWarning
	case query.HealthFailed:
		return ColorError
	}
	return ColorMuted
}
