package ui

import "github.com/rileyhilliard/slurmdash/internal/query"

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓"
	SymbolFail     = "✗"
	SymbolPending  = "○"
	SymbolProgress = "◐"
	SymbolComplete = "●"
	SymbolWarning  = "⚠"
)

// HealthSymbol returns the indicator shown next to a cluster.
func HealthSymbol(h query.Health) string {
	switch h {
	case query.HealthOK:
		return SymbolComplete
	case query.HealthPartial, query.HealthStale:
		return SymbolWarning
	case query.HealthFailed:
		return SymbolFail
	}
	return SymbolPending
}
