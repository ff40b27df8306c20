package ui

import "github.com/charmbracelet/lipgloss"

// CheckRow is one diagnostic result.
type CheckRow struct {
	Status     string // "pass", "warn", "fail"
	Category   string
	Message    string
	Suggestion string
}

// RenderCheckList renders diagnostic results grouped by category, in the
// order categories first appear.
func RenderCheckList(rows []CheckRow) string {
	if len(rows) == 0 {
		return "No checks to display\n"
	}

	successStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	errorStyle := lipgloss.NewStyle().Foreground(ColorError)
	warnStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	categories := make(map[string][]CheckRow)
	var order []string
	for _, row := range rows {
		if _, seen := categories[row.Category]; !seen {
			order = append(order, row.Category)
		}
		categories[row.Category] = append(categories[row.Category], row)
	}

	var output string
	for _, cat := range order {
		output += headerStyle.Render(cat) + "\n"

		for _, row := range categories[cat] {
			var icon string
			switch row.Status {
			case "pass":
				icon = successStyle.Render(SymbolSuccess)
			case "warn":
				icon = warnStyle.Render(SymbolWarning)
			case "fail":
				icon = errorStyle.Render(SymbolFail)
			default:
				icon = mutedStyle.Render(SymbolPending)
			}

			output += "  " + icon + " " + row.Message + "\n"
			if row.Suggestion != "" && row.Status != "pass" {
				output += "    " + mutedStyle.Render(row.Suggestion) + "\n"
			}
		}
		output += "\n"
	}
	return output
}
