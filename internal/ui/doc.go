// Package ui renders cluster state for the terminal.
//
// Output is styled with Lip Gloss. Colors are ANSI codes so they follow the
// terminal theme, and are dropped entirely when the output is not a
// terminal, NO_COLOR is set, or the user passes --no-color:
//
//	ui.ConfigureColor(os.Stdout, noColor)
//	fmt.Print(ui.RenderStatusTable(statuses, time.Now()))
//	fmt.Println(ui.RenderSummary(statuses))
//
// Health is shown with a symbol and color:
//
//	SymbolComplete (green)  - ok
//	SymbolWarning  (yellow) - partial or stale
//	SymbolFail     (red)    - failed
//	SymbolPending  (gray)   - no refresh has finished yet
package ui
