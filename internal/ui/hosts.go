package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/slurmdash/pkg/sshutil"
)

// RenderHostList renders SSH config aliases that can be used as cluster hosts.
// Aliases without a usable key are marked so the user knows to fix them
// before adding the cluster.
func RenderHostList(hosts []sshutil.HostEntry, configured map[string]bool) string {
	if len(hosts) == 0 {
		return "No hosts found in ~/.ssh/config\n"
	}

	okStyle := lipgloss.NewStyle().Foreground(ColorSuccess)
	warnStyle := lipgloss.NewStyle().Foreground(ColorWarning)
	mutedStyle := lipgloss.NewStyle().Foreground(ColorMuted)
	nameStyle := lipgloss.NewStyle().Bold(true)

	width := 0
	for _, h := range hosts {
		width = max(width, lipgloss.Width(h.Alias))
	}

	var b strings.Builder
	for _, h := range hosts {
		symbol := okStyle.Render(SymbolSuccess)
		if !h.HasKey() {
			symbol = warnStyle.Render(SymbolWarning)
		}

		b.WriteString("  " + symbol + " ")
		b.WriteString(nameStyle.Render(h.Alias))
		b.WriteString(strings.Repeat(" ", width-lipgloss.Width(h.Alias)+2))
		b.WriteString(mutedStyle.Render(h.Description()))
		if configured[h.Alias] {
			b.WriteString(" " + okStyle.Render("(configured)"))
		}
		b.WriteString("\n")
	}
	return b.String()
}
