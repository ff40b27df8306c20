package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rileyhilliard/slurmdash/internal/query"
	"github.com/rileyhilliard/slurmdash/internal/slurm"
	"github.com/samber/lo"
)

// MaxMessageWidth truncates the message column so rows stay on one line.
const MaxMessageWidth = 60

var healthOrder = []query.Health{
	query.HealthOK, query.HealthPartial, query.HealthStale, query.HealthFailed, query.HealthPending,
}

// RenderStatusTable renders one row per cluster.
func RenderStatusTable(statuses []query.Status, now time.Time) string {
	if len(statuses) == 0 {
		return "No clusters configured\n"
	}

	rows := make([][]string, 0, len(statuses))
	for _, st := range statuses {
		rows = append(rows, []string{
			HealthSymbol(st.Health),
			st.Cluster,
			st.Host,
			nodeSummary(st),
			jobSummary(st),
			dataAge(st, now),
			truncate(st.Message, MaxMessageWidth),
		})
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	mutedStyle := cellStyle.Foreground(ColorMuted)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorMuted)).
		BorderColumn(false).
		Headers("", "CLUSTER", "HOST", "NODES", "JOBS", "AGE", "MESSAGE").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow || row >= len(statuses) {
				return headerStyle
			}
			switch col {
			case 0:
				return cellStyle.Foreground(HealthColor(statuses[row].Health))
			case 5, 6:
				return mutedStyle
			}
			return cellStyle
		})

	return t.String() + "\n"
}

// RenderSummary renders a one-line count of clusters per health.
func RenderSummary(statuses []query.Status) string {
	byHealth := lo.GroupBy(statuses, func(st query.Status) query.Health { return st.Health })

	var parts []string
	for _, h := range healthOrder {
		n := len(byHealth[h])
		if n == 0 {
			continue
		}
		style := lipgloss.NewStyle().Foreground(HealthColor(h))
		parts = append(parts, style.Render(fmt.Sprintf("%d %s", n, h)))
	}

	word := "clusters"
	if len(statuses) == 1 {
		word = "cluster"
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d %s", len(statuses), word)
	}
	return fmt.Sprintf("%d %s: %s", len(statuses), word, strings.Join(parts, ", "))
}

// nodeSummary reads like "12 nodes (8 idle, 3 alloc, 1 down)".
func nodeSummary(st query.Status) string {
	if !st.Snapshot.HasData() {
		return "-"
	}
	nodes := st.Snapshot.Nodes
	count := func(states ...slurm.NodeState) int {
		return lo.CountBy(nodes, func(n slurm.NodeRecord) bool { return lo.Contains(states, n.State) })
	}

	idle := count(slurm.NodeIdle)
	busy := count(slurm.NodeAllocated, slurm.NodeMixed)
	out := count(slurm.NodeDown, slurm.NodeDrained)

	s := fmt.Sprintf("%d (%d idle, %d busy", len(nodes), idle, busy)
	if out > 0 {
		s += fmt.Sprintf(", %d out", out)
	}
	return s + ")"
}

func jobSummary(st query.Status) string {
	if !st.Snapshot.HasData() {
		return "-"
	}
	jobs := st.Snapshot.Jobs
	running := lo.CountBy(jobs, func(j slurm.JobRecord) bool { return j.State == slurm.JobRunning })
	pending := lo.CountBy(jobs, func(j slurm.JobRecord) bool { return j.State == slurm.JobPending })
	return fmt.Sprintf("%d run, %d pend", running, pending)
}

func dataAge(st query.Status, now time.Time) string {
	if !st.Snapshot.HasData() {
		return "never"
	}
	return FormatAge(st.Snapshot.Age(now))
}

// FormatAge renders a duration the way a person would say it.
func FormatAge(d time.Duration) string {
	switch {
	case d < time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
	return fmt.Sprintf("%dh ago", int(d.Hours()))
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
