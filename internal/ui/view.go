package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeording3/evdq/internal/unified"
)

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderTable())

	if m.adding {
		b.WriteString("\n")
		b.WriteString(m.input.View())
	}
	if m.notice != "" {
		b.WriteString("\n")
		if m.noticeErr {
			b.WriteString(m.styles.Error.Render(m.notice))
		} else {
			b.WriteString(m.styles.Notice.Render(m.notice))
		}
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("a add  p pause  r resume  x remove  s start  J/K reorder  d/C history  ? help  q quit"))
	return b.String()
}

func (m Model) renderHeader() string {
	title := m.styles.Header.Render("EVDQ")
	counts := fmt.Sprintf("%d active  %d queued  %d total",
		len(m.status.Active), len(m.status.Queued), m.badge)

	updated := "waiting for server"
	if !m.lastUpdated.IsZero() {
		updated = "updated " + relativeTime(time.Since(m.lastUpdated))
	}
	return title + "  " + counts + "  " + m.styles.Muted.Render(updated)
}

func (m Model) renderTable() string {
	if len(m.entries) == 0 {
		return m.styles.Muted.Render("No downloads yet. Press 'a' to add one.")
	}

	width := m.width
	if width <= 0 {
		width = 100
	}

	var b strings.Builder
	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("  %-11s %-22s %s", "STATUS", "PROGRESS", "NAME")))
	b.WriteString("\n")

	visible := m.visibleRange()
	for i := visible.start; i < visible.end; i++ {
		entry := m.entries[i]
		line := formatRow(entry, width)
		if i == m.selectedRow {
			line = m.styles.Selected.Render("▸ " + line)
		} else {
			line = "  " + m.styles.statusStyle(entry.Status).Render(line)
		}
		b.WriteString(line)
		if i != visible.end-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

type rowRange struct{ start, end int }

// visibleRange windows the entry list around the selection so long lists
// fit the terminal height.
func (m Model) visibleRange() rowRange {
	rows := m.height - 6 // header, input, notice, help
	if rows < 3 {
		rows = 3
	}
	if len(m.entries) <= rows {
		return rowRange{0, len(m.entries)}
	}
	start := m.selectedRow - rows/2
	if start < 0 {
		start = 0
	}
	end := start + rows
	if end > len(m.entries) {
		end = len(m.entries)
		start = end - rows
	}
	return rowRange{start, end}
}

func (m Model) renderHelp() string {
	lines := []string{
		m.styles.Header.Render("EVDQ — keys"),
		"",
		"  j/k, up/down   move selection",
		"  g/G            top / bottom",
		"  a              add download (enter to submit, esc to cancel)",
		"  p / r          pause / resume selected",
		"  x              remove or cancel selected",
		"  s              force-start selected",
		"  + / -          raise / lower priority",
		"  J / K          move selected within queue",
		"  d              delete selected history entry",
		"  C              clear history",
		"  R              force refresh",
		"  q, ctrl+c      quit",
		"",
		m.styles.Muted.Render("press any key to close"),
	}
	return strings.Join(lines, "\n")
}

// formatRow renders one unified entry as a fixed-width table row.
func formatRow(entry unified.Entry, width int) string {
	status := fmt.Sprintf("%-11s", entry.Status)
	progress := formatProgress(entry)

	label := entry.Label
	max := width - len(status) - 26
	if max < 10 {
		max = 10
	}
	label = truncate(label, max)

	return fmt.Sprintf("%s %-22s %s", status, progress, label)
}

// formatProgress renders a bar for in-flight entries and a plain marker
// for terminal ones.
func formatProgress(entry unified.Entry) string {
	switch entry.Status {
	case "downloading", "paused":
		return progressBar(entry.Progress, 14) + fmt.Sprintf(" %5.1f%%", entry.Progress)
	case "queued":
		return "waiting"
	default:
		return "—"
	}
}

func progressBar(percent float64, cells int) string {
	filled := int(percent / 100 * float64(cells))
	if filled > cells {
		filled = cells
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", cells-filled) + "]"
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

func relativeTime(d time.Duration) string {
	switch {
	case d < 2*time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
