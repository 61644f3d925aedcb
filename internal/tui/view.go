package tui

import (
	"fmt"
	"math"
	"strings"
)

const (
	colGap        = 2
	minNameWidth  = 10
	digestWidth   = 12
	barBlockWidth = 10 // number of block characters
)

// View implements tea.Model.
func (m *Model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err)
	}

	if m.scanMeta == nil {
		return "Loading..."
	}

	var b strings.Builder
	headerLines := 0

	writeLine := func(line string) {
		b.WriteString(line)
		b.WriteString("\n")
		headerLines++
	}

	writeLine(titleStyle.Render("dupe - Duplicate Browser"))

	scanInfo := fmt.Sprintf("Scan: %s | Root: %s | Files: %s | Groups: %s | Reclaimable: %s",
		m.scanMeta.StartTime.Format("2006-01-02 15:04"),
		truncateMiddle(m.scanMeta.RootPath, 40),
		FormatCount(m.scanMeta.FileCount),
		FormatCount(m.scanMeta.GroupCount),
		FormatSize(m.scanMeta.Reclaimable),
	)
	writeLine(statsStyle.Render(scanInfo))

	var rows []string
	var cursor int
	if m.mode == modeGroups {
		writeLine(breadcrumbStyle.Render(fmt.Sprintf("Groups: %s (sorted by %s)", FormatCount(int64(len(m.groups))), m.sort)))
		if m.status != "" {
			writeLine(statusStyle.Render(m.status))
		}
		writeLine(headerStyle.Render(m.groupHeader()))
		rows = m.groupRows()
		cursor = m.groupCursor
	} else {
		g := m.group
		writeLine(breadcrumbStyle.Render(fmt.Sprintf("Group %s | %s x %d | Reclaimable: %s",
			digestStyle.Render(shortDigest(g.Digest)), FormatSize(g.Size), g.Count, FormatSize(g.Reclaimable))))
		status := fmt.Sprintf("Selected: %d (%s)", len(m.selection), FormatSize(m.selectionSize()))
		if m.status != "" {
			status += " | " + m.status
		}
		writeLine(statusStyle.Render(status))
		if m.mode == modeConfirm {
			writeLine(confirmStyle.Render(fmt.Sprintf("Delete %d files (%s)? y/n",
				len(m.selection), FormatSize(m.selectionSize()))))
		}
		writeLine(headerStyle.Render(m.memberHeader()))
		rows = m.memberRows()
		cursor = m.cursor
	}

	// Calculate visible rows
	footerLines := 2
	visibleRows := m.height - headerLines - footerLines
	if visibleRows < 5 {
		visibleRows = 5
	}

	startIdx := 0
	if cursor >= visibleRows {
		startIdx = cursor - visibleRows + 1
	}
	endIdx := min(len(rows), startIdx+visibleRows)

	for i := startIdx; i < endIdx; i++ {
		if i == cursor {
			b.WriteString(selectedStyle.Render(rows[i]))
		} else {
			b.WriteString(rows[i])
		}
		b.WriteString("\n")
	}

	// Pad if needed
	for i := endIdx - startIdx; i < visibleRows; i++ {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	help := m.helpLine()
	if len(rows) > 0 {
		help = fmt.Sprintf("%s [%d/%d]", help, cursor+1, len(rows))
	}
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

func (m *Model) groupHeader() string {
	gap := strings.Repeat(" ", colGap)
	return fmt.Sprintf("%10s%s%10s%s%6s%s%-*s%s%s",
		headerLabel("RECLAIM", m.sort == SortByReclaim), gap,
		headerLabel("SIZE", m.sort == SortBySize), gap,
		headerLabel("COUNT", m.sort == SortByCount), gap,
		digestWidth, "DIGEST", gap,
		"SHARE",
	)
}

func (m *Model) groupRows() []string {
	gap := strings.Repeat(" ", colGap)
	rows := make([]string, len(m.groups))
	for i, g := range m.groups {
		rows[i] = fmt.Sprintf("%10s%s%10s%s%6s%s%s%s%s",
			FormatSize(g.Reclaimable), gap,
			FormatSize(g.Size), gap,
			FormatCount(g.Count), gap,
			digestStyle.Render(fmt.Sprintf("%-*s", digestWidth, shortDigest(g.Digest))), gap,
			formatBar(g.Reclaimable, m.scanMeta.Reclaimable),
		)
	}
	return rows
}

func (m *Model) memberHeader() string {
	gap := strings.Repeat(" ", colGap)
	return fmt.Sprintf("%3s%s%10s%s%-16s%s%s", "DEL", gap, "SIZE", gap, "MODIFIED", gap, "PATH")
}

func (m *Model) memberRows() []string {
	gap := strings.Repeat(" ", colGap)
	used := 3 + 10 + 16 + colGap*3
	nameWidth := max(minNameWidth, m.width-used)

	rows := make([]string, len(m.members))
	for i, mem := range m.members {
		mark := "[ ]"
		path := fileStyle.Render(truncateMiddle(mem.Path, nameWidth))
		if m.selection[mem.Path] {
			mark = markedStyle.Render("[x]")
			path = markedStyle.Render(truncateMiddle(mem.Path, nameWidth))
		}
		rows[i] = fmt.Sprintf("%s%s%10s%s%-16s%s%s",
			mark, gap,
			FormatSize(mem.Size), gap,
			FormatAge(mem.ModTime), gap,
			path,
		)
	}
	return rows
}

func formatBar(val, total int64) string {
	if total <= 0 || val <= 0 {
		empty := strings.Repeat("░", barBlockWidth)
		return barEmptyStyle.Render(empty) + fmt.Sprintf("  %3d%%", 0)
	}

	pct := float64(val) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}

	filled := int(math.Round(pct / 100 * float64(barBlockWidth)))
	if filled < 1 {
		filled = 1
	}
	if filled > barBlockWidth {
		filled = barBlockWidth
	}

	filledStr := barFilledStyle.Render(strings.Repeat("█", filled))
	emptyStr := barEmptyStyle.Render(strings.Repeat("░", barBlockWidth-filled))
	return filledStr + emptyStr + fmt.Sprintf("  %3d%%", int(math.Round(pct)))
}

func headerLabel(label string, active bool) string {
	if active {
		return label + "v"
	}
	return label
}

func shortDigest(d string) string {
	if len(d) <= digestWidth {
		return d
	}
	return d[:digestWidth]
}

func truncateMiddle(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	head := (maxLen - 3) / 2
	tail := maxLen - 3 - head
	return s[:head] + "..." + s[len(s)-tail:]
}
