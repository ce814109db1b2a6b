package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"charm.land/lipgloss/v2"
)

const maxCellWidth = 60

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("78"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
)

// writeTable prints rows in padded columns. Cells are flattened to one line
// and clipped to maxCellWidth runes.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = lipgloss.Width(header)
	}
	clean := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				cells[i] = flattenCell(row[i])
			}
			if width := lipgloss.Width(cells[i]); width > widths[i] {
				widths[i] = width
			}
		}
		clean = append(clean, cells)
	}

	line := make([]string, len(headers))
	for i, header := range headers {
		line[i] = headerStyle.Width(widths[i] + 2).Render(header)
	}
	fmt.Fprintln(w, strings.TrimRight(strings.Join(line, ""), " "))
	for _, cells := range clean {
		for i, cell := range cells {
			line[i] = lipgloss.NewStyle().Width(widths[i] + 2).Render(cell)
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(line, ""), " "))
	}
}

func flattenCell(value string) string {
	value = strings.Join(strings.Fields(value), " ")
	if utf8.RuneCountInString(value) <= maxCellWidth {
		return value
	}
	runes := []rune(value)
	return string(runes[:maxCellWidth-1]) + "…"
}
