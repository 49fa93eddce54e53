package weekview

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

var tableHeader = []string{"Date", "Start", "End", "Min", "Title", "Calendar"}

// RenderTable lays rows out as a markdown table padded by display width, so
// CJK titles line up in a terminal.
func RenderTable(rows []Row) string {
	table := [][]string{tableHeader}
	for _, r := range rows {
		table = append(table, []string{
			r.Date, r.Start, r.End, strconv.Itoa(r.DurationMinutes), r.Title, r.Calendar,
		})
	}

	widths := make([]int, len(tableHeader))
	for _, row := range table {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	var lines []string
	for i, row := range table {
		lines = append(lines, renderRow(row, widths))
		if i == 0 {
			sep := make([]string, len(widths))
			for j, w := range widths {
				sep[j] = strings.Repeat("-", w)
			}
			lines = append(lines, renderRow(sep, widths))
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

func renderRow(cells []string, widths []int) string {
	var sb strings.Builder
	sb.WriteString("|")
	for i, cell := range cells {
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(cell, widths[i]))
		sb.WriteString(" |")
	}
	return sb.String()
}
