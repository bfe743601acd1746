package tableview

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kong/rosterctl/internal/datatable"
	"github.com/kong/rosterctl/internal/theme"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

const (
	minColumnWidth = 4
	maxColumnWidth = 48
	markerWidth    = 3
	ellipsis       = "…"
)

// Headers returns the labels of the visible columns. The sorted column
// carries an arrow.
func Headers(snap datatable.Snapshot) []string {
	headers := make([]string, len(snap.Columns))
	for i, col := range snap.Columns {
		headers[i] = headerLabel(col, snap.View.Sort)
	}
	return headers
}

func headerLabel(col datatable.ColumnDescriptor, sort datatable.Sort) string {
	label := strings.ToUpper(col.Label)
	if sort.Key != col.Key {
		return label
	}
	if sort.Direction == datatable.SortDesc {
		return label + " ▼"
	}
	return label + " ▲"
}

// RenderStatic writes the visible page of snap as a plain table that fits
// in width columns. Selected rows are flagged in the first column.
func RenderStatic(out io.Writer, title string, snap datatable.Snapshot, width int) error {
	var b strings.Builder
	if title != "" {
		fmt.Fprintln(&b, title)
	}
	if snap.Error != "" {
		fmt.Fprintln(&b, snap.Error)
		_, err := io.WriteString(out, b.String())
		return err
	}
	if len(snap.Rows) == 0 || len(snap.Columns) == 0 {
		fmt.Fprintln(&b, "No data to display.")
		_, err := io.WriteString(out, b.String())
		return err
	}

	headers := Headers(snap)
	cells := snap.Cells()
	gaps := 2 * len(headers)
	widths, _ := calculateColumnWidths(headers, cells, width-markerWidth-gaps)

	writeLine(&b, "", headers, widths)
	for i, row := range snap.Rows {
		marker := ""
		if id, ok := row.ID(); ok && snap.IsSelected(id) {
			marker = "*"
		}
		writeLine(&b, marker, cells[i], widths)
	}
	fmt.Fprintln(&b, FooterText(snap))
	_, err := io.WriteString(out, b.String())
	return err
}

func writeLine(b *strings.Builder, marker string, cells []string, widths []int) {
	b.WriteString(runewidth.FillRight(marker, markerWidth))
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		fitted := fit(cell, widths[i])
		if i == len(cells)-1 {
			b.WriteString(strings.TrimRight(fitted, " "))
			continue
		}
		b.WriteString(fitted)
	}
	b.WriteString("\n")
}

// fit truncates s to width display cells and pads it to exactly width.
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) > width {
		s = truncate.StringWithTail(s, uint(max(width, 1)), ellipsis)
	}
	return runewidth.FillRight(s, width)
}

// FooterText summarizes the pagination and selection state.
func FooterText(snap datatable.Snapshot) string {
	p := snap.Pagination
	pages := max(p.TotalPages, 1)
	parts := []string{
		fmt.Sprintf("Page %d of %d", p.Page+1, pages),
		fmt.Sprintf("%d total", p.TotalItems),
	}
	if n := len(snap.Selection); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	if snap.View.SearchText != "" {
		parts = append(parts, fmt.Sprintf("search %q", snap.View.SearchText))
	}
	for _, k := range snap.View.FilterKeys() {
		parts = append(parts, fmt.Sprintf("%s=%s", k, snap.View.ActiveFilters[k]))
	}
	return strings.Join(parts, " · ")
}

func calculateColumnWidths(headers []string, rows [][]string, widthLimit int) ([]int, []int) {
	widths := make([]int, len(headers))
	minWidths := make([]int, len(headers))
	for i, header := range headers {
		headerWidth := runewidth.StringWidth(header)
		minWidth := clamp(headerWidth, minColumnWidth, maxColumnWidth)
		minWidths[i] = minWidth

		maxWidth := headerWidth
		for _, row := range rows {
			if i < len(row) {
				if w := runewidth.StringWidth(row[i]); w > maxWidth {
					maxWidth = w
				}
			}
		}
		maxWidth = clamp(maxWidth, minColumnWidth, maxColumnWidth)
		if maxWidth < minWidth {
			maxWidth = minWidth
		}
		widths[i] = maxWidth
	}

	if widthLimit <= 0 {
		return widths, minWidths
	}

	total := sum(widths)
	for total > widthLimit {
		idx := widestColumnAboveMin(widths, minWidths)
		if idx == -1 {
			break
		}
		widths[idx]--
		total--
	}

	return widths, minWidths
}

func sum(values []int) int {
	total := 0
	for _, v := range values {
		total += v
	}
	return total
}

func widestColumnAboveMin(widths, minWidths []int) int {
	idx := -1
	maxWidth := math.MinInt
	for i, width := range widths {
		if width > maxWidth && width > minWidths[i] {
			maxWidth = width
			idx = i
		}
	}
	return idx
}

func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func newBoxStyle(p theme.Palette) lipgloss.Style {
	return lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(p.Adaptive(theme.ColorBorder)).
		Padding(0, 1)
}

func newFocusedBoxStyle(p theme.Palette) lipgloss.Style {
	return newBoxStyle(p).BorderForeground(p.Adaptive(theme.ColorAccent))
}
