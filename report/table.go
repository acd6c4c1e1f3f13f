// Package report renders recon runs for terminals and files: box tables,
// a progress bar, and the plain-text results and extraction files.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// MaxCellWidth is the display width at which cell text wraps.
const MaxCellWidth = 80

// Table is a box-drawn table. Cells may contain newlines; long lines wrap
// at MaxCellWidth columns. Widths are display widths, so CJK and emoji
// stay aligned.
type Table struct {
	Title   string
	Headers []string
	// Lines draws a separator between rows.
	Lines bool

	rows [][]string
}

// NewTable creates a table with the given column headers.
func NewTable(title string, headers ...string) *Table {
	return &Table{Title: title, Headers: headers}
}

// AddRow appends a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table to w.
func (t *Table) Render(w io.Writer) error {
	header := t.split(t.Headers)
	body := make([][][]string, len(t.rows))
	for i, r := range t.rows {
		body[i] = t.split(r)
	}

	widths := make([]int, len(t.Headers))
	measure := func(cells [][]string) {
		for i, lines := range cells {
			for _, l := range lines {
				widths[i] = max(widths[i], runewidth.StringWidth(l))
			}
		}
	}
	measure(header)
	for _, r := range body {
		measure(r)
	}

	var b strings.Builder
	if t.Title != "" {
		total := len(widths)*3 + 1
		for _, wd := range widths {
			total += wd
		}
		pad := max(0, (total-runewidth.StringWidth(t.Title))/2)
		b.WriteString(strings.Repeat(" ", pad) + t.Title + "\n")
	}
	b.WriteString(rule(widths, "╭", "┬", "╮"))
	writeRow(&b, header, widths)
	b.WriteString(rule(widths, "├", "┼", "┤"))
	for i, r := range body {
		if i > 0 && t.Lines {
			b.WriteString(rule(widths, "├", "┼", "┤"))
		}
		writeRow(&b, r, widths)
	}
	b.WriteString(rule(widths, "╰", "┴", "╯"))

	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Table) split(cells []string) [][]string {
	out := make([][]string, len(cells))
	for i, c := range cells {
		for _, l := range strings.Split(c, "\n") {
			wrapped := runewidth.Wrap(l, MaxCellWidth)
			out[i] = append(out[i], strings.Split(wrapped, "\n")...)
		}
	}
	return out
}

func rule(widths []int, left, mid, right string) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strings.Repeat("─", w+2)
	}
	return left + strings.Join(parts, mid) + right + "\n"
}

func writeRow(b *strings.Builder, cells [][]string, widths []int) {
	height := 1
	for _, c := range cells {
		height = max(height, len(c))
	}
	for line := 0; line < height; line++ {
		b.WriteString("│")
		for i, c := range cells {
			s := ""
			if line < len(c) {
				s = c[line]
			}
			fmt.Fprintf(b, " %s │", runewidth.FillRight(s, widths[i]))
		}
		b.WriteString("\n")
	}
}

// Truncate cuts s to at most n runes, appending "..." when it cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
