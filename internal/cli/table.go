package cli

import (
	"fmt"
	"io"
	"strings"
)

// PlainTableWriter renders kubectl-style column output without box-drawing
// characters, so results pipe cleanly into grep, awk, and cut.
type PlainTableWriter struct {
	headers     []string
	rows        [][]string
	widths      []int
	minPadding  int
	showHeaders bool
	output      io.Writer
}

// NewPlainTableWriter creates a plain table writer. Headers are shown by
// default; use SetNoHeaders to suppress them.
func NewPlainTableWriter(output io.Writer) *PlainTableWriter {
	return &PlainTableWriter{
		minPadding:  3,
		showHeaders: true,
		output:      output,
	}
}

// SetHeaders sets the column headers. They render in uppercase.
func (w *PlainTableWriter) SetHeaders(headers []string) {
	w.headers = make([]string, len(headers))
	w.widths = make([]int, len(headers))
	for i, h := range headers {
		w.headers[i] = strings.ToUpper(h)
		w.widths[i] = len(w.headers[i])
	}
}

// SetNoHeaders controls whether the header row is suppressed.
func (w *PlainTableWriter) SetNoHeaders(noHeaders bool) {
	w.showHeaders = !noHeaders
}

// AppendRow adds a row, padding or truncating it to the header count.
func (w *PlainTableWriter) AppendRow(row []string) {
	normalized := make([]string, len(w.headers))
	for i := range w.headers {
		if i < len(row) {
			normalized[i] = row[i]
			if len(row[i]) > w.widths[i] {
				w.widths[i] = len(row[i])
			}
		}
	}
	w.rows = append(w.rows, normalized)
}

// Render writes the table to the output writer.
func (w *PlainTableWriter) Render() {
	if len(w.headers) == 0 {
		return
	}

	if w.showHeaders {
		w.writeLine(w.headers)
	}
	for _, row := range w.rows {
		w.writeLine(row)
	}
}

func (w *PlainTableWriter) writeLine(cells []string) {
	var b strings.Builder
	for i, cell := range cells {
		if i == len(cells)-1 {
			// No trailing padding on the last column.
			b.WriteString(cell)
			continue
		}
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", w.widths[i]-len(cell)+w.minPadding))
	}
	fmt.Fprintln(w.output, b.String())
}
