// Package export writes listing rows as CSV, an aligned table or plain
// text for the clipboard.
package export

import (
	"bufio"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"perfasm/internal/disasm"
)

// cells returns the text cell followed by one cell per cost column.
func cells(row disasm.Row, n int) []string {
	out := make([]string, 0, n)
	out = append(out, row.Text)
	out = append(out, row.Costs...)
	for len(out) < n {
		out = append(out, "")
	}
	return out[:n]
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteCSV writes a header of columns and one line per row, every cell
// quoted.
func WriteCSV(w io.Writer, columns []string, rows []disasm.Row) error {
	bw := bufio.NewWriter(w)
	writeLine := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteString(quote(f))
		}
		bw.WriteByte('\n')
	}
	writeLine(columns)
	for _, row := range rows {
		writeLine(cells(row, len(columns)))
	}
	return bw.Flush()
}

// WriteTable renders rows as an aligned table with cost columns right
// aligned.
func WriteTable(w io.Writer, columns []string, rows []disasm.Row) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	align := make([]int, len(columns))
	for i := range align {
		align[i] = tablewriter.ALIGN_RIGHT
	}
	if len(align) > 0 {
		align[0] = tablewriter.ALIGN_LEFT
	}
	table.SetColumnAlignment(align)

	for _, row := range rows {
		c := cells(row, len(columns))
		c[0] = disasm.ExpandTabs(c[0])
		table.Append(c)
	}
	table.Render()
	return nil
}

// PlainText renders rows tab separated, header first.
func PlainText(columns []string, rows []disasm.Row) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(columns, "\t"))
	sb.WriteByte('\n')
	for _, row := range rows {
		c := cells(row, len(columns))
		sb.WriteString(strings.TrimRight(strings.Join(c, "\t"), "\t"))
		sb.WriteByte('\n')
	}
	return sb.String()
}
