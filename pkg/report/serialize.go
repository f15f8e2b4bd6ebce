// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"strings"
)

// CSV serializes the report semicolon-separated, with an optional header
// row.
func (r *Report) CSV(header bool) []byte {
	var b strings.Builder
	if len(r.Records) == 0 {
		b.WriteString(NoRecordsFound + "\n")
		return []byte(b.String())
	}

	if header {
		names := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			names[i] = c.Name
		}
		b.WriteString(strings.Join(names, ";"))
		b.WriteString("\n")
	}

	for _, rec := range r.Records {
		cells := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			cells[i] = c.format(rec[i])
		}
		b.WriteString(strings.Join(cells, ";"))
		b.WriteString("\n")
	}

	if agg := r.AggregateRow(); agg != nil {
		cells := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			cells[i] = c.format(agg[i])
		}
		b.WriteString(strings.Join(cells, ";"))
		b.WriteString("\n")
	}

	return []byte(b.String())
}

// TTY serializes the report as space-padded columns, column width being
// the max of every formatted value's width and the header's width.
func (r *Report) TTY() []byte {
	if len(r.Records) == 0 {
		return []byte(NoRecordsFound + "\n")
	}

	formatted := make([][]string, len(r.Records))
	for ri, rec := range r.Records {
		row := make([]string, len(r.Columns))
		for ci, c := range r.Columns {
			row[ci] = c.format(rec[ci])
		}
		formatted[ri] = row
	}

	var aggRow []string
	if agg := r.AggregateRow(); agg != nil {
		aggRow = make([]string, len(r.Columns))
		for ci, c := range r.Columns {
			aggRow[ci] = c.format(agg[ci])
		}
	}

	widths := make([]int, len(r.Columns))
	for ci, c := range r.Columns {
		widths[ci] = len(c.Name)
		for _, row := range formatted {
			if len(row[ci]) > widths[ci] {
				widths[ci] = len(row[ci])
			}
		}
		if aggRow != nil && len(aggRow[ci]) > widths[ci] {
			widths[ci] = len(aggRow[ci])
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			b.WriteString(padRight(cell, widths[i]))
			if i < len(cells)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}

	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c.Name
	}
	writeRow(header)

	for _, row := range formatted {
		writeRow(row)
	}
	if aggRow != nil {
		writeRow(aggRow)
	}

	return []byte(b.String())
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
