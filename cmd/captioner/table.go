package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns set right.
type column struct {
	title string
	right bool
}

func left(title string) column  { return column{title: title} }
func right(title string) column { return column{title: title, right: true} }

// renderTable draws rows under cols with the rounded box style. Short rows
// are padded with empty cells.
func renderTable(cols []column, rows [][]string) string {
	if len(cols) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, 0, len(cols))
	configs := make([]table.ColumnConfig, 0, len(cols))
	for i, col := range cols {
		header = append(header, col.title)
		align := text.AlignLeft
		if col.right {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(cols))
		for i := range min(len(row), len(cols)) {
			cells[i] = row[i]
		}
		tw.AppendRow(cells)
	}
	return tw.Render()
}
