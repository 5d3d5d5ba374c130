package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/aca-libraries/libstats/internal/frame"
)

// Table renders headers and rows as a terminal or markdown table.
func (r *Renderer) Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		r.Muted("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	t.AppendHeader(header)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	if r.EffectiveMode() == ModeMarkdown {
		t.RenderMarkdown()
		r.Println()
		return
	}
	t.Render()
}

// Frame renders every row of f as a table.
func (r *Renderer) Frame(f *frame.Frame) {
	rows := make([][]string, f.Len())
	for i := range rows {
		rows[i] = make([]string, len(f.Columns()))
		for j, c := range f.Columns() {
			rows[i][j] = frame.Text(f.Value(i, c))
		}
	}
	r.Table(f.Columns(), rows)
}

// KeyValue writes one labelled value.
func (r *Renderer) KeyValue(key string, value any) {
	v := fmt.Sprint(value)
	if r.EffectiveMode() == ModeMarkdown {
		r.Println(FormatKeyValue(key, v))
		return
	}
	r.Printf("%s: %s\n", key, v)
}
