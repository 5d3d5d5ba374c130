// Package frame provides a small in-memory table keyed by institution ID.
//
// A Frame is an ordered list of columns and a list of rows. Each row maps a
// column name to a value; a nil value means the cell is missing. Values are
// normalized on insert to int64, float64, string, bool or nil so that sources
// read through different drivers compare and export the same way.
package frame

import (
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrUnknownColumn is returned when an operation names a column the frame does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Row is a single record. Missing columns read as nil.
type Row map[string]any

// Frame is an ordered, column-named table.
type Frame struct {
	columns []string
	index   map[string]int
	rows    []Row
}

// New creates an empty frame with the given columns. Duplicate names are ignored.
func New(columns ...string) *Frame {
	f := &Frame{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		f.AddColumn(c)
	}
	return f
}

// Columns returns a copy of the column names in order.
func (f *Frame) Columns() []string {
	return slices.Clone(f.columns)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// HasColumn reports whether col is part of the frame.
func (f *Frame) HasColumn(col string) bool {
	_, ok := f.index[col]
	return ok
}

// AddColumn appends col if it is not already present. Existing rows read nil for it.
func (f *Frame) AddColumn(col string) {
	if _, ok := f.index[col]; ok {
		return
	}
	f.index[col] = len(f.columns)
	f.columns = append(f.columns, col)
}

// Append adds a row from positional values, one per column.
func (f *Frame) Append(values ...any) error {
	if len(values) != len(f.columns) {
		return fmt.Errorf("append: got %d values for %d columns", len(values), len(f.columns))
	}
	row := make(Row, len(values))
	for i, v := range values {
		row[f.columns[i]] = Normalize(v)
	}
	f.rows = append(f.rows, row)
	return nil
}

// AppendRow adds a row. Keys that are not columns of the frame are dropped.
func (f *Frame) AppendRow(r Row) {
	row := make(Row, len(f.columns))
	for _, c := range f.columns {
		if v, ok := r[c]; ok {
			row[c] = Normalize(v)
		}
	}
	f.rows = append(f.rows, row)
}

// Row returns a copy of row i.
func (f *Frame) Row(i int) Row {
	out := make(Row, len(f.columns))
	for _, c := range f.columns {
		out[c] = f.rows[i][c]
	}
	return out
}

// Value returns the cell at row i, column col.
func (f *Frame) Value(i int, col string) any {
	return f.rows[i][col]
}

// Set writes a cell. The column is added if needed.
func (f *Frame) Set(i int, col string, v any) {
	f.AddColumn(col)
	f.rows[i][col] = Normalize(v)
}

// Column returns every value of col in row order.
func (f *Frame) Column(col string) ([]any, error) {
	if !f.HasColumn(col) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}
	out := make([]any, len(f.rows))
	for i, r := range f.rows {
		out[i] = r[col]
	}
	return out, nil
}

// Records returns the rows as positional slices in column order.
func (f *Frame) Records() [][]any {
	out := make([][]any, len(f.rows))
	for i, r := range f.rows {
		rec := make([]any, len(f.columns))
		for j, c := range f.columns {
			rec[j] = r[c]
		}
		out[i] = rec
	}
	return out
}

// Rows returns a copy of every row.
func (f *Frame) Rows() []Row {
	out := make([]Row, len(f.rows))
	for i := range f.rows {
		out[i] = f.Row(i)
	}
	return out
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	out := New(f.columns...)
	for _, r := range f.rows {
		out.AppendRow(r)
	}
	return out
}

// Select returns a new frame with only cols, in the given order.
func (f *Frame) Select(cols ...string) (*Frame, error) {
	for _, c := range cols {
		if !f.HasColumn(c) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, c)
		}
	}
	out := New(cols...)
	for _, r := range f.rows {
		out.AppendRow(r)
	}
	return out, nil
}

// Reorder is Select under the name used by report assembly: the result holds
// exactly cols, and naming a column the frame lacks is an error.
func (f *Frame) Reorder(cols []string) (*Frame, error) {
	return f.Select(cols...)
}

// Rename returns a new frame with columns renamed per mapping. Columns absent
// from the mapping keep their names.
func (f *Frame) Rename(mapping map[string]string) *Frame {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		if n, ok := mapping[c]; ok {
			names[i] = n
		} else {
			names[i] = c
		}
	}
	out := New(names...)
	for _, r := range f.rows {
		row := make(Row, len(names))
		for i, c := range f.columns {
			row[names[i]] = r[c]
		}
		out.rows = append(out.rows, row)
	}
	return out
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(Row) bool) *Frame {
	out := New(f.columns...)
	for _, r := range f.rows {
		if keep(r) {
			out.AppendRow(r)
		}
	}
	return out
}

// SortBy returns a copy sorted by col. The sort is stable; missing values go last.
func (f *Frame) SortBy(col string) (*Frame, error) {
	if !f.HasColumn(col) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, col)
	}
	out := f.Clone()
	sort.SliceStable(out.rows, func(i, j int) bool {
		return Compare(out.rows[i][col], out.rows[j][col]) < 0
	})
	return out, nil
}
