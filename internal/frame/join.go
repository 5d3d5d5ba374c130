package frame

import (
	"fmt"
	"slices"
)

// JoinStats reports rows skipped because their key could not be read as an
// institution ID.
type JoinStats struct {
	DroppedLeft  int
	DroppedRight int
}

// keyed indexes the rows of f by normalized key. The first row wins for
// duplicate keys.
type keyed struct {
	rows    map[int64]Row
	dropped int
}

func index(f *Frame, key string) keyed {
	k := keyed{rows: make(map[int64]Row, len(f.rows))}
	for _, r := range f.rows {
		id, ok := NormalizeKey(r[key])
		if !ok {
			k.dropped++
			continue
		}
		if _, seen := k.rows[id]; seen {
			continue
		}
		k.rows[id] = r
	}
	return k
}

// LeftJoin keeps every row of left and attaches the columns of right that
// left does not already have, matched on key. Left rows without a match read
// nil for the new columns.
func LeftJoin(left, right *Frame, key string) (*Frame, JoinStats, error) {
	if err := requireKey(left, right, key); err != nil {
		return nil, JoinStats{}, err
	}

	added := newColumns(left, right)
	out := New(append(left.Columns(), added...)...)
	rk := index(right, key)

	for _, lr := range left.rows {
		row := make(Row, len(out.columns))
		for _, c := range left.columns {
			row[c] = lr[c]
		}
		if id, ok := NormalizeKey(lr[key]); ok {
			row[key] = id
			if rr, found := rk.rows[id]; found {
				for _, c := range added {
					row[c] = rr[c]
				}
			}
		}
		out.rows = append(out.rows, row)
	}

	return out, JoinStats{DroppedRight: rk.dropped}, nil
}

// OuterJoin merges left and right on key, keeping rows from both sides.
//
// Columns present on both sides keep the left value. For the columns named in
// coalesce, a missing left value is filled from right. Rows keep left order,
// then right-only rows in right order; columns keep left order, then the new
// right columns. Every left row is kept, duplicates included, and matches the
// first right row with its key. Rows whose key is unusable are dropped on both
// sides.
func OuterJoin(left, right *Frame, key string, coalesce ...string) (*Frame, JoinStats, error) {
	if err := requireKey(left, right, key); err != nil {
		return nil, JoinStats{}, err
	}

	added := newColumns(left, right)
	out := New(append(left.Columns(), added...)...)
	lk := index(left, key)
	rk := index(right, key)

	for _, lr := range left.rows {
		id, ok := NormalizeKey(lr[key])
		if !ok {
			continue
		}
		row := make(Row, len(out.columns))
		for _, c := range left.columns {
			row[c] = lr[c]
		}
		row[key] = id
		if rr, found := rk.rows[id]; found {
			for _, c := range added {
				row[c] = rr[c]
			}
			for _, c := range coalesce {
				if c != key && IsMissing(row[c]) && right.HasColumn(c) {
					row[c] = rr[c]
				}
			}
		}
		out.rows = append(out.rows, row)
	}

	for _, rr := range right.rows {
		id, ok := NormalizeKey(rr[key])
		if !ok {
			continue
		}
		if _, found := lk.rows[id]; found {
			continue
		}
		row := make(Row, len(out.columns))
		for _, c := range out.columns {
			if right.HasColumn(c) {
				row[c] = rr[c]
			}
		}
		row[key] = id
		out.rows = append(out.rows, row)
	}

	return out, JoinStats{DroppedLeft: lk.dropped, DroppedRight: rk.dropped}, nil
}

func requireKey(left, right *Frame, key string) error {
	if !left.HasColumn(key) {
		return fmt.Errorf("left side: %w: %s", ErrUnknownColumn, key)
	}
	if !right.HasColumn(key) {
		return fmt.Errorf("right side: %w: %s", ErrUnknownColumn, key)
	}
	return nil
}

func newColumns(left, right *Frame) []string {
	var added []string
	for _, c := range right.columns {
		if !left.HasColumn(c) && !slices.Contains(added, c) {
			added = append(added, c)
		}
	}
	return added
}
