// Package records holds the in-memory tabular view of a ledger sheet:
// trimmed headers plus string cells, addressed by column name.
package records

import (
	"github.com/vinodismyname/ritualstats/internal/normalize"
)

// Table is an immutable header + rows view. The first header occurrence
// wins when a sheet repeats a column name.
type Table struct {
	headers []string
	rows    [][]string
	index   map[string]int
}

// NewTable trims every header and indexes columns by name. Rows are kept
// as-is; short rows read as empty cells.
func NewTable(headers []string, rows [][]string) *Table {
	t := &Table{
		headers: make([]string, len(headers)),
		rows:    rows,
		index:   make(map[string]int, len(headers)),
	}
	for i, h := range headers {
		name := normalize.Header(h)
		t.headers[i] = name
		if name == "" {
			continue
		}
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	return t
}

// Headers returns a copy of the trimmed header row.
func (t *Table) Headers() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.headers))
	copy(out, t.headers)
	return out
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Has reports whether the column exists.
func (t *Table) Has(col string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[col]
	return ok
}

// Value returns the normalized cell at row i for col, or "" when the
// column is absent or the row is short.
func (t *Table) Value(i int, col string) string {
	return normalize.Value(t.Raw(i, col))
}

// Raw returns the unnormalized cell text.
func (t *Table) Raw(i int, col string) string {
	if t == nil || i < 0 || i >= len(t.rows) {
		return ""
	}
	j, ok := t.index[col]
	if !ok || j >= len(t.rows[i]) {
		return ""
	}
	return t.rows[i][j]
}

// Filter returns a new table sharing headers with only the rows for which
// keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	if t == nil {
		return nil
	}
	rows := make([][]string, 0, len(t.rows))
	for i := range t.rows {
		if keep(i) {
			rows = append(rows, t.rows[i])
		}
	}
	return &Table{headers: t.headers, rows: rows, index: t.index}
}
