// -----------------------------------------------------------------------
// Table - ordered tabular data passed between reconciliation stages
// -----------------------------------------------------------------------

package models

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// Table is an ordered set of rows sharing one ordered column list.
// Every row is aligned with Columns; cells are kept as strings exactly as read.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of data rows (the header is not counted).
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// IsEmpty reports whether the table is nil or has no data rows.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// ColumnIndex returns the position of the named column, or -1.
// Column names are matched exactly (case-sensitive).
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the cell at row/column, or "" when either is out of range.
func (t *Table) Value(row int, column string) string {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(t.Rows) {
		return ""
	}
	if idx >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][idx]
}

// AppendRow adds a row, padding or truncating it to the column count.
func (t *Table) AppendRow(values []string) {
	row := make([]string, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Filter returns a new table holding only the rows for which keep returns true.
// Row order is preserved and row slices are copied.
func (t *Table) Filter(keep func(row []string) bool) *Table {
	out := NewTable(t.Columns)
	for _, row := range t.Rows {
		if keep(row) {
			out.AppendRow(row)
		}
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := NewTable(t.Columns)
	for _, row := range t.Rows {
		out.AppendRow(row)
	}
	return out
}

// CSV serializes the table as RFC 4180 CSV, header first, rows in insertion order.
func (t *Table) CSV() (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(t.Columns); err != nil {
		return "", fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	return buf.String(), nil
}

// HeaderLine renders the columns as a single CSV header line without a trailing newline.
func HeaderLine(columns []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writing a slice of strings to a bytes.Buffer cannot fail.
	_ = w.Write(columns)
	w.Flush()
	return strings.TrimRight(buf.String(), "\r\n")
}
