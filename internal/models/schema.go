package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Status values accepted in the reconciliation Status column.
const (
	StatusMatched   = "MATCHED"
	StatusUnmatched = "UNMATCHED"
	StatusPartial   = "PARTIAL"
)

// ColumnStatus is the enumerated reconciliation column.
const ColumnStatus = "Status"

// EnumColumn constrains a column to a closed set of values.
// Default replaces empty or missing cells.
type EnumColumn struct {
	Allowed []string `validate:"required,min=1,dive,required"`
	Default string   `validate:"required"`
}

// Schema is an exact, ordered column contract for a table.
type Schema struct {
	Name    string                `validate:"required"`
	Columns []string              `validate:"required,min=1,dive,required"`
	Enums   map[string]EnumColumn `validate:"dive"`
}

// ReconciliationSchema is the 17-column matching output.
var ReconciliationSchema = Schema{
	Name: "reconciliation",
	Columns: []string{
		"No", "Item Type", "Reconciliation", "SIDE", "Value Date", "Ref 1", "Amount",
		"Amt CCY", "Bus Entity", "Stmt Date", "Rule", "ENTRY DATE", "Ref 2", "Ref 3",
		"Ref 4", "Tran Code", "Status",
	},
	Enums: map[string]EnumColumn{
		ColumnStatus: {
			Allowed: []string{StatusMatched, StatusUnmatched, StatusPartial},
			Default: StatusUnmatched,
		},
	},
}

// SuggestionSchema is the 3-column resolution output.
var SuggestionSchema = Schema{
	Name:    "suggestions",
	Columns: []string{"Ref 1", "Issue", "Suggested Resolution"},
}

// Header returns the schema's header line.
func (s Schema) Header() string {
	return HeaderLine(s.Columns)
}

// Width returns the expected column count.
func (s Schema) Width() int {
	return len(s.Columns)
}

// IsAllowed reports whether value is an allowed value of the enumerated column.
// Columns without an enum accept anything.
func (s Schema) IsAllowed(column, value string) bool {
	enum, ok := s.Enums[column]
	if !ok {
		return true
	}
	for _, a := range enum.Allowed {
		if a == value {
			return true
		}
	}
	return false
}

// Validate checks that the schema is well formed and that every enum refers to a
// declared column.
func (s Schema) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid schema %q: %w", s.Name, err)
	}

	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if seen[c] {
			return fmt.Errorf("invalid schema %q: duplicate column %q", s.Name, c)
		}
		seen[c] = true
	}
	for name := range s.Enums {
		if !seen[name] {
			return fmt.Errorf("invalid schema %q: enum column %q is not declared", s.Name, name)
		}
	}
	return nil
}

// Conforms reports whether the table's columns equal the schema exactly (count, names, order).
func (s Schema) Conforms(t *Table) bool {
	if t == nil || len(t.Columns) != len(s.Columns) {
		return false
	}
	for i := range s.Columns {
		if t.Columns[i] != s.Columns[i] {
			return false
		}
	}
	for _, row := range t.Rows {
		if len(row) != len(s.Columns) {
			return false
		}
	}
	return true
}
