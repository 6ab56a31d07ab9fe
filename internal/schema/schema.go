// Package schema defines the tabular column model for requirement
// databases and the validation of rows against it. A schema is a named,
// ordered set of columns; projects extend the built-in core schema with
// their own columns through Extend and the registry.
package schema

import (
	"fmt"
	"strings"
)

// ColumnType is the data type of a schema column.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
	TypeDate   ColumnType = "date" // YYYY-MM-DD
	TypeList   ColumnType = "list" // pipe-separated values
)

// Column describes one schema column. Validator, when set, is a pure
// predicate over a single cell value.
type Column struct {
	Name        string
	Type        ColumnType
	Required    bool
	Default     string
	Validator   func(value any) bool
	Description string
}

// Schema is a named, ordered collection of columns.
type Schema struct {
	Name        string
	Description string

	columns map[string]Column
	order   []string
}

// New creates an empty schema.
func New(name, description string) *Schema {
	return &Schema{
		Name:        name,
		Description: description,
		columns:     make(map[string]Column),
	}
}

// AddColumn adds or replaces a column. A replaced column keeps its
// original position.
func (s *Schema) AddColumn(col Column) {
	if _, ok := s.columns[col.Name]; !ok {
		s.order = append(s.order, col.Name)
	}
	s.columns[col.Name] = col
}

// RemoveColumn removes a column if present.
func (s *Schema) RemoveColumn(name string) {
	if _, ok := s.columns[name]; !ok {
		return
	}
	delete(s.columns, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// HasColumn reports whether the schema contains a column.
func (s *Schema) HasColumn(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// Column returns a column definition by name.
func (s *Schema) Column(name string) (Column, bool) {
	col, ok := s.columns[name]
	return col, ok
}

// ColumnNames returns column names in schema order.
func (s *Schema) ColumnNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// RequiredColumns returns the names of required columns in schema order.
func (s *Schema) RequiredColumns() []string {
	var out []string
	for _, name := range s.order {
		if s.columns[name].Required {
			out = append(out, name)
		}
	}
	return out
}

// ValidateRow checks a row against the schema and returns ordered
// diagnostic messages: missing required columns first, then validator
// failures, both in schema column order. Diagnostics are data, not errors.
func (s *Schema) ValidateRow(row map[string]any) []string {
	var diags []string

	for _, name := range s.order {
		col := s.columns[name]
		if !col.Required {
			continue
		}
		value, ok := row[name]
		if !ok || isBlank(value) {
			diags = append(diags, fmt.Sprintf("Missing required column: %s", name))
		}
	}

	for _, name := range s.order {
		col := s.columns[name]
		if col.Validator == nil {
			continue
		}
		value, ok := row[name]
		if !ok {
			continue
		}
		if !col.Validator(value) {
			diags = append(diags, fmt.Sprintf("Invalid value for %s: %v", name, value))
		}
	}

	return diags
}

// Extend returns a new schema combining the receiver with another.
// Columns from other override same-named columns; neither input mutates.
func (s *Schema) Extend(other *Schema) *Schema {
	combined := New(s.Name+"+"+other.Name, strings.TrimSpace(s.Description+" Extended with "+other.Description))
	for _, name := range s.order {
		combined.AddColumn(s.columns[name])
	}
	for _, name := range other.order {
		combined.AddColumn(other.columns[name])
	}
	return combined
}

func isBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	}
	return false
}
