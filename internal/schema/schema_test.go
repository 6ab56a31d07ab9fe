package schema

import (
	"errors"
	"testing"
)

func TestCoreSchemaShape(t *testing.T) {
	t.Parallel()

	core := Core()
	if got := len(core.ColumnNames()); got != 20 {
		t.Fatalf("core schema has %d columns, want 20", got)
	}
	if core.ColumnNames()[0] != "req_id" {
		t.Errorf("first column = %q", core.ColumnNames()[0])
	}
	required := core.RequiredColumns()
	want := []string{"req_id", "category", "requirement_text", "status"}
	if len(required) != len(want) {
		t.Fatalf("required = %v, want %v", required, want)
	}
	for i := range want {
		if required[i] != want[i] {
			t.Fatalf("required = %v, want %v", required, want)
		}
	}
}

func TestValidateRowMissingRequired(t *testing.T) {
	t.Parallel()

	core := Core()
	diags := core.ValidateRow(map[string]any{
		"req_id":   "REQ-SW-001",
		"category": "   ",
		"status":   "MISSING",
	})
	if len(diags) != 2 {
		t.Fatalf("diags = %v", diags)
	}
	if diags[0] != "Missing required column: category" {
		t.Errorf("diags[0] = %q", diags[0])
	}
	if diags[1] != "Missing required column: requirement_text" {
		t.Errorf("diags[1] = %q", diags[1])
	}
}

func TestValidateRowEnumValidators(t *testing.T) {
	t.Parallel()

	core := Core()
	diags := core.ValidateRow(map[string]any{
		"req_id":           "REQ-SW-001",
		"category":         "SW",
		"requirement_text": "does the thing",
		"status":           "DONE",
		"priority":         "URGENT",
	})
	if len(diags) != 2 {
		t.Fatalf("diags = %v", diags)
	}
	if diags[0] != "Invalid value for status: DONE" {
		t.Errorf("diags[0] = %q", diags[0])
	}
	if diags[1] != "Invalid value for priority: URGENT" {
		t.Errorf("diags[1] = %q", diags[1])
	}
}

func TestValidateRowEmptyEnumValuesAllowed(t *testing.T) {
	t.Parallel()

	core := Core()
	diags := core.ValidateRow(map[string]any{
		"req_id":           "REQ-SW-001",
		"category":         "SW",
		"requirement_text": "does the thing",
		"status":           "COMPLETE",
		"priority":         "",
	})
	// Empty priority cell falls back to the default; status is required so
	// an empty status is reported as missing, not invalid.
	if len(diags) != 0 {
		t.Fatalf("diags = %v", diags)
	}
}

func TestExtendOverridesAndPreservesInputs(t *testing.T) {
	t.Parallel()

	core := Core()
	ext := New("custom", "custom columns")
	ext.AddColumn(Column{Name: "priority", Type: TypeString, Description: "relaxed priority"})
	ext.AddColumn(Column{Name: "risk_level", Type: TypeString})

	combined := core.Extend(ext)

	if !combined.HasColumn("risk_level") {
		t.Error("combined schema missing extension column")
	}
	col, _ := combined.Column("priority")
	if col.Validator != nil {
		t.Error("extension should override the core priority validator")
	}
	// Inputs are untouched.
	if core.HasColumn("risk_level") {
		t.Error("Extend mutated the receiver")
	}
	origPriority, _ := core.Column("priority")
	if origPriority.Validator == nil {
		t.Error("Extend mutated the core priority column")
	}
	if got := len(core.ColumnNames()); got != 20 {
		t.Errorf("core column count changed: %d", got)
	}
}

func TestAddRemoveHasColumn(t *testing.T) {
	t.Parallel()

	s := New("scratch", "")
	s.AddColumn(Column{Name: "alpha"})
	s.AddColumn(Column{Name: "beta"})
	if !s.HasColumn("alpha") {
		t.Error("missing alpha")
	}
	s.RemoveColumn("alpha")
	if s.HasColumn("alpha") {
		t.Error("alpha not removed")
	}
	if len(s.ColumnNames()) != 1 || s.ColumnNames()[0] != "beta" {
		t.Errorf("columns = %v", s.ColumnNames())
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	core, err := Get("core")
	if err != nil {
		t.Fatalf("Get(core) error: %v", err)
	}
	if core.Name != "core" {
		t.Errorf("name = %q", core.Name)
	}

	taxonomy, err := Get("taxonomy")
	if err != nil {
		t.Fatalf("Get(taxonomy) error: %v", err)
	}
	if !taxonomy.HasColumn("scope_unit") || !taxonomy.HasColumn("req_id") {
		t.Error("taxonomy schema should be a superset of core")
	}

	_, err = Get("nope")
	var unknown *UnknownSchemaError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownSchemaError, got %v", err)
	}
}
