package schema

import (
	"sync"

	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// enumValidator admits members of the given value set plus the empty cell.
func enumValidator(values ...string) func(any) bool {
	allowed := make(map[string]struct{}, len(values)+1)
	allowed[""] = struct{}{}
	for _, v := range values {
		allowed[v] = struct{}{}
	}
	return func(value any) bool {
		s, ok := value.(string)
		if !ok {
			return false
		}
		_, ok = allowed[s]
		return ok
	}
}

// Core returns the 20-column core schema every requirement database shares.
func Core() *Schema {
	s := New("core", "Core RTM schema with essential columns for requirements traceability")
	s.AddColumn(Column{Name: "req_id", Type: TypeString, Required: true, Description: "Unique requirement identifier (e.g., REQ-SW-001)"})
	s.AddColumn(Column{Name: "category", Type: TypeString, Required: true, Description: "High-level grouping (e.g., SOFTWARE, MODE, PERFORMANCE)"})
	s.AddColumn(Column{Name: "subcategory", Type: TypeString, Description: "Detailed classification within category"})
	s.AddColumn(Column{Name: "requirement_text", Type: TypeString, Required: true, Description: "Human-readable requirement description"})
	s.AddColumn(Column{Name: "target_value", Type: TypeString, Description: "Quantitative acceptance criteria"})
	s.AddColumn(Column{Name: "test_module", Type: TypeString, Description: "Test file implementing validation"})
	s.AddColumn(Column{Name: "test_function", Type: TypeString, Description: "Specific test function name"})
	s.AddColumn(Column{Name: "validation_method", Type: TypeString, Description: "Testing approach (Analysis, Test, Design, Inspection)"})
	s.AddColumn(Column{
		Name: "status", Type: TypeString, Required: true, Default: string(rtm.StatusMissing),
		Description: "Completion status (COMPLETE, PARTIAL, MISSING)",
		Validator: enumValidator(
			string(rtm.StatusComplete), string(rtm.StatusPartial),
			string(rtm.StatusMissing), string(rtm.StatusNotStarted),
		),
	})
	s.AddColumn(Column{
		Name: "priority", Type: TypeString, Default: string(rtm.PriorityMedium),
		Description: "Priority level (P0, HIGH, MEDIUM, LOW)",
		Validator: enumValidator(
			string(rtm.PriorityP0), string(rtm.PriorityHigh),
			string(rtm.PriorityMedium), string(rtm.PriorityLow),
		),
	})
	s.AddColumn(Column{Name: "phase", Type: TypeInt, Description: "Development phase (1, 2, 3, etc.)"})
	s.AddColumn(Column{Name: "notes", Type: TypeString, Description: "Additional context and notes"})
	s.AddColumn(Column{Name: "effort_weeks", Type: TypeFloat, Description: "Estimated effort in weeks"})
	s.AddColumn(Column{Name: "dependencies", Type: TypeList, Description: "Pipe-separated list of requirement IDs this depends on"})
	s.AddColumn(Column{Name: "blocks", Type: TypeList, Description: "Pipe-separated list of requirement IDs this blocks"})
	s.AddColumn(Column{Name: "assignee", Type: TypeString, Description: "Person responsible for the requirement"})
	s.AddColumn(Column{Name: "sprint", Type: TypeString, Description: "Target sprint or version"})
	s.AddColumn(Column{Name: "started_date", Type: TypeDate, Description: "Date work began (YYYY-MM-DD)"})
	s.AddColumn(Column{Name: "completed_date", Type: TypeDate, Description: "Date completed (YYYY-MM-DD)"})
	s.AddColumn(Column{Name: "requirement_file", Type: TypeString, Description: "Path to detailed specification markdown file"})
	return s
}

// TaxonomyExtension returns the validation-taxonomy extension: boolean
// scope/technique/environment markers plus metric columns.
func TaxonomyExtension() *Schema {
	s := New("taxonomy", "Validation taxonomy with scope, technique, and environment markers")

	boolCol := func(name, desc string) Column {
		return Column{Name: name, Type: TypeBool, Default: "False", Description: desc}
	}

	// Legacy validation-type columns.
	s.AddColumn(boolCol("unit_test", "Has unit test coverage"))
	s.AddColumn(boolCol("integration_test", "Has integration test coverage"))
	s.AddColumn(boolCol("parametric_test", "Has parametric sweep test"))
	s.AddColumn(boolCol("monte_carlo_test", "Has Monte Carlo test"))
	s.AddColumn(boolCol("stress_test", "Has stress/boundary test"))
	// Scope triad.
	s.AddColumn(boolCol("scope_unit", "Single component isolation test"))
	s.AddColumn(boolCol("scope_integration", "Multi-component interaction test"))
	s.AddColumn(boolCol("scope_system", "End-to-end system test"))
	// Technique markers.
	s.AddColumn(boolCol("technique_nominal", "Typical operating parameters"))
	s.AddColumn(boolCol("technique_parametric", "Systematic parameter space exploration"))
	s.AddColumn(boolCol("technique_monte_carlo", "Random scenario testing"))
	s.AddColumn(boolCol("technique_stress", "Boundary/edge case testing"))
	// Environment markers.
	s.AddColumn(boolCol("env_simulation", "Pure software synthetic signals"))
	s.AddColumn(boolCol("env_hil", "Hardware-in-loop with controlled signals"))
	s.AddColumn(boolCol("env_anechoic", "RF anechoic chamber characterization"))
	s.AddColumn(boolCol("env_static_field", "Outdoor stationary targets"))
	s.AddColumn(boolCol("env_dynamic_field", "Outdoor moving targets"))
	// Metrics.
	s.AddColumn(Column{Name: "baseline_metric", Type: TypeFloat, Description: "Previous measured value"})
	s.AddColumn(Column{Name: "current_metric", Type: TypeFloat, Description: "Latest measured value"})
	s.AddColumn(Column{Name: "target_metric", Type: TypeFloat, Description: "Acceptance threshold"})
	s.AddColumn(Column{Name: "metric_unit", Type: TypeString, Description: "Units for metrics (Hz, m, m/s, etc.)"})
	s.AddColumn(Column{Name: "lead_time_weeks", Type: TypeFloat, Description: "Procurement lead time"})
	s.AddColumn(Column{Name: "supplier_part", Type: TypeString, Description: "Hardware part number if applicable"})
	return s
}

// =============================================================================
// REGISTRY
// =============================================================================

var (
	registryMu sync.RWMutex
	registry   = map[string]*Schema{}
)

func init() {
	core := Core()
	registry["core"] = core
	registry["taxonomy"] = core.Extend(TaxonomyExtension())
	registry["taxonomy"].Name = "taxonomy"
}

// Get returns a registered schema by name.
func Get(name string) (*Schema, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	if s, ok := registry[name]; ok {
		return s, nil
	}
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return nil, &UnknownSchemaError{Name: name, Available: names}
}

// Register adds a custom schema, replacing any schema with the same name.
func Register(s *Schema) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[s.Name] = s
}

// List returns the registered schema names.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	return names
}
