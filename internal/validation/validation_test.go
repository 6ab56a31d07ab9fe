package validation

import (
	"strings"
	"testing"

	"github.com/rtmx-ai/rtmx/internal/rtm"
)

func newReq(id string) *rtm.Requirement {
	req := rtm.NewRequirement(id)
	req.Category = "TEST"
	req.RequirementText = "text for " + id
	return req
}

// =============================================================================
// SCHEMA VALIDATION TESTS
// =============================================================================

func TestValidateSchemaEmptyDatabase(t *testing.T) {
	t.Parallel()

	if errs := ValidateSchema(rtm.NewDatabase(nil)); len(errs) != 0 {
		t.Errorf("errors = %v", errs)
	}
}

func TestValidateSchemaMissingFields(t *testing.T) {
	t.Parallel()

	req := rtm.NewRequirement("REQ-V-1")
	req.Category = "   "
	db := rtm.NewDatabase([]*rtm.Requirement{req})

	errs := ValidateSchema(db)
	if len(errs) != 2 {
		t.Fatalf("errors = %v", errs)
	}
	if !strings.Contains(errs[0], "REQ-V-1") || !strings.Contains(errs[0], "category") {
		t.Errorf("errs[0] = %q", errs[0])
	}
	if !strings.Contains(errs[1], "requirement_text") {
		t.Errorf("errs[1] = %q", errs[1])
	}
}

func TestValidateSchemaPhaseBounds(t *testing.T) {
	t.Parallel()

	bad := newReq("REQ-V-1")
	bad.SetPhase(0)
	worse := newReq("REQ-V-2")
	worse.SetPhase(-3)
	ok := newReq("REQ-V-3")
	ok.SetPhase(1)
	db := rtm.NewDatabase([]*rtm.Requirement{bad, worse, ok})

	errs := ValidateSchema(db)
	if len(errs) != 2 {
		t.Fatalf("errors = %v", errs)
	}
	for _, e := range errs {
		if !strings.Contains(e, "phase") {
			t.Errorf("unexpected error %q", e)
		}
	}
}

func TestValidateSchemaDanglingRefs(t *testing.T) {
	t.Parallel()

	req := newReq("REQ-V-1")
	req.Dependencies["REQ-GONE-1"] = struct{}{}
	req.Blocks["REQ-GONE-2"] = struct{}{}
	// Cross-repo refs are not dangling; federation resolves them.
	req.Dependencies["acme/radar:REQ-RF-001"] = struct{}{}
	db := rtm.NewDatabase([]*rtm.Requirement{req})

	errs := ValidateSchema(db)
	if len(errs) != 2 {
		t.Fatalf("errors = %v", errs)
	}
}

func TestValidateSchemaDeterministic(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-V-1")
	a.Category = ""
	b := newReq("REQ-V-2")
	b.SetPhase(0)
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	first := ValidateSchema(db)
	for i := 0; i < 10; i++ {
		again := ValidateSchema(db)
		if len(again) != len(first) {
			t.Fatalf("run %d: %v vs %v", i, again, first)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("run %d diverged: %v vs %v", i, again, first)
			}
		}
	}
}

// =============================================================================
// RECIPROCITY TESTS
// =============================================================================

func TestCheckReciprocityValidPair(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-R-1")
	a.Blocks["REQ-R-2"] = struct{}{}
	b := newReq("REQ-R-2")
	b.Dependencies["REQ-R-1"] = struct{}{}
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	if violations := CheckReciprocity(db); len(violations) != 0 {
		t.Errorf("violations = %v", violations)
	}
}

func TestCheckReciprocityBlocksWithoutDependency(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-R-1")
	a.Blocks["REQ-R-2"] = struct{}{}
	b := newReq("REQ-R-2")
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	violations := CheckReciprocity(db)
	if len(violations) != 1 {
		t.Fatalf("violations = %v", violations)
	}
	v := violations[0]
	if v.ReqID != "REQ-R-1" || v.Other != "REQ-R-2" {
		t.Errorf("violation = %+v", v)
	}
}

func TestCheckReciprocityDependencyWithoutBlocks(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-R-1")
	a.Dependencies["REQ-R-2"] = struct{}{}
	b := newReq("REQ-R-2")
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	violations := CheckReciprocity(db)
	if len(violations) != 1 {
		t.Fatalf("violations = %v", violations)
	}
	if violations[0].Other != "REQ-R-2" {
		t.Errorf("violation = %+v", violations[0])
	}
}

func TestCheckReciprocityMissingRecords(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-R-1")
	a.Blocks["REQ-GONE-1"] = struct{}{}
	a.Dependencies["REQ-GONE-2"] = struct{}{}
	db := rtm.NewDatabase([]*rtm.Requirement{a})

	violations := CheckReciprocity(db)
	if len(violations) != 2 {
		t.Fatalf("violations = %v", violations)
	}
	for _, v := range violations {
		if !strings.Contains(v.Issue, "missing") {
			t.Errorf("violation should mention missing record: %+v", v)
		}
	}
}

func TestFixReciprocityAddsBothSides(t *testing.T) {
	t.Parallel()

	// E1 scenario: A blocks B, B has no dependency on A.
	a := newReq("REQ-E-1")
	a.Blocks["REQ-E-2"] = struct{}{}
	b := newReq("REQ-E-2")
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	if fixed := FixReciprocity(db); fixed != 1 {
		t.Fatalf("fixed = %d, want 1", fixed)
	}
	if _, ok := b.Dependencies["REQ-E-1"]; !ok {
		t.Error("fix should add REQ-E-1 to B's dependencies")
	}
	if violations := CheckReciprocity(db); len(violations) != 0 {
		t.Errorf("post-fix violations = %v", violations)
	}
}

func TestFixReciprocitySkipsDangling(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-R-1")
	a.Dependencies["REQ-GONE-1"] = struct{}{}
	db := rtm.NewDatabase([]*rtm.Requirement{a})

	if fixed := FixReciprocity(db); fixed != 0 {
		t.Errorf("fixed = %d", fixed)
	}
	// The dangling diagnostic remains; that is the only acceptable
	// residue after a fix pass.
	violations := CheckReciprocity(db)
	if len(violations) != 1 || !strings.Contains(violations[0].Issue, "missing") {
		t.Errorf("violations = %v", violations)
	}
}

func TestFixReciprocityIdempotentOnValidData(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-R-1")
	a.Blocks["REQ-R-2"] = struct{}{}
	b := newReq("REQ-R-2")
	b.Dependencies["REQ-R-1"] = struct{}{}
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	if fixed := FixReciprocity(db); fixed != 0 {
		t.Errorf("fixed = %d on already-valid data", fixed)
	}
}

func TestFixReciprocityInvalidatesCaches(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-R-1")
	a.Blocks["REQ-R-2"] = struct{}{}
	b := newReq("REQ-R-2")
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	gen := db.Generation()
	FixReciprocity(db)
	if db.Generation() == gen {
		t.Error("repair should invalidate derived caches")
	}
}

// =============================================================================
// CYCLE AND BUNDLE TESTS
// =============================================================================

func TestValidateCycles(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-C-1")
	a.Dependencies["REQ-C-2"] = struct{}{}
	b := newReq("REQ-C-2")
	b.Dependencies["REQ-C-3"] = struct{}{}
	c := newReq("REQ-C-3")
	c.Dependencies["REQ-C-1"] = struct{}{}
	db := rtm.NewDatabase([]*rtm.Requirement{a, b, c})

	warnings := ValidateCycles(db)
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v", warnings)
	}
	if !strings.Contains(warnings[0], "->") {
		t.Errorf("warning should include an example path: %q", warnings[0])
	}
	if !strings.Contains(warnings[0], "3 requirements") {
		t.Errorf("warning = %q", warnings[0])
	}
}

func TestValidateAllDoesNotMutate(t *testing.T) {
	t.Parallel()

	a := newReq("REQ-A-1")
	a.Blocks["REQ-A-2"] = struct{}{}
	b := newReq("REQ-A-2")
	db := rtm.NewDatabase([]*rtm.Requirement{a, b})

	report := ValidateAll(db)
	if len(report.Reciprocity) != 1 {
		t.Fatalf("reciprocity = %v", report.Reciprocity)
	}
	if report.Clean() {
		t.Error("report should not be clean")
	}
	// ValidateAll must not repair anything.
	if len(b.Dependencies) != 0 {
		t.Error("ValidateAll mutated the database")
	}
}
