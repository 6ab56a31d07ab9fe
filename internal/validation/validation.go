// Package validation checks a requirement database for schema errors,
// dependency/blocks reciprocity violations, dangling references, and
// dependency cycles. All checks are pure functions returning diagnostics;
// only FixReciprocity mutates the database, and only to re-establish the
// dependency/blocks duality.
package validation

import (
	"fmt"
	"strings"

	"github.com/rtmx-ai/rtmx/internal/graph"
	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// Violation is a single reciprocity finding.
type Violation struct {
	ReqID string // record holding the asserted relation
	Other string // record the relation points at
	Issue string // human-readable description
}

// Report bundles the non-mutating validation passes.
type Report struct {
	Errors      []string    // schema errors
	Warnings    []string    // cycle warnings
	Reciprocity []Violation // reciprocity findings
}

// Clean reports whether the report carries no findings at all.
func (r Report) Clean() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0 && len(r.Reciprocity) == 0
}

// =============================================================================
// SCHEMA VALIDATION
// =============================================================================

// ValidateSchema checks every record for required-field presence, enum
// membership, phase positivity, and dangling local references. Messages
// are stable and name the record and failing field.
func ValidateSchema(db *rtm.Database) []string {
	var errors []string

	for _, req := range db.All() {
		id := req.ReqID
		if strings.TrimSpace(id) == "" {
			id = "<missing req_id>"
			errors = append(errors, "Record with empty req_id")
		}
		if strings.TrimSpace(req.Category) == "" {
			errors = append(errors, fmt.Sprintf("%s: missing required field category", id))
		}
		if strings.TrimSpace(req.RequirementText) == "" {
			errors = append(errors, fmt.Sprintf("%s: missing required field requirement_text", id))
		}
		if !req.Status.IsValid() {
			errors = append(errors, fmt.Sprintf("%s: invalid status %q", id, req.Status))
		}
		if !req.Priority.IsValid() {
			errors = append(errors, fmt.Sprintf("%s: invalid priority %q", id, req.Priority))
		}
		if req.Phase != nil && *req.Phase < 1 {
			errors = append(errors, fmt.Sprintf("%s: invalid phase %d (must be >= 1)", id, *req.Phase))
		}

		for _, dep := range req.DependencyList() {
			if rtm.IsLocalRef(dep) && !db.Exists(dep) {
				errors = append(errors, fmt.Sprintf("%s: dependency %s does not exist", id, dep))
			}
		}
		for _, blocked := range req.BlocksList() {
			if rtm.IsLocalRef(blocked) && !db.Exists(blocked) {
				errors = append(errors, fmt.Sprintf("%s: blocks %s which does not exist", id, blocked))
			}
		}
	}

	return errors
}

// =============================================================================
// RECIPROCITY
// =============================================================================

// CheckReciprocity verifies the dependency/blocks duality: for local
// references, A ∈ blocks(B) ⇔ B ∈ dependencies(A). A reference to a
// missing record gets its own "missing requirement" violation in the same
// list instead of a duality finding.
func CheckReciprocity(db *rtm.Database) []Violation {
	var violations []Violation

	for _, req := range db.All() {
		for _, blocked := range req.BlocksList() {
			if !rtm.IsLocalRef(blocked) {
				continue
			}
			other, err := db.Get(blocked)
			if err != nil {
				violations = append(violations, Violation{
					ReqID: req.ReqID,
					Other: blocked,
					Issue: fmt.Sprintf("blocks missing requirement %s", blocked),
				})
				continue
			}
			if _, ok := other.Dependencies[req.ReqID]; !ok {
				violations = append(violations, Violation{
					ReqID: req.ReqID,
					Other: blocked,
					Issue: fmt.Sprintf("blocks %s but %s does not list it as a dependency", blocked, blocked),
				})
			}
		}

		for _, dep := range req.DependencyList() {
			if !rtm.IsLocalRef(dep) {
				continue
			}
			other, err := db.Get(dep)
			if err != nil {
				violations = append(violations, Violation{
					ReqID: req.ReqID,
					Other: dep,
					Issue: fmt.Sprintf("depends on missing requirement %s", dep),
				})
				continue
			}
			if _, ok := other.Blocks[req.ReqID]; !ok {
				violations = append(violations, Violation{
					ReqID: req.ReqID,
					Other: dep,
					Issue: fmt.Sprintf("depends on %s but %s does not list it in blocks", dep, dep),
				})
			}
		}
	}

	return violations
}

// FixReciprocity re-establishes the duality by adding the missing side of
// each relation whose counterpart record exists. Dangling references are
// skipped; cycles and schema errors are untouched. Returns the number of
// additions made.
func FixReciprocity(db *rtm.Database) int {
	fixed := 0

	for _, req := range db.All() {
		for _, blocked := range req.BlocksList() {
			if !rtm.IsLocalRef(blocked) {
				continue
			}
			other, err := db.Get(blocked)
			if err != nil {
				continue
			}
			if _, ok := other.Dependencies[req.ReqID]; !ok {
				other.Dependencies[req.ReqID] = struct{}{}
				fixed++
			}
		}
		for _, dep := range req.DependencyList() {
			if !rtm.IsLocalRef(dep) {
				continue
			}
			other, err := db.Get(dep)
			if err != nil {
				continue
			}
			if _, ok := other.Blocks[req.ReqID]; !ok {
				other.Blocks[req.ReqID] = struct{}{}
				fixed++
			}
		}
	}

	if fixed > 0 {
		db.Invalidate()
	}
	return fixed
}

// =============================================================================
// CYCLES
// =============================================================================

// ValidateCycles wraps graph cycle detection into warnings that include
// an example walk through each cycle, followed by one warning for each
// record that lists itself as a dependency (graph cycle detection leaves
// such self-loops out).
func ValidateCycles(db *rtm.Database) []string {
	g := graph.FromDatabase(db, "")
	var warnings []string
	for _, cycle := range g.FindCycles() {
		members := make(map[string]struct{}, len(cycle))
		for _, id := range cycle {
			members[id] = struct{}{}
		}
		path := g.FindCyclePath(members)
		warnings = append(warnings, fmt.Sprintf(
			"Circular dependency involving %d requirements: %s",
			len(cycle), strings.Join(path, " -> ")))
	}
	for _, req := range db.All() {
		if _, ok := req.Dependencies[req.ReqID]; ok {
			warnings = append(warnings, fmt.Sprintf("Self-dependency: %s depends on itself", req.ReqID))
		}
	}
	return warnings
}

// ValidateAll runs every non-mutating pass.
func ValidateAll(db *rtm.Database) Report {
	return Report{
		Errors:      ValidateSchema(db),
		Warnings:    ValidateCycles(db),
		Reciprocity: CheckReciprocity(db),
	}
}
