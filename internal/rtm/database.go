package rtm

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// =============================================================================
// DATABASE
// =============================================================================

// Database is an insertion-ordered collection of requirements.
//
// The database is the only owner of requirement records; the graph,
// validation, and coverage engines take read-only references. A single
// database instance is not safe for concurrent mutation.
type Database struct {
	records map[string]*Requirement
	order   []string
	path    string

	// generation increments on every structural mutation (add, remove,
	// dependency/blocks edit). Derived caches key off it.
	generation atomic.Uint64
}

// NewDatabase builds a database from requirements in the given order.
// Later duplicates of an id overwrite earlier ones, keeping the first
// position, matching load semantics of the tabular form.
func NewDatabase(requirements []*Requirement) *Database {
	db := &Database{records: make(map[string]*Requirement, len(requirements))}
	for _, req := range requirements {
		if _, ok := db.records[req.ReqID]; !ok {
			db.order = append(db.order, req.ReqID)
		}
		db.records[req.ReqID] = req
	}
	return db
}

// Path returns the tabular file this database was loaded from, if any.
func (db *Database) Path() string { return db.path }

// SetPath records the backing tabular file path.
func (db *Database) SetPath(path string) { db.path = path }

// Generation returns the structural mutation counter. Derived artifacts
// (dependency graph, validation results) cache against this value and
// rebuild when it changes.
func (db *Database) Generation() uint64 { return db.generation.Load() }

func (db *Database) invalidate() { db.generation.Add(1) }

// Invalidate marks derived caches stale. Callers that mutate requirement
// records directly (rather than through Update) must call this when the
// mutation touches dependency or blocks sets.
func (db *Database) Invalidate() { db.invalidate() }

// Len returns the number of requirements.
func (db *Database) Len() int { return len(db.order) }

// IDs returns all requirement ids in insertion order.
func (db *Database) IDs() []string {
	out := make([]string, len(db.order))
	copy(out, db.order)
	return out
}

// All returns all requirements in insertion order.
func (db *Database) All() []*Requirement {
	out := make([]*Requirement, 0, len(db.order))
	for _, id := range db.order {
		out = append(out, db.records[id])
	}
	return out
}

// Get returns the requirement with the given id. The NotFound message
// names up to five available ids to make typos easy to spot.
func (db *Database) Get(reqID string) (*Requirement, error) {
	if req, ok := db.records[reqID]; ok {
		return req, nil
	}
	available := db.order
	if len(available) > 5 {
		available = available[:5]
	}
	return nil, fmt.Errorf("%w: %s (available: %s)", ErrNotFound, reqID, strings.Join(available, ", "))
}

// Exists reports whether a requirement id is present.
func (db *Database) Exists(reqID string) bool {
	_, ok := db.records[reqID]
	return ok
}

// Add inserts a new requirement.
func (db *Database) Add(req *Requirement) error {
	if _, ok := db.records[req.ReqID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, req.ReqID)
	}
	db.records[req.ReqID] = req
	db.order = append(db.order, req.ReqID)
	db.invalidate()
	return nil
}

// Remove deletes and returns a requirement.
func (db *Database) Remove(reqID string) (*Requirement, error) {
	req, ok := db.records[reqID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, reqID)
	}
	delete(db.records, reqID)
	for i, id := range db.order {
		if id == reqID {
			db.order = append(db.order[:i], db.order[i+1:]...)
			break
		}
	}
	db.invalidate()
	return req, nil
}

// Update applies field edits to a requirement with per-field coercion:
// status and priority accept strings or enum values, dependencies and
// blocks accept pipe-delimited strings, string slices, or sets, phase and
// effort accept numbers or numeric strings. Unknown keys land in Extra.
func (db *Database) Update(reqID string, fields map[string]any) (*Requirement, error) {
	req, err := db.Get(reqID)
	if err != nil {
		return nil, err
	}
	structural := false

	for key, value := range fields {
		switch key {
		case "status":
			req.Status = coerceStatus(value)
		case "priority":
			req.Priority = coercePriority(value)
		case "dependencies":
			req.Dependencies = coerceRefSet(value)
			structural = true
		case "blocks":
			req.Blocks = coerceRefSet(value)
			structural = true
		case "phase":
			req.Phase = coerceInt(value)
		case "effort_weeks":
			req.EffortWeeks = coerceFloat(value)
		case "category":
			req.Category = toString(value)
		case "subcategory":
			req.Subcategory = toString(value)
		case "requirement_text":
			req.RequirementText = toString(value)
		case "target_value":
			req.TargetValue = toString(value)
		case "test_module":
			req.TestModule = toString(value)
		case "test_function":
			req.TestFunction = toString(value)
		case "validation_method":
			req.ValidationMethod = toString(value)
		case "notes":
			req.Notes = toString(value)
		case "assignee":
			req.Assignee = toString(value)
		case "sprint":
			req.Sprint = toString(value)
		case "started_date":
			req.StartedDate = toString(value)
		case "completed_date":
			req.CompletedDate = toString(value)
		case "requirement_file":
			req.RequirementFile = toString(value)
		case "external_id":
			req.ExternalID = toString(value)
		default:
			if req.Extra == nil {
				req.Extra = make(map[string]string)
			}
			req.Extra[key] = toString(value)
		}
	}

	if structural {
		db.invalidate()
	}
	return req, nil
}

// =============================================================================
// QUERIES AND STATISTICS
// =============================================================================

// FilterQuery selects requirements; nil fields match everything and set
// fields combine conjunctively.
type FilterQuery struct {
	Status      *Status
	Priority    *Priority
	Category    *string
	Subcategory *string
	Phase       *int
	HasTest     *bool
}

// Filter returns matching requirements in insertion order.
func (db *Database) Filter(q FilterQuery) []*Requirement {
	var out []*Requirement
	for _, id := range db.order {
		req := db.records[id]
		if q.Status != nil && req.Status != *q.Status {
			continue
		}
		if q.Priority != nil && req.Priority != *q.Priority {
			continue
		}
		if q.Category != nil && req.Category != *q.Category {
			continue
		}
		if q.Subcategory != nil && req.Subcategory != *q.Subcategory {
			continue
		}
		if q.Phase != nil && (req.Phase == nil || *req.Phase != *q.Phase) {
			continue
		}
		if q.HasTest != nil && req.HasTest() != *q.HasTest {
			continue
		}
		out = append(out, req)
	}
	return out
}

// StatusCounts returns requirement counts per status, zero-initialized for
// every enumeration member.
func (db *Database) StatusCounts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, s := range AllStatuses() {
		counts[s] = 0
	}
	for _, req := range db.records {
		counts[req.Status]++
	}
	return counts
}

// CompletionPercentage reports overall completion, counting PARTIAL
// requirements at half weight. Empty databases are 0%.
func (db *Database) CompletionPercentage() float64 {
	if len(db.records) == 0 {
		return 0
	}
	counts := db.StatusCounts()
	complete := float64(counts[StatusComplete])
	partial := float64(counts[StatusPartial])
	return (complete + partial*0.5) / float64(len(db.records)) * 100
}

// =============================================================================
// COERCION HELPERS
// =============================================================================

func coerceStatus(value any) Status {
	switch v := value.(type) {
	case Status:
		return v
	case string:
		return ParseStatus(v)
	}
	return StatusMissing
}

func coercePriority(value any) Priority {
	switch v := value.(type) {
	case Priority:
		return v
	case string:
		return ParsePriority(v)
	}
	return PriorityMedium
}

func coerceRefSet(value any) map[string]struct{} {
	switch v := value.(type) {
	case map[string]struct{}:
		return cloneSet(v)
	case []string:
		out := make(map[string]struct{}, len(v))
		for _, s := range v {
			if s = strings.TrimSpace(s); s != "" {
				out[s] = struct{}{}
			}
		}
		return out
	case string:
		return ParseRefList(v)
	}
	return make(map[string]struct{})
}

func coerceInt(value any) *int {
	switch v := value.(type) {
	case nil:
		return nil
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		n := int(v)
		return &n
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return &n
		}
	}
	return nil
}

func coerceFloat(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", value)
}
