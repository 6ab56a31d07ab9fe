// Package coverage maps observed test outcomes onto requirement status
// transitions. The collector consumes a plain test→requirements mapping —
// how the mapping was gathered (markers, annotations, manifests) is a
// collaborator concern. Proposing transitions and committing them are
// separate steps, so a dry run falls out naturally.
package coverage

import (
	"sort"

	"github.com/rtmx-ai/rtmx/internal/rtm"
)

// Outcome is the result of one test execution.
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// RequirementCoverage aggregates the tests observed for one requirement.
type RequirementCoverage struct {
	ReqID   string
	Passed  int
	Failed  int
	Skipped int
	Tests   []string
}

// Total returns the number of observed test executions.
func (c *RequirementCoverage) Total() int {
	return c.Passed + c.Failed + c.Skipped
}

// ProposedStatus applies the transition rules to a prior status:
//
//	no tests observed            -> unchanged
//	any failure, prior COMPLETE  -> PARTIAL (regression)
//	any failure otherwise        -> unchanged
//	no failures, any pass        -> COMPLETE
//	only skips                   -> unchanged
func (c *RequirementCoverage) ProposedStatus(prior rtm.Status) rtm.Status {
	if c.Total() == 0 {
		return prior
	}
	if c.Failed > 0 {
		if prior == rtm.StatusComplete {
			return rtm.StatusPartial
		}
		return prior
	}
	if c.Passed > 0 {
		return rtm.StatusComplete
	}
	return prior
}

// =============================================================================
// COLLECTOR
// =============================================================================

// Collector accumulates per-test outcomes keyed by requirement id.
type Collector struct {
	byReq map[string]*RequirementCoverage
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{byReq: make(map[string]*RequirementCoverage)}
}

// Record notes one test execution covering zero or more requirements.
// Tests with no requirement markers contribute nothing.
func (c *Collector) Record(testID string, outcome Outcome, reqIDs ...string) {
	for _, reqID := range reqIDs {
		cov, ok := c.byReq[reqID]
		if !ok {
			cov = &RequirementCoverage{ReqID: reqID}
			c.byReq[reqID] = cov
		}
		switch outcome {
		case OutcomePassed:
			cov.Passed++
		case OutcomeFailed:
			cov.Failed++
		case OutcomeSkipped:
			cov.Skipped++
		}
		cov.Tests = append(cov.Tests, testID)
	}
}

// RecordMapping replays a full outcome table against a test→requirements
// mapping. Tests are replayed in id order so repeated runs aggregate
// identically.
func (c *Collector) RecordMapping(outcomes map[string]Outcome, tests map[string][]string) {
	ids := make([]string, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, testID := range ids {
		c.Record(testID, outcomes[testID], tests[testID]...)
	}
}

// Report returns the per-requirement aggregates keyed by requirement id.
func (c *Collector) Report() map[string]*RequirementCoverage {
	out := make(map[string]*RequirementCoverage, len(c.byReq))
	for id, cov := range c.byReq {
		out[id] = cov
	}
	return out
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transition is one proposed status change.
type Transition struct {
	ReqID string
	From  rtm.Status
	To    rtm.Status
}

// Propose computes the status transitions the observed coverage implies
// for the database, without mutating anything. Requirements unknown to
// the database are skipped; unchanged statuses are omitted. Output is
// ordered by requirement id.
func (c *Collector) Propose(db *rtm.Database) []Transition {
	ids := make([]string, 0, len(c.byReq))
	for id := range c.byReq {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var transitions []Transition
	for _, id := range ids {
		req, err := db.Get(id)
		if err != nil {
			continue
		}
		proposed := c.byReq[id].ProposedStatus(req.Status)
		if proposed != req.Status {
			transitions = append(transitions, Transition{ReqID: id, From: req.Status, To: proposed})
		}
	}
	return transitions
}

// Apply commits proposed transitions to the database and returns how many
// were applied. Requirements that vanished since the proposal are skipped.
func Apply(db *rtm.Database, transitions []Transition) int {
	applied := 0
	for _, tr := range transitions {
		if _, err := db.Update(tr.ReqID, map[string]any{"status": tr.To}); err != nil {
			// NotFound is the only failure Update can produce here; the
			// requirement vanished between propose and apply.
			continue
		}
		applied++
	}
	return applied
}
