package coverage

import (
	"testing"

	"github.com/rtmx-ai/rtmx/internal/rtm"
)

func newReq(id string, status rtm.Status) *rtm.Requirement {
	req := rtm.NewRequirement(id)
	req.Category = "TEST"
	req.RequirementText = "text"
	req.Status = status
	return req
}

// =============================================================================
// TRANSITION RULE TESTS
// =============================================================================

func TestProposedStatusTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name                     string
		passed, failed, skipped  int
		prior                    rtm.Status
		want                     rtm.Status
	}{
		{"no tests leaves status", 0, 0, 0, rtm.StatusMissing, rtm.StatusMissing},
		{"all passing completes", 3, 0, 0, rtm.StatusMissing, rtm.StatusComplete},
		{"passing with skips completes", 2, 0, 1, rtm.StatusPartial, rtm.StatusComplete},
		{"failure regresses complete", 1, 1, 0, rtm.StatusComplete, rtm.StatusPartial},
		{"failure leaves missing", 0, 2, 0, rtm.StatusMissing, rtm.StatusMissing},
		{"failure leaves partial", 1, 1, 0, rtm.StatusPartial, rtm.StatusPartial},
		{"failure leaves not_started", 0, 1, 0, rtm.StatusNotStarted, rtm.StatusNotStarted},
		{"only skips leave status", 0, 0, 3, rtm.StatusPartial, rtm.StatusPartial},
		{"only skips leave complete", 0, 0, 1, rtm.StatusComplete, rtm.StatusComplete},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cov := &RequirementCoverage{Passed: tc.passed, Failed: tc.failed, Skipped: tc.skipped}
			if got := cov.ProposedStatus(tc.prior); got != tc.want {
				t.Errorf("ProposedStatus(%s) = %s, want %s", tc.prior, got, tc.want)
			}
		})
	}
}

// =============================================================================
// COLLECTOR TESTS
// =============================================================================

func TestCollectorRecord(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.Record("tests/test_sw.py::test_alpha", OutcomePassed, "REQ-SW-001", "REQ-SW-002")
	c.Record("tests/test_sw.py::test_beta", OutcomeFailed, "REQ-SW-001")
	c.Record("tests/test_sw.py::test_gamma", OutcomeSkipped, "REQ-SW-002")
	c.Record("tests/test_sw.py::test_unmarked", OutcomePassed)

	report := c.Report()
	if len(report) != 2 {
		t.Fatalf("report = %v", report)
	}
	one := report["REQ-SW-001"]
	if one.Passed != 1 || one.Failed != 1 || one.Skipped != 0 || one.Total() != 2 {
		t.Errorf("REQ-SW-001 = %+v", one)
	}
	two := report["REQ-SW-002"]
	if two.Passed != 1 || two.Skipped != 1 || len(two.Tests) != 2 {
		t.Errorf("REQ-SW-002 = %+v", two)
	}
}

func TestCollectorRecordMapping(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.RecordMapping(
		map[string]Outcome{
			"t1": OutcomePassed,
			"t2": OutcomeFailed,
		},
		map[string][]string{
			"t1": {"REQ-SW-001"},
			"t2": {"REQ-SW-002"},
		},
	)
	report := c.Report()
	if report["REQ-SW-001"].Passed != 1 || report["REQ-SW-002"].Failed != 1 {
		t.Errorf("report = %v", report)
	}
}

// =============================================================================
// PROPOSE / APPLY TESTS
// =============================================================================

func TestProposeAndApplyRegressionScenario(t *testing.T) {
	t.Parallel()

	// E3 scenario: MISSING -> COMPLETE on pass, then COMPLETE -> PARTIAL
	// on regression.
	db := rtm.NewDatabase([]*rtm.Requirement{newReq("REQ-SW-001", rtm.StatusMissing)})

	c := NewCollector()
	c.Record("t1", OutcomePassed, "REQ-SW-001")
	transitions := c.Propose(db)
	if len(transitions) != 1 {
		t.Fatalf("transitions = %v", transitions)
	}
	if transitions[0].From != rtm.StatusMissing || transitions[0].To != rtm.StatusComplete {
		t.Errorf("transition = %+v", transitions[0])
	}
	if n := Apply(db, transitions); n != 1 {
		t.Errorf("applied = %d", n)
	}
	req, _ := db.Get("REQ-SW-001")
	if req.Status != rtm.StatusComplete {
		t.Fatalf("status = %s", req.Status)
	}

	regression := NewCollector()
	regression.Record("t1", OutcomeFailed, "REQ-SW-001")
	transitions = regression.Propose(db)
	if len(transitions) != 1 || transitions[0].To != rtm.StatusPartial {
		t.Fatalf("transitions = %v", transitions)
	}
	Apply(db, transitions)
	req, _ = db.Get("REQ-SW-001")
	if req.Status != rtm.StatusPartial {
		t.Errorf("status after regression = %s", req.Status)
	}
}

func TestProposeSkipsUnknownRequirements(t *testing.T) {
	t.Parallel()

	db := rtm.NewDatabase([]*rtm.Requirement{newReq("REQ-SW-001", rtm.StatusMissing)})
	c := NewCollector()
	c.Record("t1", OutcomePassed, "REQ-SW-001", "REQ-GONE-404")

	transitions := c.Propose(db)
	if len(transitions) != 1 || transitions[0].ReqID != "REQ-SW-001" {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestProposeOmitsUnchanged(t *testing.T) {
	t.Parallel()

	db := rtm.NewDatabase([]*rtm.Requirement{newReq("REQ-SW-001", rtm.StatusComplete)})
	c := NewCollector()
	c.Record("t1", OutcomePassed, "REQ-SW-001")

	if transitions := c.Propose(db); len(transitions) != 0 {
		t.Errorf("transitions = %v", transitions)
	}
}

func TestApplySkipsVanishedRequirements(t *testing.T) {
	t.Parallel()

	db := rtm.NewDatabase([]*rtm.Requirement{newReq("REQ-SW-001", rtm.StatusMissing)})
	transitions := []Transition{
		{ReqID: "REQ-SW-001", From: rtm.StatusMissing, To: rtm.StatusComplete},
		{ReqID: "REQ-GONE-404", From: rtm.StatusMissing, To: rtm.StatusComplete},
	}
	if n := Apply(db, transitions); n != 1 {
		t.Errorf("applied = %d", n)
	}
}
