package health

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rtmx-ai/rtmx/internal/rtm"
)

func writeDatabase(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docs", "rtm_database.csv")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const healthyCSV = "req_id,category,requirement_text,status,test_module,test_function\n" +
	"REQ-SW-001,SW,Does the thing,COMPLETE,tests/test_sw.py,test_thing\n" +
	"REQ-SW-002,SW,Does another thing,PARTIAL,tests/test_sw.py,test_other\n"

// =============================================================================
// AGGREGATION TESTS
// =============================================================================

func TestRunChecksAggregation(t *testing.T) {
	t.Parallel()

	pass := func(*Context) CheckResult { return CheckResult{Result: ResultPass, Message: "ok"} }
	warn := func(*Context) CheckResult { return CheckResult{Result: ResultWarn, Message: "meh"} }
	fail := func(*Context) CheckResult { return CheckResult{Result: ResultFail, Message: "bad"} }

	cases := []struct {
		name   string
		checks []Check
		opts   Options
		want   Status
	}{
		{"all pass", []Check{{Name: "a", Blocking: true, Run: pass}}, Options{}, StatusHealthy},
		{"warn degrades", []Check{{Name: "a", Run: warn}}, Options{}, StatusDegraded},
		{"blocking fail", []Check{{Name: "a", Blocking: true, Run: fail}}, Options{}, StatusUnhealthy},
		{"non-blocking fail does not block", []Check{{Name: "a", Run: fail}}, Options{}, StatusHealthy},
		{"strict elevates warn", []Check{{Name: "a", Run: warn}}, Options{Strict: true}, StatusUnhealthy},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			report := RunChecks(&Context{}, tc.checks, tc.opts)
			if report.Status != tc.want {
				t.Errorf("status = %s, want %s", report.Status, tc.want)
			}
		})
	}
}

func TestRunChecksCapturesPanics(t *testing.T) {
	t.Parallel()

	checks := []Check{
		{Name: "boom", Blocking: false, Run: func(*Context) CheckResult { panic("kaput") }},
		{Name: "after", Blocking: true, Run: func(*Context) CheckResult {
			return CheckResult{Result: ResultPass, Message: "still ran"}
		}},
	}
	report := RunChecks(&Context{}, checks, Options{})

	if len(report.Checks) != 2 {
		t.Fatalf("checks = %v", report.Checks)
	}
	boom := report.Checks[0]
	if boom.Result != ResultFail || !boom.Blocking {
		t.Errorf("panic should become a blocking failure: %+v", boom)
	}
	if report.Checks[1].Message != "still ran" {
		t.Error("suite aborted after panic")
	}
	if report.Status != StatusUnhealthy {
		t.Errorf("status = %s", report.Status)
	}
}

func TestRunChecksOrderPreserved(t *testing.T) {
	t.Parallel()

	report := Run(writeDatabase(t, healthyCSV), Options{})
	wantOrder := []string{"rtm_exists", "rtm_loads", "schema_valid", "reciprocity", "cycles", "dangling_refs", "test_coverage", "completion"}
	if len(report.Checks) != len(wantOrder) {
		t.Fatalf("checks = %d", len(report.Checks))
	}
	for i, name := range wantOrder {
		if report.Checks[i].Name != name {
			t.Errorf("check %d = %s, want %s", i, report.Checks[i].Name, name)
		}
	}
}

// =============================================================================
// BUILT-IN SUITE TESTS
// =============================================================================

func TestRunHealthyDatabase(t *testing.T) {
	t.Parallel()

	report := Run(writeDatabase(t, healthyCSV), Options{})
	if report.Status != StatusHealthy {
		t.Errorf("status = %s, report = %+v", report.Status, report.Checks)
	}
}

func TestRunMissingDatabase(t *testing.T) {
	t.Parallel()

	report := Run(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	if report.Status != StatusUnhealthy {
		t.Errorf("status = %s", report.Status)
	}
	if report.Checks[0].Result != ResultFail {
		t.Errorf("rtm_exists = %+v", report.Checks[0])
	}
	// Downstream checks skip rather than fail.
	for _, check := range report.Checks[2:] {
		if check.Result != ResultSkip {
			t.Errorf("%s should skip with no database, got %s", check.Name, check.Result)
		}
	}
}

func TestRunDetectsCyclesAsDegraded(t *testing.T) {
	t.Parallel()

	csv := "req_id,category,requirement_text,status,dependencies,blocks,test_module,test_function\n" +
		"REQ-C-1,SW,First,MISSING,REQ-C-2,REQ-C-2,tests/t.py,test_a\n" +
		"REQ-C-2,SW,Second,MISSING,REQ-C-1,REQ-C-1,tests/t.py,test_b\n"
	report := Run(writeDatabase(t, csv), Options{})

	if report.Status != StatusDegraded {
		t.Fatalf("status = %s, report = %+v", report.Status, report.Checks)
	}
	report = Run(writeDatabase(t, csv), Options{Strict: true})
	if report.Status != StatusUnhealthy {
		t.Errorf("strict status = %s", report.Status)
	}
}

func TestRunDanglingRefsUnhealthy(t *testing.T) {
	t.Parallel()

	csv := "req_id,category,requirement_text,status,dependencies,test_module,test_function\n" +
		"REQ-D-1,SW,First,MISSING,REQ-GONE-404,tests/t.py,test_a\n"
	report := Run(writeDatabase(t, csv), Options{})
	if report.Status != StatusUnhealthy {
		t.Errorf("status = %s, report = %+v", report.Status, report.Checks)
	}
}

func TestCheckCompletionDetails(t *testing.T) {
	t.Parallel()

	db := rtm.NewDatabase([]*rtm.Requirement{
		func() *rtm.Requirement {
			r := rtm.NewRequirement("REQ-A-1")
			r.Category = "A"
			r.RequirementText = "t"
			r.Status = rtm.StatusComplete
			return r
		}(),
	})
	result := checkCompletion(&Context{DB: db})
	if result.Result != ResultPass || result.Details["complete"] != "1" {
		t.Errorf("result = %+v", result)
	}
}
