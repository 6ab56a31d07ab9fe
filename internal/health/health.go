// Package health runs an ordered suite of named checks over a project's
// requirement database and composes the outcomes into one categorized
// report. A panicking check becomes a blocking failure; the suite always
// runs to completion and the aggregate is deterministic for fixed input.
package health

import (
	"fmt"
)

// Result classifies one check outcome.
type Result string

const (
	ResultPass Result = "pass"
	ResultWarn Result = "warn"
	ResultFail Result = "fail"
	ResultSkip Result = "skip"
)

// Status is the aggregate health of the suite.
type Status string

const (
	StatusHealthy   Status = "HEALTHY"
	StatusDegraded  Status = "DEGRADED"
	StatusUnhealthy Status = "UNHEALTHY"
)

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name     string            `json:"name"`
	Result   Result            `json:"result"`
	Message  string            `json:"message"`
	Blocking bool              `json:"blocking"`
	Details  map[string]string `json:"details,omitempty"`
}

// Check is one entry in the suite. A failure of a blocking check makes the
// aggregate UNHEALTHY; a warn result from any check degrades it. A failure
// of a non-blocking check leaves the aggregate unchanged.
type Check struct {
	Name     string
	Blocking bool
	Run      func(ctx *Context) CheckResult
}

// Report is the composed outcome of a suite run.
type Report struct {
	Status Status        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Options tune aggregation.
type Options struct {
	// Strict elevates DEGRADED to UNHEALTHY.
	Strict bool
}

// RunChecks executes the checks in order and aggregates. Panics inside a
// check are captured as blocking failures; they never abort the suite.
func RunChecks(ctx *Context, checks []Check, opts Options) Report {
	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, runOne(ctx, check))
	}

	status := StatusHealthy
	for _, r := range results {
		if r.Result == ResultFail && r.Blocking {
			status = StatusUnhealthy
			break
		}
	}
	if status == StatusHealthy {
		for _, r := range results {
			if r.Result == ResultWarn {
				status = StatusDegraded
				break
			}
		}
	}
	if opts.Strict && status == StatusDegraded {
		status = StatusUnhealthy
	}

	return Report{Status: status, Checks: results}
}

func runOne(ctx *Context, check Check) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			result = CheckResult{
				Name:     check.Name,
				Result:   ResultFail,
				Message:  fmt.Sprintf("check panicked: %v", r),
				Blocking: true,
			}
		}
	}()
	result = check.Run(ctx)
	result.Name = check.Name
	result.Blocking = check.Blocking
	return result
}
