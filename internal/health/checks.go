package health

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rtmx-ai/rtmx/internal/codec"
	"github.com/rtmx-ai/rtmx/internal/logging"
	"github.com/rtmx-ai/rtmx/internal/rtm"
	"github.com/rtmx-ai/rtmx/internal/validation"
)

// Context carries shared state through a suite run. The rtm_loads check
// populates DB; downstream checks skip when it is absent.
type Context struct {
	DatabasePath string
	DB           *rtm.Database
}

// DefaultChecks returns the built-in RTM health suite in its fixed order.
func DefaultChecks() []Check {
	return []Check{
		{Name: "rtm_exists", Blocking: true, Run: checkExists},
		{Name: "rtm_loads", Blocking: true, Run: checkLoads},
		{Name: "schema_valid", Blocking: true, Run: checkSchemaValid},
		{Name: "reciprocity", Blocking: false, Run: checkReciprocity},
		{Name: "cycles", Blocking: false, Run: checkCycles},
		{Name: "dangling_refs", Blocking: true, Run: checkDanglingRefs},
		{Name: "test_coverage", Blocking: false, Run: checkTestCoverage},
		{Name: "completion", Blocking: false, Run: checkCompletion},
	}
}

// Run executes the default suite against a database path.
func Run(databasePath string, opts Options) Report {
	ctx := &Context{DatabasePath: databasePath}
	report := RunChecks(ctx, DefaultChecks(), opts)
	logging.Get(logging.CategoryHealth).Infow("health suite finished",
		"status", string(report.Status), "checks", len(report.Checks))
	return report
}

func skipResult(message string) CheckResult {
	return CheckResult{Result: ResultSkip, Message: message}
}

func checkExists(ctx *Context) CheckResult {
	if ctx.DatabasePath == "" {
		return CheckResult{Result: ResultFail, Message: "no database path configured"}
	}
	info, err := os.Stat(ctx.DatabasePath)
	if err != nil {
		return CheckResult{Result: ResultFail, Message: fmt.Sprintf("database not found: %s", ctx.DatabasePath)}
	}
	if info.IsDir() {
		return CheckResult{Result: ResultFail, Message: fmt.Sprintf("database path is a directory: %s", ctx.DatabasePath)}
	}
	return CheckResult{Result: ResultPass, Message: fmt.Sprintf("database present: %s", ctx.DatabasePath)}
}

func checkLoads(ctx *Context) CheckResult {
	if ctx.DB != nil {
		return CheckResult{Result: ResultPass, Message: "database already loaded"}
	}
	db, err := codec.LoadDatabase(ctx.DatabasePath)
	if err != nil {
		return CheckResult{Result: ResultFail, Message: fmt.Sprintf("load failed: %v", err)}
	}
	ctx.DB = db
	return CheckResult{
		Result:  ResultPass,
		Message: fmt.Sprintf("loaded %d requirements", db.Len()),
		Details: map[string]string{"requirements": strconv.Itoa(db.Len())},
	}
}

func checkSchemaValid(ctx *Context) CheckResult {
	if ctx.DB == nil {
		return skipResult("no database loaded")
	}
	errs := validation.ValidateSchema(ctx.DB)
	if len(errs) > 0 {
		return CheckResult{
			Result:  ResultFail,
			Message: fmt.Sprintf("%d schema errors (first: %s)", len(errs), errs[0]),
			Details: map[string]string{"errors": strconv.Itoa(len(errs))},
		}
	}
	return CheckResult{Result: ResultPass, Message: "schema valid"}
}

func checkReciprocity(ctx *Context) CheckResult {
	if ctx.DB == nil {
		return skipResult("no database loaded")
	}
	violations := validation.CheckReciprocity(ctx.DB)
	if len(violations) > 0 {
		return CheckResult{
			Result:  ResultWarn,
			Message: fmt.Sprintf("%d reciprocity violations", len(violations)),
			Details: map[string]string{"violations": strconv.Itoa(len(violations))},
		}
	}
	return CheckResult{Result: ResultPass, Message: "dependency/blocks duality holds"}
}

func checkCycles(ctx *Context) CheckResult {
	if ctx.DB == nil {
		return skipResult("no database loaded")
	}
	warnings := validation.ValidateCycles(ctx.DB)
	if len(warnings) > 0 {
		return CheckResult{
			Result:  ResultWarn,
			Message: fmt.Sprintf("%d dependency cycles (first: %s)", len(warnings), warnings[0]),
			Details: map[string]string{"cycles": strconv.Itoa(len(warnings))},
		}
	}
	return CheckResult{Result: ResultPass, Message: "no dependency cycles"}
}

func checkDanglingRefs(ctx *Context) CheckResult {
	if ctx.DB == nil {
		return skipResult("no database loaded")
	}
	dangling := 0
	for _, req := range ctx.DB.All() {
		for _, dep := range req.DependencyList() {
			if rtm.IsLocalRef(dep) && !ctx.DB.Exists(dep) {
				dangling++
			}
		}
		for _, blocked := range req.BlocksList() {
			if rtm.IsLocalRef(blocked) && !ctx.DB.Exists(blocked) {
				dangling++
			}
		}
	}
	if dangling > 0 {
		return CheckResult{
			Result:  ResultFail,
			Message: fmt.Sprintf("%d dangling references", dangling),
			Details: map[string]string{"dangling": strconv.Itoa(dangling)},
		}
	}
	return CheckResult{Result: ResultPass, Message: "all references resolve"}
}

func checkTestCoverage(ctx *Context) CheckResult {
	if ctx.DB == nil {
		return skipResult("no database loaded")
	}
	total := ctx.DB.Len()
	if total == 0 {
		return skipResult("empty database")
	}
	withTest := 0
	for _, req := range ctx.DB.All() {
		if req.HasTest() {
			withTest++
		}
	}
	pct := float64(withTest) / float64(total) * 100
	result := ResultPass
	if pct < 50 {
		result = ResultWarn
	}
	return CheckResult{
		Result:  result,
		Message: fmt.Sprintf("%d/%d requirements have linked tests (%.1f%%)", withTest, total, pct),
		Details: map[string]string{"with_test": strconv.Itoa(withTest), "total": strconv.Itoa(total)},
	}
}

func checkCompletion(ctx *Context) CheckResult {
	if ctx.DB == nil {
		return skipResult("no database loaded")
	}
	if ctx.DB.Len() == 0 {
		return skipResult("empty database")
	}
	pct := ctx.DB.CompletionPercentage()
	counts := ctx.DB.StatusCounts()
	return CheckResult{
		Result:  ResultPass,
		Message: fmt.Sprintf("%.1f%% complete", pct),
		Details: map[string]string{
			"complete": strconv.Itoa(counts[rtm.StatusComplete]),
			"partial":  strconv.Itoa(counts[rtm.StatusPartial]),
			"missing":  strconv.Itoa(counts[rtm.StatusMissing]),
		},
	}
}
