// Package reporters implements the reporter multiplexer contract and the
// built-in reporter formats: dot, list, line, json, junit, and remote.
package reporters

import (
	"fmt"
	"time"

	"github.com/specrun/specrun/spectree"
)

// Reporter is a pure sink for the run's lifecycle events. Implementations
// must never panic into the caller's goroutine in normal operation —
// Multiplexer guards every call regardless, matching the design's "a bad
// reporter must never corrupt the run" rule.
type Reporter interface {
	OnBegin(root *spectree.Tree, tests []*spectree.Test)
	OnTestBegin(test *spectree.Test)
	OnStdout(test *spectree.Test, chunk string)
	OnStderr(test *spectree.Test, chunk string)
	OnTestEnd(test *spectree.Test, result *spectree.TestResult)
	OnTimeout()
	OnEnd(summary Summary)
}

// Result is the run's final disposition.
type Result string

const (
	ResultPassed     Result = "passed"
	ResultFailed     Result = "failed"
	ResultNoTests    Result = "no-tests"
	ResultForbidOnly Result = "forbid-only"
	ResultSigint     Result = "sigint"
)

// failureLocation renders a failed test's failure-list header as the
// source location it was declared at (e.g. "one-failure.spec.ts:5"),
// falling back to the test's full title when the spec has no recorded
// location, and to "test <id>" when tree is nil (a reporter that never
// saw OnBegin, or a unit test exercising it directly).
func failureLocation(tree *spectree.Tree, test *spectree.Test) string {
	if tree == nil {
		return fmt.Sprintf("test %d", test.ID)
	}
	loc := tree.Spec(test.Spec).Location
	if loc.File == "" {
		return tree.FullTitle(test.Spec)
	}
	return fmt.Sprintf("%s:%d", loc.File, loc.Line)
}

// Summary is handed to OnEnd once the run is over.
type Summary struct {
	Result   Result
	Tests    []*spectree.Test
	Passed   int
	Failed   int
	Skipped  int
	Flaky    int
	Duration time.Duration
}
