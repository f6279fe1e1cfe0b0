package reporters

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrun/specrun/internal/rlog"
	"github.com/specrun/specrun/spectree"
)

func buildTreeWithOneTest(t *testing.T) (*spectree.Tree, *spectree.Test) {
	t.Helper()
	tree := spectree.NewTree()
	root := tree.NewRootSuite("a.spec.go")
	spec := tree.NewSpec(root, "adds numbers", "a.spec.go", spectree.Location{}, nil)
	idx := tree.NewTest(spec, spectree.Variant{}, "default", 0, 30*time.Second, nil)
	return tree, tree.Tests[idx]
}

func TestDot_PassAndFail(t *testing.T) {
	var buf bytes.Buffer
	d := NewDot(&buf)
	tree, test := buildTreeWithOneTest(t)
	d.OnBegin(tree, []*spectree.Test{test})

	passResult := &spectree.TestResult{Status: spectree.StatusPassed}
	test.Results = []*spectree.TestResult{passResult}
	d.OnTestEnd(test, passResult)
	d.OnEnd(Summary{Passed: 1})

	assert.Contains(t, buf.String(), "1 passed")
}

func TestDot_FailureList_KeyedByFileAndLine(t *testing.T) {
	var buf bytes.Buffer
	d := NewDot(&buf)
	tree := spectree.NewTree()
	root := tree.NewRootSuite("one-failure.spec.ts")
	spec := tree.NewSpec(root, "breaks", "one-failure.spec.ts", spectree.Location{File: "one-failure.spec.ts", Line: 5}, nil)
	idx := tree.NewTest(spec, spectree.Variant{}, "default", 0, 30*time.Second, nil)
	test := tree.Tests[idx]

	d.OnBegin(tree, []*spectree.Test{test})
	result := &spectree.TestResult{Status: spectree.StatusFailed, Error: &spectree.TestError{Message: "boom"}}
	test.Results = []*spectree.TestResult{result}
	d.OnTestEnd(test, result)
	d.OnEnd(Summary{Failed: 1})

	assert.Contains(t, buf.String(), "1) one-failure.spec.ts:5")
}

func TestLine_FailureList_KeyedByFileAndLine(t *testing.T) {
	var buf bytes.Buffer
	l := NewLine(&buf)
	tree := spectree.NewTree()
	root := tree.NewRootSuite("one-failure.spec.ts")
	spec := tree.NewSpec(root, "breaks", "one-failure.spec.ts", spectree.Location{File: "one-failure.spec.ts", Line: 5}, nil)
	idx := tree.NewTest(spec, spectree.Variant{}, "default", 0, 30*time.Second, nil)
	test := tree.Tests[idx]

	l.OnBegin(tree, []*spectree.Test{test})
	result := &spectree.TestResult{Status: spectree.StatusFailed, Error: &spectree.TestError{Message: "boom"}}
	test.Results = []*spectree.TestResult{result}
	l.OnTestEnd(test, result)
	l.OnEnd(Summary{Failed: 1})

	assert.Contains(t, buf.String(), "1) one-failure.spec.ts:5")
}

func TestMultiplexer_IsolatesPanickingDelegate(t *testing.T) {
	var buf bytes.Buffer
	good := NewDot(&buf)
	bad := &panickyReporter{}

	mux := NewMultiplexer(rlog.Discard(), bad, good)
	tree, test := buildTreeWithOneTest(t)

	assert.NotPanics(t, func() {
		mux.OnBegin(tree, []*spectree.Test{test})
	})
}

type panickyReporter struct{}

func (p *panickyReporter) OnBegin(root *spectree.Tree, tests []*spectree.Test) { panic("boom") }
func (p *panickyReporter) OnTestBegin(test *spectree.Test)                    {}
func (p *panickyReporter) OnStdout(test *spectree.Test, chunk string)         {}
func (p *panickyReporter) OnStderr(test *spectree.Test, chunk string)         {}
func (p *panickyReporter) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {}
func (p *panickyReporter) OnTimeout()                                         {}
func (p *panickyReporter) OnEnd(summary Summary)                              {}

func TestJSON_OnEnd_EmitsParseableReport(t *testing.T) {
	var buf bytes.Buffer
	j := NewJSON(&buf)
	tree, test := buildTreeWithOneTest(t)
	j.OnBegin(tree, []*spectree.Test{test})
	test.Results = []*spectree.TestResult{{Status: spectree.StatusPassed}}

	j.OnEnd(Summary{Result: ResultPassed, Passed: 1, Tests: []*spectree.Test{test}})

	assert.Contains(t, buf.String(), `"fullTitle": "adds numbers"`)
	assert.Contains(t, buf.String(), `"result": "passed"`)
}

func TestJUnit_EscapesAndEmitsFailureCDATA(t *testing.T) {
	var buf bytes.Buffer
	j := NewJUnit(&buf)
	tree, test := buildTreeWithOneTest(t)
	test.ExpectedToFail = false
	test.Results = []*spectree.TestResult{{
		Status: spectree.StatusFailed,
		Error:  &spectree.TestError{Message: "expected <1> got <2>"},
	}}
	j.OnBegin(tree, []*spectree.Test{test})

	j.OnEnd(Summary{Tests: []*spectree.Test{test}, Failed: 1})

	out := buf.String()
	require.True(t, strings.Contains(out, "<testsuites"))
	assert.Contains(t, out, "<![CDATA[expected <1> got <2>]]>")
	assert.Contains(t, out, `<testsuite name="a.spec.go"`)
}

func TestJUnit_SkippedTestEmitsSkippedElement(t *testing.T) {
	var buf bytes.Buffer
	j := NewJUnit(&buf)
	tree, test := buildTreeWithOneTest(t)
	test.Results = []*spectree.TestResult{{Status: spectree.StatusSkipped}}
	j.OnBegin(tree, []*spectree.Test{test})

	j.OnEnd(Summary{Tests: []*spectree.Test{test}, Skipped: 1})

	assert.Contains(t, buf.String(), "<skipped/>")
}
