package reporters

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/specrun/specrun/internal/slug"
	"github.com/specrun/specrun/spectree"
)

// JUnit emits the <testsuites>/<testsuite>/<testcase> XML format CI
// systems consume: one <testsuite> per test file, one <testcase> per
// Test, failures embedded as CDATA, stdout/stderr as <system-out>/
// <system-err>. StripANSI controls whether ANSI escapes are stripped
// from captured output before XML escaping — off by default since most
// CI viewers already strip it, on for environments whose viewer doesn't.
type JUnit struct {
	w         io.Writer
	StripANSI bool

	tree  *spectree.Tree
	tests []*spectree.Test
}

func NewJUnit(w io.Writer) *JUnit {
	return &JUnit{w: w}
}

func (j *JUnit) OnBegin(root *spectree.Tree, tests []*spectree.Test) {
	j.tree = root
	j.tests = tests
}
func (j *JUnit) OnTestBegin(test *spectree.Test)                            {}
func (j *JUnit) OnStdout(test *spectree.Test, chunk string)                 {}
func (j *JUnit) OnStderr(test *spectree.Test, chunk string)                 {}
func (j *JUnit) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {}
func (j *JUnit) OnTimeout()                                                 {}

type suiteAcc struct {
	file     string
	tests    int
	failures int
	skipped  int
	errors   int
	duration time.Duration
	cases    []caseXML
}

type caseXML struct {
	name     string
	duration time.Duration
	status   spectree.Status
	errMsg   string
	stdout   string
	stderr   string
}

func (j *JUnit) OnEnd(summary Summary) {
	bySuite := map[string]*suiteAcc{}
	var order []string

	for _, t := range summary.Tests {
		last := t.LastResult()
		if last == nil {
			continue
		}
		file := t.Spec
		path := ""
		if j.tree != nil {
			path = j.tree.Spec(file).File
		}
		acc, ok := bySuite[path]
		if !ok {
			acc = &suiteAcc{file: path}
			bySuite[path] = acc
			order = append(order, path)
		}

		acc.tests++
		acc.duration += last.Duration

		name := slug.Slug(j.titleFor(t))
		if t.VariantTag != "" && t.VariantTag != "default" {
			name = name + "-" + slug.Slug(t.VariantTag)
		}
		c := caseXML{name: name, duration: last.Duration, status: last.Status}

		switch {
		case last.Status == spectree.StatusSkipped:
			acc.skipped++
		case !t.OK():
			acc.failures++
			if last.Error != nil {
				c.errMsg = last.Error.Message
				if last.Error.Stack != "" {
					c.errMsg += "\n" + last.Error.Stack
				}
			}
		}
		c.stdout = strings.Join(last.Stdout, "")
		c.stderr = strings.Join(last.Stderr, "")
		acc.cases = append(acc.cases, c)
	}

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<testsuites tests="%d" failures="%d" skipped="%d" errors="%d" time="%.3f">`+"\n",
		summary.Passed+summary.Failed+summary.Skipped+summary.Flaky,
		summary.Failed, summary.Skipped, 0, summary.Duration.Seconds())

	for _, path := range order {
		acc := bySuite[path]
		fmt.Fprintf(&b, `  <testsuite name="%s" tests="%d" failures="%d" skipped="%d" errors="%d" time="%.3f">`+"\n",
			xmlEscape(path), acc.tests, acc.failures, acc.skipped, acc.errors, acc.duration.Seconds())
		for _, c := range acc.cases {
			fmt.Fprintf(&b, `    <testcase name="%s" time="%.3f">`+"\n", xmlEscape(c.name), c.duration.Seconds())
			if c.status == spectree.StatusSkipped {
				b.WriteString("      <skipped/>\n")
			} else if c.errMsg != "" {
				fmt.Fprintf(&b, "      <failure><![CDATA[%s]]></failure>\n", j.clean(c.errMsg))
			}
			if c.stdout != "" {
				fmt.Fprintf(&b, "      <system-out><![CDATA[%s]]></system-out>\n", j.clean(c.stdout))
			}
			if c.stderr != "" {
				fmt.Fprintf(&b, "      <system-err><![CDATA[%s]]></system-err>\n", j.clean(c.stderr))
			}
			b.WriteString("    </testcase>\n")
		}
		b.WriteString("  </testsuite>\n")
	}
	b.WriteString("</testsuites>\n")

	io.WriteString(j.w, b.String())
}

func (j *JUnit) titleFor(t *spectree.Test) string {
	if j.tree == nil {
		return fmt.Sprintf("test-%d", t.ID)
	}
	return j.tree.FullTitle(t.Spec)
}

// clean strips ANSI (if configured) and XML-forbidden control codes
// before embedding text as CDATA. CDATA still needs escaping of "]]>"
// itself, which xmlEscape does not touch — handled separately here.
func (j *JUnit) clean(s string) string {
	if j.StripANSI {
		s = stripansi.Strip(s)
	}
	s = stripControlCodes(s)
	return strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>")
}

func stripControlCodes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\n' || r == '\r' || r >= 0x20 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func xmlEscape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return stripControlCodes(s)
}

var _ Reporter = (*JUnit)(nil)
