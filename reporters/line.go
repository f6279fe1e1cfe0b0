package reporters

import (
	"fmt"
	"io"

	"github.com/specrun/specrun/spectree"
)

// Line keeps a single progress line up to date in place (carriage
// return, no newline) while the run is in flight, then prints the
// failure list once at the end — the terse terminal-friendly sibling of
// List, for runs with too many tests to usefully enumerate one-by-one.
type Line struct {
	w        io.Writer
	tree     *spectree.Tree
	total    int
	done     int
	failures []failure
}

func NewLine(w io.Writer) *Line {
	return &Line{w: w}
}

func (l *Line) OnBegin(root *spectree.Tree, tests []*spectree.Test) {
	l.tree = root
	l.total = len(tests)
}

func (l *Line) OnTestBegin(test *spectree.Test)            {}
func (l *Line) OnStdout(test *spectree.Test, chunk string) {}
func (l *Line) OnStderr(test *spectree.Test, chunk string) {}
func (l *Line) OnTimeout()                                 {}

func (l *Line) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	l.done++
	if !test.OK() {
		l.failures = append(l.failures, failure{test, result})
	}
	fmt.Fprintf(l.w, "\r[%d/%d] %d failed", l.done, l.total, len(l.failures))
}

func (l *Line) OnEnd(summary Summary) {
	fmt.Fprintln(l.w)
	for i, f := range l.failures {
		fmt.Fprintf(l.w, "%d) %s\n", i+1, failureLocation(l.tree, f.test))
	}
	fmt.Fprintln(l.w, summaryTable(summary).Render())
}

var _ Reporter = (*Line)(nil)
