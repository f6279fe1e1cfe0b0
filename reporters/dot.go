package reporters

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/specrun/specrun/spectree"
)

// Dot is the most compact built-in reporter: one character per finished
// test attempt, a blank line then the failure list at the end.
type Dot struct {
	w        io.Writer
	tree     *spectree.Tree
	count    int
	failures []failure
}

type failure struct {
	test   *spectree.Test
	result *spectree.TestResult
}

func NewDot(w io.Writer) *Dot {
	return &Dot{w: w}
}

func (d *Dot) OnBegin(root *spectree.Tree, tests []*spectree.Test) { d.tree = root }
func (d *Dot) OnTestBegin(test *spectree.Test)                     {}
func (d *Dot) OnStdout(test *spectree.Test, chunk string)          {}
func (d *Dot) OnStderr(test *spectree.Test, chunk string)          {}
func (d *Dot) OnTimeout()                                          {}

func (d *Dot) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	d.count++
	if d.count%80 == 1 && d.count > 1 {
		fmt.Fprintln(d.w)
	}
	switch {
	case result.Status == spectree.StatusSkipped:
		fmt.Fprint(d.w, color.YellowString(","))
	case test.OK():
		fmt.Fprint(d.w, color.GreenString("."))
	case result.Status == spectree.StatusTimedOut:
		fmt.Fprint(d.w, color.RedString("T"))
		d.failures = append(d.failures, failure{test, result})
	default:
		fmt.Fprint(d.w, color.RedString("F"))
		d.failures = append(d.failures, failure{test, result})
	}
}

func (d *Dot) OnEnd(summary Summary) {
	fmt.Fprintln(d.w)
	for i, f := range d.failures {
		fmt.Fprintf(d.w, "\n%d) %s\n", i+1, failureLocation(d.tree, f.test))
		if f.result.Error != nil {
			fmt.Fprintln(d.w, color.RedString("   "+f.result.Error.Message))
		}
	}
	fmt.Fprintf(d.w, "\n%d passed, %d failed, %d skipped, %d flaky (%s)\n",
		summary.Passed, summary.Failed, summary.Skipped, summary.Flaky, summary.Duration)
}

var _ Reporter = (*Dot)(nil)
