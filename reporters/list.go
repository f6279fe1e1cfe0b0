package reporters

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"

	"github.com/specrun/specrun/spectree"
	"github.com/specrun/specrun/ui"
)

// List prints one line per finished test, annotated pass/fail/skip, then
// a recap of the whole suite tree — the verbose counterpart to Dot.
type List struct {
	w     io.Writer
	tree  *spectree.Tree
	color bool
}

func NewList(w io.Writer) *List {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
	}
	return &List{w: w, color: useColor}
}

func (l *List) OnBegin(root *spectree.Tree, tests []*spectree.Test) { l.tree = root }
func (l *List) OnTestBegin(test *spectree.Test)                     {}
func (l *List) OnStdout(test *spectree.Test, chunk string)          {}
func (l *List) OnStderr(test *spectree.Test, chunk string)          {}
func (l *List) OnTimeout()                                          {}

func (l *List) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {
	title := l.tree.FullTitle(test.Spec)
	if test.VariantTag != "" && test.VariantTag != "default" {
		title = fmt.Sprintf("%s [%s]", title, test.VariantTag)
	}
	mark, text := "✓", title
	switch {
	case result.Status == spectree.StatusSkipped:
		mark = "-"
	case !test.OK():
		mark = "✗"
	}
	if l.color {
		switch mark {
		case "✓":
			mark = color.GreenString(mark)
		case "✗":
			mark = color.RedString(mark)
		default:
			mark = color.YellowString(mark)
		}
	}
	fmt.Fprintf(l.w, "  %s %s (%s)\n", mark, text, result.Duration)
}

func (l *List) OnEnd(summary Summary) {
	fmt.Fprintln(l.w)
	if l.tree != nil {
		for _, si := range rootSuites(l.tree) {
			fmt.Fprint(l.w, ui.RenderSuiteTree(l.tree, si))
		}
	}
	fmt.Fprintln(l.w)
	fmt.Fprintln(l.w, summaryTable(summary).Render())
}

// summaryTable renders the final pass/fail/skip/flaky tally as a
// fixed-width table rather than a hand-formatted Sprintf line, so the
// counts stay aligned regardless of how large they get.
func summaryTable(summary Summary) table.Writer {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"passed", "failed", "skipped", "flaky", "duration"})
	tw.AppendRow(table.Row{summary.Passed, summary.Failed, summary.Skipped, summary.Flaky, summary.Duration})
	tw.SetStyle(table.StyleLight)
	return tw
}

func rootSuites(tree *spectree.Tree) []spectree.SuiteIndex {
	var roots []spectree.SuiteIndex
	for i, s := range tree.Suites {
		if s.Parent == spectree.NoSuite {
			roots = append(roots, spectree.SuiteIndex(i))
		}
	}
	return roots
}

var _ Reporter = (*List)(nil)
