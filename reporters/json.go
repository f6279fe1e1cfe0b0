package reporters

import (
	"encoding/json"
	"io"

	"github.com/specrun/specrun/spectree"
)

// JSON accumulates the whole run and writes one structured document on
// OnEnd — the machine-readable sibling of the human reporters, with no
// streaming step since consumers expect one parseable blob.
type JSON struct {
	w    io.Writer
	tree *spectree.Tree
}

func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w}
}

func (j *JSON) OnBegin(root *spectree.Tree, tests []*spectree.Test) { j.tree = root }
func (j *JSON) OnTestBegin(test *spectree.Test)                     {}
func (j *JSON) OnStdout(test *spectree.Test, chunk string)          {}
func (j *JSON) OnStderr(test *spectree.Test, chunk string)          {}
func (j *JSON) OnTestEnd(test *spectree.Test, result *spectree.TestResult) {}
func (j *JSON) OnTimeout()                                                 {}

type jsonReport struct {
	Result  Result         `json:"result"`
	Passed  int            `json:"passed"`
	Failed  int            `json:"failed"`
	Skipped int            `json:"skipped"`
	Flaky   int            `json:"flaky"`
	Tests   []jsonTestEntry `json:"tests"`
}

type jsonTestEntry struct {
	ID         int               `json:"id"`
	FullTitle  string            `json:"fullTitle"`
	File       string            `json:"file"`
	Variant    spectree.Variant  `json:"variant"`
	OK         bool              `json:"ok"`
	Results    []*spectree.TestResult `json:"results"`
}

func (j *JSON) OnEnd(summary Summary) {
	report := jsonReport{
		Result:  summary.Result,
		Passed:  summary.Passed,
		Failed:  summary.Failed,
		Skipped: summary.Skipped,
		Flaky:   summary.Flaky,
	}
	for _, t := range summary.Tests {
		entry := jsonTestEntry{
			ID:      t.ID,
			Variant: t.Variant,
			OK:      t.OK(),
			Results: t.Results,
		}
		if j.tree != nil {
			entry.FullTitle = j.tree.FullTitle(t.Spec)
			entry.File = j.tree.Spec(t.Spec).File
		}
		report.Tests = append(report.Tests, entry)
	}
	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

var _ Reporter = (*JSON)(nil)
