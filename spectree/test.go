package spectree

import "time"

// TestIndex identifies a Test within its owning Tree.
type TestIndex int

// Variant is the arbitrary key/value dictionary a runWith binding attaches
// to every Test it produces, e.g. {"browserName": "chromium"}.
type Variant map[string]string

// Tag returns a stable, sorted string form of the variant suitable for use
// as a group key or artifact-path component.
func (v Variant) Tag() string {
	if len(v) == 0 {
		return "default"
	}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sortStrings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += ","
		}
		out += k + "=" + v[k]
	}
	return out
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// Test is one expanded instance of a Spec for a single environment variant
// and a single repeat index.
type Test struct {
	ID             int
	Spec           SpecIndex
	VariantTag     string
	Variant        Variant
	RepeatIndex    int
	Results        []*TestResult
	Timeout        time.Duration
	Annotations    []Annotation
	ExpectedToFail bool
	Skipped        bool

	// EnvChain is the outermost-first fold of every runWith env bound to
	// this Test's Spec, across its ancestor suites. A worker runs these
	// beforeEach hooks in this order before the Spec's own beforeEach
	// hooks, and their afterEach hooks in reverse order after.
	EnvChain []EnvHooks
}

// Annotation is a free-form (type, description) pair a test body can
// attach to itself via testInfo, surfaced verbatim to reporters.
type Annotation struct {
	Type        string
	Description string
}

// TestError captures a failure's message and, when available, a stack
// trace — kept as two strings rather than a Go `error` so it survives the
// parent<->worker JSON boundary intact.
type TestError struct {
	Message string
	Stack   string
}

// TestResult is one run attempt of a Test.
type TestResult struct {
	RetryIndex int
	StartTime  time.Time
	Duration   time.Duration
	Stdout     []string
	Stderr     []string
	Status     Status
	Error      *TestError
	Data       map[string]any
}

// LastResult returns the most recent attempt, or nil if the test has not
// run yet.
func (t *Test) LastResult() *TestResult {
	if len(t.Results) == 0 {
		return nil
	}
	return t.Results[len(t.Results)-1]
}

// OK implements the spec's definition of Test.ok(): true iff the last
// result is Passed or Skipped. The worker already performs the
// expectedToFail swap on the raw Status before it ever reaches here (a
// body that failed as expected is reported Passed, one that passed
// unexpectedly is reported Failed), so OK must not re-derive anything
// from ExpectedToFail — doing so would invert the swap a second time.
func (t *Test) OK() bool {
	last := t.LastResult()
	if last == nil {
		return false
	}
	switch last.Status {
	case StatusSkipped, StatusPassed:
		return true
	default: // StatusFailed, StatusTimedOut
		return false
	}
}

// IsFlaky reports whether the first attempt failed (or timed out) and a
// later attempt passed.
func (t *Test) IsFlaky() bool {
	if len(t.Results) < 2 {
		return false
	}
	first := t.Results[0]
	if first.Status != StatusFailed && first.Status != StatusTimedOut {
		return false
	}
	for _, r := range t.Results[1:] {
		if r.Status == StatusPassed {
			return true
		}
	}
	return false
}
