// Package spectree holds the in-memory model produced by registration: the
// tree of Suites and Specs declared by a test file, and the Tests and
// TestResults produced once that tree is expanded against a set of
// variants and repeats.
//
// Suites and Specs refer to each other (a Suite holds its child Specs, a
// Spec needs its parent Suite to compute fullTitle), which would normally
// mean an owning pointer cycle. Instead of that we use an arena: every
// Suite and Spec lives in a flat slice on the Tree, and "parent" is an
// index into that slice, never a pointer. This keeps the structure a plain
// value that can be copied and rebuilt in a worker process
// without fighting Go's lack of cyclic ownership.
package spectree

import (
	"strings"
	"time"
)

// SuiteIndex identifies a Suite within its owning Tree.
type SuiteIndex int

// NoSuite is the sentinel Parent value meaning "no parent suite".
const NoSuite SuiteIndex = -1

// SpecIndex identifies a Spec within its owning Tree.
type SpecIndex int

// Location is a source position captured via an error-stack probe at
// registration time.
type Location struct {
	File   string
	Line   int
	Column int
}

// Hook is one registered beforeAll/afterAll/beforeEach/afterEach body.
type Hook struct {
	Body     func(ctx *HookContext) error
	Location Location
}

// HookKind enumerates the four hook buckets a Suite owns.
type HookKind int

const (
	BeforeAll HookKind = iota
	AfterAll
	BeforeEach
	AfterEach
)

// Suite is a node in the tree: a title, the file it was declared in, its
// parent (NoSuite for a file's root suite), its children, and four hook
// buckets in registration order.
type Suite struct {
	Title    string
	File     string
	Parent   SuiteIndex
	Children []SuiteIndex
	Specs    []SpecIndex
	Hooks    [4][]Hook
	Bindings []Binding
	Focused  bool
	Skipped  bool
}

// Spec is a leaf: the author's declared intent for one test, prior to
// expansion into concrete Tests.
type Spec struct {
	Title          string
	File           string
	Suite          SuiteIndex
	Location       Location
	Body           func(ctx *TestContext) error
	Focused        bool
	Skipped        bool
	ExpectedToFail bool
	Tests          []TestIndex

	// FileOrdinal is this spec's 0-based position among every Spec
	// declared in the same File, in declaration order. A dispatcher and a
	// worker's independently reloaded single-file Tree agree on this value
	// for the same spec, since both replay that file's registration the
	// same way — it is the key a dispatched Group uses to tell a worker
	// exactly which of its locally rebuilt tests to run.
	FileOrdinal int
}

// Tree is the arena holding every Suite and Spec registered while loading
// one or more test files.
type Tree struct {
	Suites []Suite
	Specs  []Spec
	Tests  []*Test
}

// NewTree returns an empty arena.
func NewTree() *Tree {
	return &Tree{}
}

// NewRootSuite creates a parentless Suite for a freshly loading file and
// returns its index.
func (t *Tree) NewRootSuite(file string) SuiteIndex {
	idx := SuiteIndex(len(t.Suites))
	t.Suites = append(t.Suites, Suite{Title: "", File: file, Parent: NoSuite})
	return idx
}

// NewChildSuite appends a child Suite under parent and returns its index.
func (t *Tree) NewChildSuite(parent SuiteIndex, title, file string) SuiteIndex {
	idx := SuiteIndex(len(t.Suites))
	t.Suites = append(t.Suites, Suite{Title: title, File: file, Parent: parent})
	t.Suites[parent].Children = append(t.Suites[parent].Children, idx)
	return idx
}

// NewSpec appends a Spec under suite and returns its index.
func (t *Tree) NewSpec(suite SuiteIndex, title, file string, loc Location, body func(ctx *TestContext) error) SpecIndex {
	ordinal := 0
	for i := range t.Specs {
		if t.Specs[i].File == file {
			ordinal++
		}
	}
	idx := SpecIndex(len(t.Specs))
	t.Specs = append(t.Specs, Spec{
		Title:       title,
		File:        file,
		Suite:       suite,
		Location:    loc,
		Body:        body,
		FileOrdinal: ordinal,
	})
	t.Suites[suite].Specs = append(t.Suites[suite].Specs, idx)
	return idx
}

// NewTest appends an expanded Test for spec and links it back, returning
// its index. Generation (the generator package) is the only caller.
func (t *Tree) NewTest(spec SpecIndex, variant Variant, variantTag string, repeatIndex int, timeout time.Duration, chain []EnvHooks) TestIndex {
	idx := TestIndex(len(t.Tests))
	test := &Test{
		ID:             int(idx),
		Spec:           spec,
		Variant:        variant,
		VariantTag:     variantTag,
		RepeatIndex:    repeatIndex,
		Timeout:        timeout,
		ExpectedToFail: t.Specs[spec].ExpectedToFail,
		Skipped:        t.IsSkipped(spec),
		EnvChain:       chain,
	}
	t.Tests = append(t.Tests, test)
	t.Specs[spec].Tests = append(t.Specs[spec].Tests, idx)
	return idx
}

// Suite/Spec accessors by index, returning a pointer into the arena (the
// arena slices never shrink, so indices stay valid for the Tree's
// lifetime).
func (t *Tree) Suite(i SuiteIndex) *Suite { return &t.Suites[i] }
func (t *Tree) Spec(i SpecIndex) *Spec    { return &t.Specs[i] }

// AncestorChain returns the suite chain from root to leaf (inclusive),
// outermost first.
func (t *Tree) AncestorChain(i SuiteIndex) []SuiteIndex {
	var chain []SuiteIndex
	for i != NoSuite {
		chain = append([]SuiteIndex{i}, chain...)
		i = t.Suites[i].Parent
	}
	return chain
}

// FullTitle is the ' '-joined chain of ancestor suite titles plus the
// spec's own title.
func (t *Tree) FullTitle(s SpecIndex) string {
	spec := &t.Specs[s]
	var parts []string
	for _, si := range t.AncestorChain(spec.Suite) {
		if title := t.Suites[si].Title; title != "" {
			parts = append(parts, title)
		}
	}
	parts = append(parts, spec.Title)
	return strings.Join(parts, " ")
}

// IsSkipped reports whether the spec or any ancestor suite is skipped.
func (t *Tree) IsSkipped(s SpecIndex) bool {
	spec := &t.Specs[s]
	if spec.Skipped {
		return true
	}
	for _, si := range t.AncestorChain(spec.Suite) {
		if t.Suites[si].Skipped {
			return true
		}
	}
	return false
}

// HasAnyFocusMark reports whether any suite or spec in the tree is
// focused, for --forbid-only.
func (t *Tree) HasAnyFocusMark() bool {
	for _, s := range t.Suites {
		if s.Focused {
			return true
		}
	}
	for _, s := range t.Specs {
		if s.Focused {
			return true
		}
	}
	return false
}

// FocusedSpecs computes the set of Specs that survive --only narrowing,
// Mocha-style: a suite with any directly focused spec, or any child
// suite whose own subtree carries a focus mark, narrows to just those —
// recursively, at every level — while a suite that is itself focused but
// has no narrower focus anywhere beneath it keeps its whole subtree.
// Call only when HasAnyFocusMark is true; with no focus marks at all
// every spec survives and this is never consulted.
func (t *Tree) FocusedSpecs() map[SpecIndex]bool {
	keep := map[SpecIndex]bool{}
	for i := range t.Suites {
		if t.Suites[i].Parent == NoSuite {
			t.selectFocused(SuiteIndex(i), false, keep)
		}
	}
	return keep
}

// selectFocused walks suite si, where active records whether an
// ancestor's .only already put us inside an included scope, recording
// into keep every spec that survives.
func (t *Tree) selectFocused(si SuiteIndex, active bool, keep map[SpecIndex]bool) {
	suite := &t.Suites[si]
	active = active || suite.Focused

	childHasFocus := false
	for _, sp := range suite.Specs {
		if t.Specs[sp].Focused {
			childHasFocus = true
			break
		}
	}
	if !childHasFocus {
		for _, c := range suite.Children {
			if t.subtreeHasFocus(c) {
				childHasFocus = true
				break
			}
		}
	}

	if active && !childHasFocus {
		t.keepAll(si, keep)
		return
	}

	for _, sp := range suite.Specs {
		if t.Specs[sp].Focused {
			keep[sp] = true
		}
	}
	for _, c := range suite.Children {
		if t.subtreeHasFocus(c) {
			t.selectFocused(c, active, keep)
		}
	}
}

// subtreeHasFocus reports whether suite si, or anything beneath it,
// carries a focus mark.
func (t *Tree) subtreeHasFocus(si SuiteIndex) bool {
	suite := &t.Suites[si]
	if suite.Focused {
		return true
	}
	for _, sp := range suite.Specs {
		if t.Specs[sp].Focused {
			return true
		}
	}
	for _, c := range suite.Children {
		if t.subtreeHasFocus(c) {
			return true
		}
	}
	return false
}

func (t *Tree) keepAll(si SuiteIndex, keep map[SpecIndex]bool) {
	suite := &t.Suites[si]
	for _, sp := range suite.Specs {
		keep[sp] = true
	}
	for _, c := range suite.Children {
		t.keepAll(c, keep)
	}
}
