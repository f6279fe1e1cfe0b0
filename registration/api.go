package registration

import (
	"github.com/specrun/specrun/internal/errs"
	"github.com/specrun/specrun/spectree"
)

// SuiteOptions modifies a Describe call: Only marks it (and therefore its
// whole subtree) focused, Skip marks it skipped.
type SuiteOptions struct {
	Only bool
	Skip bool
}

// SpecOptions modifies an It/Test call.
type SpecOptions struct {
	Only           bool
	Skip           bool
	ExpectedToFail bool
}

// Describe pushes a new Suite under the current top of stack, runs body
// (which registers children via further Describe/It/hook calls against
// the same Loader), then pops. It fails with RegistrationPhaseViolation
// if no file is currently loading.
func (l *Loader) Describe(opts SuiteOptions, title string, body func()) (spectree.SuiteIndex, error) {
	parent, err := l.top()
	if err != nil {
		return 0, err
	}

	if err := l.checkSameFile(callerLocation(3).File); err != nil {
		return 0, err
	}

	idx := l.tree.NewChildSuite(parent, title, l.file)
	suite := l.tree.Suite(idx)
	suite.Focused = opts.Only
	suite.Skipped = opts.Skip

	l.stack = append(l.stack, idx)
	body()
	l.stack = l.stack[:len(l.stack)-1]

	return idx, nil
}

// It appends a Spec (a `test(...)` registration) to the current top
// Suite, capturing its source location via a runtime.Caller probe.
func (l *Loader) It(opts SpecOptions, title string, body func(ctx *spectree.TestContext) error) (spectree.SpecIndex, error) {
	top, err := l.top()
	if err != nil {
		return 0, err
	}

	loc := callerLocation(3)
	if err := l.checkSameFile(loc.File); err != nil {
		return 0, err
	}
	idx := l.tree.NewSpec(top, title, l.file, loc, body)
	spec := l.tree.Spec(idx)
	spec.Focused = opts.Only
	spec.Skipped = opts.Skip
	spec.ExpectedToFail = opts.ExpectedToFail

	return idx, nil
}

// AddHook appends body to the current top Suite's hook bucket for kind.
// beforeAll/afterAll/beforeEach/afterEach all route through this.
func (l *Loader) AddHook(kind spectree.HookKind, body func(ctx *spectree.HookContext) error) error {
	top, err := l.top()
	if err != nil {
		return err
	}
	loc := callerLocation(3)
	if err := l.checkSameFile(loc.File); err != nil {
		return err
	}
	suite := l.tree.Suite(top)
	suite.Hooks[kind] = append(suite.Hooks[kind], spectree.Hook{Body: body, Location: loc})
	return nil
}

// AddBinding appends a runWith(env, options) binding to the current top
// Suite — every Spec in that suite's subtree expands once per such
// binding, folded with any inherited from ancestor suites.
func (l *Loader) AddBinding(b spectree.Binding) error {
	top, err := l.top()
	if err != nil {
		return err
	}
	b.Location = callerLocation(4)
	suite := l.tree.Suite(top)
	suite.Bindings = append(suite.Bindings, b)
	return nil
}

// Convenience wrappers matching the design's author-facing names.
func (l *Loader) BeforeAll(body func(ctx *spectree.HookContext) error) error {
	return l.AddHook(spectree.BeforeAll, body)
}

func (l *Loader) AfterAll(body func(ctx *spectree.HookContext) error) error {
	return l.AddHook(spectree.AfterAll, body)
}

func (l *Loader) BeforeEach(body func(ctx *spectree.HookContext) error) error {
	return l.AddHook(spectree.BeforeEach, body)
}

func (l *Loader) AfterEach(body func(ctx *spectree.HookContext) error) error {
	return l.AddHook(spectree.AfterEach, body)
}

// ForbidOnly returns a RegistrationPhaseViolation-flavored error if any
// focus mark exists in the tree — the --forbid-only CLI behavior.
func (l *Loader) ForbidOnly() error {
	if l.tree.HasAnyFocusMark() {
		return errs.New(errs.RegistrationPhaseViolation, "focused test or suite found with --forbid-only set")
	}
	return nil
}
