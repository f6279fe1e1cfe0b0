package spectree

import (
	"sync"
	"time"
)

// HookContext is handed to every hook body. WorkerState is the
// worker-wide state bag accumulated by env and user beforeAll hooks; a
// hook body adds to a bag by writing into the map directly.
type HookContext struct {
	WorkerState map[string]any
	TestState   map[string]any // only set for beforeEach/afterEach
}

// TestContext is the `testInfo` object exposed to a running test body: the
// same mutable record a test can use to skip itself, mark itself as
// expected to fail, slow itself down, or extend its own timeout.
type TestContext struct {
	Title           string
	Retry           int
	RepeatEachIndex int
	Timeout         time.Duration
	State           map[string]any
	Data            map[string]any
	Annotations     []Annotation

	// OutputDir is this attempt's artifact directory under the run's
	// --output root, already created by the time the test body runs.
	OutputDir string
	// SnapshotDir is where this test's snapshot files live, and
	// UpdateSnapshots mirrors --update-snapshots for snapshot-style
	// assertion helpers a test body may call.
	SnapshotDir     string
	UpdateSnapshots bool

	// mu guards the fields below: the runner's soft-timeout loop polls
	// EffectiveTimeout/Skipped/FailExpected from one goroutine while the
	// running body calls Skip/Fail/Slow/SetTimeout from another.
	mu             sync.Mutex
	skipped        bool
	failExpected   bool
	slowed         bool
	timeoutChanged *time.Duration
}

// Skip marks the running test skipped. If cond is provided and false, the
// call is a no-op (mirrors the author-facing `skip(cond?)` signature).
func (c *TestContext) Skip(cond ...bool) {
	if len(cond) > 0 && !cond[0] {
		return
	}
	c.mu.Lock()
	c.skipped = true
	c.mu.Unlock()
}

// Fail marks the running test as expected to fail.
func (c *TestContext) Fail(cond ...bool) {
	if len(cond) > 0 && !cond[0] {
		return
	}
	c.mu.Lock()
	c.failExpected = true
	c.mu.Unlock()
}

// Slow sets the effective timeout to three times the base Timeout,
// matching test.slow(); calls after the first have no effect.
func (c *TestContext) Slow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slowed {
		return
	}
	c.slowed = true
	d := c.Timeout * 3
	c.timeoutChanged = &d
}

// SetTimeout replaces the effective timeout outright.
func (c *TestContext) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeoutChanged = &d
	c.mu.Unlock()
}

// Annotate appends an annotation visible to reporters.
func (c *TestContext) Annotate(kind, description string) {
	c.Annotations = append(c.Annotations, Annotation{Type: kind, Description: description})
}

// Skipped reports whether Skip was called during this attempt.
func (c *TestContext) Skipped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.skipped
}

// FailExpected reports whether Fail was called during this attempt.
func (c *TestContext) FailExpected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failExpected
}

// EffectiveTimeout returns the timeout after any Slow/SetTimeout call, or
// the original timeout if neither was called. Safe to call repeatedly
// while the body is still running: a runner polling this mid-test picks
// up a setTimeout/slow call made after the body started.
func (c *TestContext) EffectiveTimeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeoutChanged != nil {
		return *c.timeoutChanged
	}
	return c.Timeout
}
