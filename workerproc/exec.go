package workerproc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/specrun/specrun/internal/slug"
	"github.com/specrun/specrun/protocol"
	"github.com/specrun/specrun/spectree"
)

// runOne executes one Test: env+ancestor beforeEach (outer-first), the
// spec body under a soft timeout, ancestor+env afterEach (inner-first),
// and sends testBegin and testEnd for it, the captured stdout/stderr
// riding in testEnd's result. A hook or body
// panic is recovered and reported as a failure rather than taking the
// whole worker down.
func (g *groupRun) runOne(t *spectree.Test, remoteID int) {
	start := time.Now()
	_ = g.w.enc.SendMethod(protocol.MethodTestBegin, protocol.TestBeginParams{TestID: remoteID, StartWallClock: start})

	testState := map[string]any{}
	title := g.tree.FullTitle(t.Spec)
	tctx := &spectree.TestContext{
		Title:           title,
		Retry:           g.group.RetryIndex,
		RepeatEachIndex: t.RepeatIndex,
		Timeout:         t.Timeout,
		State:           g.workerState,
		Data:            testState,
		OutputDir:       artifactDir(g.w.Config.OutputDir, g.tree.Spec(t.Spec).File, title, t.VariantTag),
		SnapshotDir:     filepath.Join(filepath.Dir(g.tree.Spec(t.Spec).File), g.w.Config.SnapshotDir),
		UpdateSnapshots: g.w.Config.UpdateSnaps,
	}
	if tctx.OutputDir != "" {
		_ = os.MkdirAll(tctx.OutputDir, 0o755)
	}

	result := g.runWithHooks(t, tctx, remoteID)
	result.Duration = time.Since(start)

	_ = g.w.enc.SendMethod(protocol.MethodTestEnd, protocol.TestEndParams{TestID: remoteID, Result: result})
}

func (g *groupRun) runWithHooks(t *spectree.Test, tctx *spectree.TestContext, remoteID int) protocol.ResultWire {
	if t.Skipped {
		return protocol.ResultWire{Status: spectree.StatusSkipped, Timeout: t.Timeout}
	}

	info := spectree.EnvTestInfo{Title: tctx.Title, Retry: tctx.Retry, RepeatIndex: tctx.RepeatEachIndex, Variant: g.group.Variant}
	ancestors := g.testSuiteAncestors(t)

	hookState := map[string]any{}
	mergeInto(hookState, g.workerState)

	// Captured around beforeEach/body/afterEach together, not just the
	// body: hook output shares the worker's real stdout/stderr fds with
	// the protocol pipe (main.go wires stdout to the parent connection),
	// so a beforeEach/afterEach print left uncaptured would corrupt the
	// framed stream exactly the way an uncaptured body print would.
	stdout, stderr, status, testErr := captureStdio(func() (spectree.Status, error) {
		if err := g.runBeforeEach(info, ancestors, hookState); err != nil {
			g.runAfterEachBestEffort(ancestors, hookState)
			return spectree.StatusFailed, err
		}

		tctx.State = hookState
		status, testErr := g.runBody(t, tctx)

		if err := g.runAfterEach(ancestors, hookState); err != nil && testErr == nil {
			status, testErr = spectree.StatusFailed, err
		}
		return status, testErr
	})

	// test.fail() at runtime overrides the spec's declared expectedToFail
	// for this attempt. Either way, a body expected to fail that passed
	// must be reported failed, and a body expected to fail that failed
	// must be reported passed — the raw Status/Error sent over the wire
	// have to already reflect this, not just Test.OK()'s derived view.
	if t.ExpectedToFail || tctx.FailExpected() {
		switch status {
		case spectree.StatusPassed:
			status, testErr = spectree.StatusFailed, fmt.Errorf("passed unexpectedly")
		case spectree.StatusFailed:
			status, testErr = spectree.StatusPassed, nil
		}
	}

	result := protocol.ResultWire{
		Status:       status,
		Stdout:       stdout,
		Stderr:       stderr,
		Timeout:      tctx.EffectiveTimeout(),
		Data:         tctx.Data,
		FailExpected: tctx.FailExpected(),
	}
	if testErr != nil {
		result.Error = &protocol.ErrorWire{Message: testErr.Error()}
	}
	for _, a := range tctx.Annotations {
		result.Annotations = append(result.Annotations, protocol.AnnotationWire{Type: a.Type, Description: a.Description})
	}
	return result
}

// captureStdio swaps os.Stdout/os.Stderr for pipes around fn, returning
// whatever it wrote as a one-element slice per stream (nil when nothing
// was written) alongside fn's own return values.
func captureStdio(fn func() (spectree.Status, error)) (stdout, stderr []string, status spectree.Status, err error) {
	outR, outW, _ := os.Pipe()
	errR, errW, _ := os.Pipe()
	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = outW, errW

	var capturedOut, capturedErr string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); capturedOut = drain(outR) }()
	go func() { defer wg.Done(); capturedErr = drain(errR) }()

	status, err = fn()

	os.Stdout, os.Stderr = origOut, origErr
	_ = outW.Close()
	_ = errW.Close()
	wg.Wait()

	return splitCaptured(capturedOut), splitCaptured(capturedErr), status, err
}

func (g *groupRun) runBeforeEach(info spectree.EnvTestInfo, ancestors []spectree.SuiteIndex, state map[string]any) error {
	for _, env := range g.envChain {
		sub, err := env.RunBeforeEach(info)
		if err != nil {
			return err
		}
		mergeInto(state, sub)
	}
	ctx := &spectree.HookContext{WorkerState: g.workerState, TestState: state}
	for _, si := range ancestors {
		for _, hook := range g.tree.Suite(si).Hooks[spectree.BeforeEach] {
			if err := runHookBody(hook.Body, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *groupRun) runAfterEach(ancestors []spectree.SuiteIndex, state map[string]any) error {
	ctx := &spectree.HookContext{WorkerState: g.workerState, TestState: state}
	for i := len(ancestors) - 1; i >= 0; i-- {
		for _, hook := range g.tree.Suite(ancestors[i]).Hooks[spectree.AfterEach] {
			if err := runHookBody(hook.Body, ctx); err != nil {
				return err
			}
		}
	}
	for i := len(g.envChain) - 1; i >= 0; i-- {
		if err := g.envChain[i].RunAfterEach(state); err != nil {
			return err
		}
	}
	return nil
}

// runAfterEachBestEffort runs teardown after a beforeEach failure so a
// partially-initialized env/hook chain is not leaked even though the
// test body itself never ran; errors from it are swallowed since the
// beforeEach error is already the one reported for this attempt.
func (g *groupRun) runAfterEachBestEffort(ancestors []spectree.SuiteIndex, state map[string]any) {
	_ = g.runAfterEach(ancestors, state)
}

// runBody executes the spec body under a soft timeout. Go has no
// mechanism to forcibly preempt a running goroutine, so a timed-out body
// is abandoned (its goroutine may still be writing to the captured pipes
// after this function returns) rather than killed outright — cancellation
// is observed only at the body's own suspension points, same as the
// scripting runtime this design is modeled on.
func (g *groupRun) runBody(t *spectree.Test, tctx *spectree.TestContext) (status spectree.Status, err error) {
	spec := g.tree.Spec(t.Spec)
	if spec.Body == nil {
		return spectree.StatusPassed, nil
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v\n%s", r, debug.Stack())
			}
		}()
		done <- spec.Body(tctx)
	}()

	// Poll rather than wait on a single time.After(tctx.EffectiveTimeout()):
	// the body can call ctx.setTimeout()/ctx.slow() after it has already
	// started, and a timer built from the timeout read at launch would
	// never see that change.
	started := time.Now()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	var bodyErr error
	var timedOut bool
	var timeout time.Duration
waitLoop:
	for {
		select {
		case bodyErr = <-done:
			break waitLoop
		case <-ticker.C:
			timeout = tctx.EffectiveTimeout()
			if time.Since(started) >= timeout {
				timedOut = true
				break waitLoop
			}
		}
	}

	switch {
	case timedOut:
		return spectree.StatusTimedOut, fmt.Errorf("Timeout of %s exceeded", timeout)
	case tctx.Skipped():
		return spectree.StatusSkipped, nil
	case bodyErr != nil:
		return spectree.StatusFailed, bodyErr
	default:
		return spectree.StatusPassed, nil
	}
}

// artifactDir computes the per-attempt artifact path under outputDir:
// <relative test file without its .spec suffix>/<slug(title)>/<variant>.
// Returns "" when outputDir is unset, so a run with no --output never
// touches the filesystem for this.
func artifactDir(outputDir, file, title, variantTag string) string {
	if outputDir == "" {
		return ""
	}
	base := strings.TrimSuffix(file, filepath.Ext(file))
	base = strings.TrimSuffix(base, ".spec")
	parts := []string{outputDir, base, slug.Slug(title)}
	if variantTag != "" && variantTag != "default" {
		parts = append(parts, variantTag)
	}
	return filepath.Join(parts...)
}

func drain(r io.Reader) string {
	buf, _ := io.ReadAll(r)
	return string(buf)
}

func splitCaptured(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}
