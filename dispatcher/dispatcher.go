package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/specrun/specrun/internal/metrics"
	"github.com/specrun/specrun/internal/rlog"
	"github.com/specrun/specrun/protocol"
	"github.com/specrun/specrun/reporters"
	"github.com/specrun/specrun/spectree"
)

// Options configures one dispatched run.
type Options struct {
	Workers       int
	MaxFailures   int // 0 disables the cap
	Retries       int
	GlobalTimeout time.Duration
	NewWorkerCmd  func(index int) *exec.Cmd
	Config        protocol.ConfigSnapshot
	// Interrupted is polled after the run ends to distinguish a
	// SIGINT-driven stop from an ordinary failing run; the CLI's signal
	// handler sets it and cancels the context passed to Run.
	Interrupted *atomic.Bool
}

// Dispatcher runs a planned list of Tests to completion against a pool
// of worker processes.
type Dispatcher struct {
	tree     *spectree.Tree
	tests    []*spectree.Test
	byID     map[int]*spectree.Test
	reporter reporters.Reporter
	log      rlog.Logger
	opts     Options

	mu          sync.Mutex
	failedCount int
	stopEarly   bool
}

// New builds a Dispatcher over tests, which must already be the filtered
// output of generator.Generate.
func New(tree *spectree.Tree, tests []*spectree.Test, reporter reporters.Reporter, opts Options, log rlog.Logger) *Dispatcher {
	byID := make(map[int]*spectree.Test, len(tests))
	for _, t := range tests {
		byID[t.ID] = t
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Dispatcher{tree: tree, tests: tests, byID: byID, reporter: reporter, log: log, opts: opts}
}

// Run dispatches every test to completion (subject to --max-failures and
// the global timeout) and returns the run's Summary.
func (d *Dispatcher) Run(ctx context.Context) (reporters.Summary, error) {
	start := time.Now()
	d.reporter.OnBegin(d.tree, d.tests)

	if len(d.tests) == 0 {
		summary := reporters.Summary{Result: reporters.ResultNoTests, Duration: time.Since(start)}
		d.reporter.OnEnd(summary)
		return summary, nil
	}

	runCtx := ctx
	hitGlobalTimeout := false
	if d.opts.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.opts.GlobalTimeout)
		defer cancel()
	}

	groups := BuildGroups(d.tree, d.tests)

	pending := &atomic.Int64{}
	pending.Store(int64(len(groups)))
	work := make(chan protocol.Group, len(groups)*2+64)
	for _, g := range groups {
		work <- g
	}
	var closeOnce sync.Once
	closeIfDrained := func() {
		if pending.Load() == 0 {
			closeOnce.Do(func() { close(work) })
		}
	}

	workers := make([]*childWorker, d.opts.Workers)
	var spawnMu sync.Mutex
	for i := range workers {
		w, err := spawnWorker(i, d.opts.NewWorkerCmd, d.opts.Config, d.log)
		if err != nil {
			return reporters.Summary{}, fmt.Errorf("starting worker %d: %w", i, err)
		}
		workers[i] = w
	}

	// The worker-pool slots are supervised with an errgroup rather than a
	// bare sync.WaitGroup: every slot's goroutine is handed the same
	// derived context, and the group gives a single Wait() to block on
	// regardless of how many slots the pool has.
	var busy atomic.Int32
	group, groupCtx := errgroup.WithContext(runCtx)
	for i := range workers {
		idx := i
		group.Go(func() error {
			d.runWorkerLoop(groupCtx, workers, idx, &spawnMu, work, pending, closeIfDrained, &busy)
			return nil
		})
	}

	doneWaiting := make(chan struct{})
	go func() { _ = group.Wait(); close(doneWaiting) }()

	select {
	case <-doneWaiting:
	case <-runCtx.Done():
		hitGlobalTimeout = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		closeOnce.Do(func() { close(work) })
		<-doneWaiting
	}

	spawnMu.Lock()
	for _, w := range workers {
		if w != nil {
			w.stop()
			w.kill()
		}
	}
	spawnMu.Unlock()

	if hitGlobalTimeout {
		d.log.Warn("global timeout exceeded, stopping run", "timeout", d.opts.GlobalTimeout)
		d.reporter.OnTimeout()
	}

	summary := d.computeSummary(start)
	if d.opts.Interrupted != nil && d.opts.Interrupted.Load() {
		summary.Result = reporters.ResultSigint
	}
	d.reporter.OnEnd(summary)
	return summary, nil
}

// runWorkerLoop is the body of one worker-pool slot's goroutine: pull a
// Group, run it against workers[idx] (replacing that slot on crash), and
// keep going until work is drained or the run context ends.
func (d *Dispatcher) runWorkerLoop(
	ctx context.Context,
	workers []*childWorker,
	idx int,
	spawnMu *sync.Mutex,
	work chan protocol.Group,
	pending *atomic.Int64,
	closeIfDrained func(),
	busy *atomic.Int32,
) {
	for {
		select {
		case g, ok := <-work:
			if !ok {
				return
			}
			if d.shouldStop() {
				pending.Add(-1)
				d.markNotRun(g)
				closeIfDrained()
				continue
			}

			busy.Add(1)
			metrics.SetWorkersBusy(int(busy.Load()))
			requeued := d.runGroupOnWorker(ctx, workers, idx, spawnMu, g)
			busy.Add(-1)
			metrics.SetWorkersBusy(int(busy.Load()))

			if len(requeued) > 0 {
				pending.Add(int64(len(requeued)))
				for _, rg := range requeued {
					work <- rg
				}
			}
			pending.Add(-1)
			closeIfDrained()
		case <-ctx.Done():
			return
		}
	}
}

// runGroupOnWorker runs one Group against the worker in slot idx,
// replacing that worker (and splitting the group's unrun tail into a
// fresh Group) if the process crashes mid-run. It returns any Groups
// that must be re-enqueued: the crashed tail, or single-test retries for
// tests that failed and have retry budget left.
func (d *Dispatcher) runGroupOnWorker(ctx context.Context, workers []*childWorker, idx int, spawnMu *sync.Mutex, g protocol.Group) []protocol.Group {
	spawnMu.Lock()
	w := workers[idx]
	spawnMu.Unlock()

	outcome := d.runGroup(w, g)

	if outcome.crashed {
		metrics.RecordWorkerCrash()
		d.log.Error("worker crashed, replacing", "worker", idx, "group", g.ID, "stderr", w.stderrTail())
		w.kill()

		spawnMu.Lock()
		replacement, err := spawnWorker(idx, d.opts.NewWorkerCmd, d.opts.Config, d.log)
		if err != nil {
			d.log.Error("failed to respawn worker, pool shrinks", "worker", idx, "error", err)
			workers[idx] = nil
		} else {
			workers[idx] = replacement
		}
		spawnMu.Unlock()

		if tail, ok := splitRemaining(g, outcome.completed); ok {
			return []protocol.Group{tail}
		}
		return nil
	}

	return d.scheduleRetries(g, outcome.failedTestIDs)
}

// scheduleRetries builds single-test Groups for every test that failed
// in g and still has retry budget, tracking the attempt count so a flaky
// pass after N retries does not retry forever.
func (d *Dispatcher) scheduleRetries(g protocol.Group, failedTestIDs []int) []protocol.Group {
	if d.opts.Retries <= 0 {
		d.countFinalFailures(failedTestIDs)
		return nil
	}
	var out []protocol.Group
	var finalFailures []int
	for _, id := range failedTestIDs {
		t := d.byID[id]
		if t == nil {
			continue
		}
		attempt := len(t.Results) - 1 // 0-based index of the attempt that just failed
		if attempt < d.opts.Retries {
			metrics.RecordRetry()
			out = append(out, singleTestGroup(g, id, attempt+1))
		} else {
			finalFailures = append(finalFailures, id)
		}
	}
	d.countFinalFailures(finalFailures)
	return out
}

func (d *Dispatcher) countFinalFailures(ids []int) {
	if len(ids) == 0 {
		return
	}
	d.mu.Lock()
	d.failedCount += len(ids)
	if d.opts.MaxFailures > 0 && d.failedCount >= d.opts.MaxFailures {
		d.stopEarly = true
	}
	d.mu.Unlock()
}

func (d *Dispatcher) shouldStop() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopEarly
}

// markNotRun marks every test in a Group that the run abandoned because
// --max-failures tripped before reaching it; it is reported as skipped
// rather than failed, since it never executed.
func (d *Dispatcher) markNotRun(g protocol.Group) {
	for _, id := range g.TestIDs {
		t := d.byID[id]
		if t == nil || len(t.Results) > 0 {
			continue
		}
		t.Results = append(t.Results, &spectree.TestResult{Status: spectree.StatusSkipped})
	}
}

type groupOutcome struct {
	crashed       bool
	completed     int // index into g.TestIDs just past the last finalized slot (a testEnd or a synthesized crash result)
	failedTestIDs []int
}

// runGroup sends one Group to w and drives the protocol loop until done,
// fatalError, or the connection breaks.
func (d *Dispatcher) runGroup(w *childWorker, g protocol.Group) groupOutcome {
	if w == nil {
		return groupOutcome{crashed: true}
	}
	if err := w.enc.SendMethod(protocol.MethodRun, protocol.RunParams{Group: g}); err != nil {
		return groupOutcome{crashed: true}
	}

	var outcome groupOutcome
	var inFlight *spectree.Test

	// crashWith synthesizes a result for whichever test is in flight and
	// advances outcome.completed past its slot, so the caller's
	// splitRemaining(g, outcome.completed) starts the tail after it
	// instead of re-enqueuing and re-running the same attempt.
	crashWith := func() groupOutcome {
		d.finishInFlightAsCrashed(inFlight)
		if inFlight != nil {
			outcome.completed = indexOf(g.TestIDs, inFlight.ID) + 1
		}
		outcome.crashed = true
		return outcome
	}

	for {
		msg, err := w.dec.Recv()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				d.log.Error("reading from worker", "error", err)
			}
			return crashWith()
		}

		switch msg.Method {
		case protocol.MethodTestBegin:
			var p protocol.TestBeginParams
			_ = protocol.Unmarshal(msg, &p)
			if t := d.byID[p.TestID]; t != nil {
				inFlight = t
				d.reporter.OnTestBegin(t)
			}
		case protocol.MethodStdout, protocol.MethodStderr:
			var p protocol.StdioParams
			_ = protocol.Unmarshal(msg, &p)
			target := inFlight
			if p.TestID != nil {
				if t := d.byID[*p.TestID]; t != nil {
					target = t
				}
			}
			if target != nil {
				if msg.Method == protocol.MethodStdout {
					d.reporter.OnStdout(target, p.Text)
				} else {
					d.reporter.OnStderr(target, p.Text)
				}
			}
		case protocol.MethodTestEnd:
			var p protocol.TestEndParams
			if err := protocol.Unmarshal(msg, &p); err != nil {
				continue
			}
			t := d.byID[p.TestID]
			if t == nil {
				continue
			}
			result := toTestResult(p.Result)
			if p.Result.FailExpected {
				t.ExpectedToFail = true
			}
			t.Results = append(t.Results, result)
			metrics.RecordTestResult(string(result.Status), result.Duration)
			d.reporter.OnTestEnd(t, result)
			if !t.OK() {
				outcome.failedTestIDs = append(outcome.failedTestIDs, t.ID)
			}
			outcome.completed = indexOf(g.TestIDs, p.TestID) + 1
			if inFlight != nil && inFlight.ID == t.ID {
				inFlight = nil
			}
		case protocol.MethodDone:
			return outcome
		case protocol.MethodFatalError:
			var p protocol.FatalErrorParams
			_ = protocol.Unmarshal(msg, &p)
			d.log.Error("worker reported fatal error", "group", g.ID, "error", p.Error.Message)
			return crashWith()
		}
	}
}

// finishInFlightAsCrashed synthesizes a failed result for whichever test
// had an open testBegin when the worker died, so it is never left
// without a result.
func (d *Dispatcher) finishInFlightAsCrashed(t *spectree.Test) {
	if t == nil {
		return
	}
	result := &spectree.TestResult{
		Status: spectree.StatusFailed,
		Error:  &spectree.TestError{Message: "worker process crashed while this test was running"},
	}
	t.Results = append(t.Results, result)
	metrics.RecordTestResult(string(result.Status), 0)
	d.reporter.OnTestEnd(t, result)
}

func toTestResult(w protocol.ResultWire) *spectree.TestResult {
	r := &spectree.TestResult{
		Duration: w.Duration,
		Status:   w.Status,
		Data:     w.Data,
		Stdout:   w.Stdout,
		Stderr:   w.Stderr,
	}
	if w.Error != nil {
		r.Error = &spectree.TestError{Message: w.Error.Message, Stack: w.Error.Stack}
	}
	return r
}

func indexOf(ids []int, id int) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// computeSummary tallies the final status of every Test after the run
// (or early stop) settles.
func (d *Dispatcher) computeSummary(start time.Time) reporters.Summary {
	summary := reporters.Summary{Tests: d.tests, Duration: time.Since(start)}
	for _, t := range d.tests {
		last := t.LastResult()
		switch {
		case last == nil:
			summary.Failed++
		case last.Status == spectree.StatusSkipped:
			summary.Skipped++
		case t.IsFlaky():
			summary.Flaky++
		case t.OK():
			summary.Passed++
		default:
			summary.Failed++
		}
	}
	switch {
	case summary.Failed > 0:
		summary.Result = reporters.ResultFailed
	default:
		summary.Result = reporters.ResultPassed
	}
	return summary
}
