// Package workerproc is the runtime a specrun worker process executes:
// read init, then repeatedly load the file a run(group) names, replay its
// registration, run beforeAll/afterAll once per group and beforeEach/
// afterEach once per test, and send testBegin/testEnd back to the
// dispatcher over the framed protocol connection, each test's captured
// stdout/stderr travelling inside its testEnd.
package workerproc

import (
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"github.com/specrun/specrun/generator"
	"github.com/specrun/specrun/protocol"
	"github.com/specrun/specrun/registration"
	"github.com/specrun/specrun/spectree"
)

// Worker holds the state a single worker process accumulates across the
// groups it is asked to run: its index, the configuration snapshot sent
// at init, and the connection back to the dispatcher.
type Worker struct {
	Index  int
	Config protocol.ConfigSnapshot
	enc    *protocol.Encoder
	dec    *protocol.Decoder
}

// Run drives the worker's whole lifetime: block on init, reply ready,
// then loop on run/stop until the dispatcher closes the connection or
// sends stop. It returns nil on a clean stop, and a non-nil error only
// for conditions the caller should treat as a crash (the dispatcher
// already treats an unexpected process exit the same way, so returning
// an error here and then letting main() os.Exit non-zero is enough).
func Run(r io.Reader, w io.Writer) error {
	wk := &Worker{enc: protocol.NewEncoder(w), dec: protocol.NewDecoder(r)}

	msg, err := wk.dec.Recv()
	if err != nil {
		return fmt.Errorf("waiting for init: %w", err)
	}
	if msg.Method != protocol.MethodInit {
		return fmt.Errorf("expected init, got %s", msg.Method)
	}
	var initParams protocol.InitParams
	if err := protocol.Unmarshal(msg, &initParams); err != nil {
		return fmt.Errorf("decoding init: %w", err)
	}
	wk.Index = initParams.WorkerIndex
	wk.Config = initParams.Config

	if err := wk.enc.SendMethod(protocol.MethodReady, protocol.ReadyParams{}); err != nil {
		return err
	}

	for {
		msg, err := wk.dec.Recv()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading message: %w", err)
		}
		switch msg.Method {
		case protocol.MethodStop:
			return nil
		case protocol.MethodRun:
			var params protocol.RunParams
			if err := protocol.Unmarshal(msg, &params); err != nil {
				wk.sendFatal(fmt.Errorf("decoding run params: %w", err))
				continue
			}
			if err := wk.runGroup(params.Group); err != nil {
				wk.sendFatal(err)
				continue
			}
			if err := wk.enc.SendMethod(protocol.MethodDone, protocol.DoneParams{GroupID: params.Group.ID}); err != nil {
				return err
			}
		default:
			wk.sendFatal(fmt.Errorf("unexpected message %s", msg.Method))
		}
	}
}

func (w *Worker) sendFatal(err error) {
	_ = w.enc.SendMethod(protocol.MethodFatalError, protocol.FatalErrorParams{
		Error: protocol.ErrorWire{Message: err.Error()},
	})
}

// runGroup loads group.File fresh, rebuilds the Tests it names via
// generator.ResolveGroup, runs the group's beforeAll once, each test in
// order, then afterAll once. A beforeAll failure fails every test in the
// group without attempting any of them — the same "hook throws, siblings
// never run" rule a failed describe-level hook applies in the teacher's
// own suite/gate model, generalized here to the env + ancestor-suite
// hook chain.
func (w *Worker) runGroup(group protocol.Group) error {
	loader := registration.NewLoader()
	for _, f := range w.Config.FixtureFiles {
		if err := registration.Load(loader, f); err != nil {
			return err
		}
	}
	if err := registration.Load(loader, group.File); err != nil {
		return err
	}
	tree := loader.Tree()

	tests, err := generator.ResolveGroup(tree, group.SpecOrdinals, group.Variant.Tag(), group.RepeatIndex, w.Config.Timeout)
	if err != nil {
		return err
	}
	if len(tests) != len(group.TestIDs) {
		return fmt.Errorf("group %s: resolved %d tests locally, dispatcher expected %d", group.ID, len(tests), len(group.TestIDs))
	}

	g := newGroupRun(w, tree, tests, group)
	return g.execute()
}

// groupRun is the mutable state of one group's execution: the worker it
// belongs to, the freshly loaded tree, the local<->dispatcher test ID
// pairing (positional, since both sides replay the same deterministic
// expansion), and the worker-state bag threaded through beforeAll/
// afterAll.
type groupRun struct {
	w           *Worker
	tree        *spectree.Tree
	tests       []*spectree.Test
	remoteIDs   []int
	group       protocol.Group
	workerState map[string]any
	suites      []spectree.SuiteIndex
	envChain    []spectree.EnvHooks
}

func newGroupRun(w *Worker, tree *spectree.Tree, tests []*spectree.Test, group protocol.Group) *groupRun {
	g := &groupRun{
		w:         w,
		tree:      tree,
		tests:     tests,
		remoteIDs: group.TestIDs,
		group:     group,
	}
	if len(tests) > 0 {
		g.envChain = tests[0].EnvChain
	}
	g.suites = ancestorSuitesUnion(tree, tests)
	return g
}

// ancestorSuitesUnion flattens every test's ancestor chain into one
// root-to-leaf ordered, deduplicated list, so a suite shared by several
// tests in the group still runs its beforeAll/afterAll exactly once.
func ancestorSuitesUnion(tree *spectree.Tree, tests []*spectree.Test) []spectree.SuiteIndex {
	seen := map[spectree.SuiteIndex]bool{}
	var out []spectree.SuiteIndex
	for _, t := range tests {
		for _, si := range tree.AncestorChain(tree.Spec(t.Spec).Suite) {
			if !seen[si] {
				seen[si] = true
				out = append(out, si)
			}
		}
	}
	return out
}

func (g *groupRun) execute() error {
	g.workerState = map[string]any{}

	if err := g.runBeforeAll(); err != nil {
		for i, t := range g.tests {
			g.reportImmediateFailure(t, g.remoteIDs[i], "beforeAll", err)
		}
		return nil
	}

	for i, t := range g.tests {
		g.runOne(t, g.remoteIDs[i])
	}

	if err := g.runAfterAll(); err != nil {
		// afterAll failing after tests already reported does not retract
		// their results; it surfaces as a fatalError for the group so the
		// dispatcher's log carries it, but tests keep whatever status they
		// already reported.
		return fmt.Errorf("afterAll: %w", err)
	}
	return nil
}

func (g *groupRun) runBeforeAll() error {
	for _, env := range g.envChain {
		state, err := env.RunBeforeAll(spectree.EnvWorkerInfo{WorkerIndex: g.w.Index, Variant: g.group.Variant})
		if err != nil {
			return err
		}
		mergeInto(g.workerState, state)
	}
	ctx := &spectree.HookContext{WorkerState: g.workerState}
	for _, si := range g.suites {
		for _, hook := range g.tree.Suite(si).Hooks[spectree.BeforeAll] {
			if err := runHookBody(hook.Body, ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *groupRun) runAfterAll() error {
	ctx := &spectree.HookContext{WorkerState: g.workerState}
	for i := len(g.suites) - 1; i >= 0; i-- {
		for _, hook := range g.tree.Suite(g.suites[i]).Hooks[spectree.AfterAll] {
			if err := runHookBody(hook.Body, ctx); err != nil {
				return err
			}
		}
	}
	for i := len(g.envChain) - 1; i >= 0; i-- {
		if err := g.envChain[i].RunAfterAll(g.workerState); err != nil {
			return err
		}
	}
	return nil
}

// reportImmediateFailure sends a testBegin/testEnd pair for a test that
// never ran because a group-level hook failed before it was reached.
func (g *groupRun) reportImmediateFailure(t *spectree.Test, remoteID int, stage string, err error) {
	now := time.Now()
	_ = g.w.enc.SendMethod(protocol.MethodTestBegin, protocol.TestBeginParams{TestID: remoteID, StartWallClock: now})
	_ = g.w.enc.SendMethod(protocol.MethodTestEnd, protocol.TestEndParams{
		TestID: remoteID,
		Result: protocol.ResultWire{
			Status:   spectree.StatusFailed,
			Error:    &protocol.ErrorWire{Message: fmt.Sprintf("%s hook failed: %v", stage, err)},
			Duration: time.Since(now),
			Timeout:  t.Timeout,
		},
	})
}

func runHookBody(body func(ctx *spectree.HookContext) error, ctx *spectree.HookContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return body(ctx)
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

// testSuiteAncestors returns t's ancestor suites root-to-leaf, a small
// helper so runOne (in exec.go) does not reach back into the tree's
// internals directly.
func (g *groupRun) testSuiteAncestors(t *spectree.Test) []spectree.SuiteIndex {
	return g.tree.AncestorChain(g.tree.Spec(t.Spec).Suite)
}
