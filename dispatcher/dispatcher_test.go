package dispatcher

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrun/specrun/internal/rlog"
	"github.com/specrun/specrun/protocol"
	"github.com/specrun/specrun/reporters"
	"github.com/specrun/specrun/spectree"
)

func buildPlannedTree(t *testing.T) (*spectree.Tree, []*spectree.Test) {
	t.Helper()
	tree := spectree.NewTree()
	root := tree.NewRootSuite("a.spec.go")
	spec1 := tree.NewSpec(root, "one", "a.spec.go", spectree.Location{}, nil)
	spec2 := tree.NewSpec(root, "two", "a.spec.go", spectree.Location{}, nil)
	i1 := tree.NewTest(spec1, spectree.Variant{}, "default", 0, 5*time.Second, nil)
	i2 := tree.NewTest(spec2, spectree.Variant{}, "default", 0, 5*time.Second, nil)
	return tree, []*spectree.Test{tree.Tests[i1], tree.Tests[i2]}
}

func TestBuildGroups_SharesFileAndVariant(t *testing.T) {
	tree, tests := buildPlannedTree(t)
	groups := BuildGroups(tree, tests)
	require.Len(t, groups, 1)
	assert.Equal(t, []int{tests[0].ID, tests[1].ID}, groups[0].TestIDs)
	assert.Equal(t, []int{0, 1}, groups[0].SpecOrdinals)
}

func TestBuildGroups_SpecOrdinalsSurviveAGrepStyleSubset(t *testing.T) {
	tree, tests := buildPlannedTree(t)
	// Simulate --grep dropping the first test: only "two" survives.
	groups := BuildGroups(tree, tests[1:])
	require.Len(t, groups, 1)
	assert.Equal(t, []int{1}, groups[0].SpecOrdinals)
}

func TestBuildGroups_SplitsOnVariantChange(t *testing.T) {
	tree := spectree.NewTree()
	root := tree.NewRootSuite("a.spec.go")
	spec := tree.NewSpec(root, "one", "a.spec.go", spectree.Location{}, nil)
	i1 := tree.NewTest(spec, spectree.Variant{"browser": "chromium"}, "browser=chromium", 0, time.Second, nil)
	i2 := tree.NewTest(spec, spectree.Variant{"browser": "firefox"}, "browser=firefox", 0, time.Second, nil)
	tests := []*spectree.Test{tree.Tests[i1], tree.Tests[i2]}

	groups := BuildGroups(tree, tests)
	assert.Len(t, groups, 2)
}

func TestSplitRemaining_KeepsOnlyUnrunTail(t *testing.T) {
	g := protocol.Group{TestIDs: []int{1, 2, 3}, SpecOrdinals: []int{0, 1, 2}}
	tail, ok := splitRemaining(g, 1)
	require.True(t, ok)
	assert.Equal(t, []int{2, 3}, tail.TestIDs)
	assert.Equal(t, []int{1, 2}, tail.SpecOrdinals)
	assert.NotEqual(t, g.ID, tail.ID)
}

func TestSplitRemaining_NothingLeft(t *testing.T) {
	g := protocol.Group{TestIDs: []int{1, 2}}
	_, ok := splitRemaining(g, 2)
	assert.False(t, ok)
}

func TestSingleTestGroup_IsolatesOneTest(t *testing.T) {
	g := protocol.Group{TestIDs: []int{1, 2, 3}, SpecOrdinals: []int{10, 20, 30}, File: "a.spec.go"}
	single := singleTestGroup(g, 2, 1)
	assert.Equal(t, []int{2}, single.TestIDs)
	assert.Equal(t, []int{20}, single.SpecOrdinals)
	assert.Equal(t, 1, single.RetryIndex)
	assert.Equal(t, "a.spec.go", single.File)
}

// pipeWorker wires a childWorker to an in-process simulated worker
// goroutine, so runGroup's protocol loop can be exercised without
// spawning a real OS process. The returned *io.PipeWriter is the
// worker-side half of the dispatcher's read pipe; closing it simulates
// the worker process dying mid-group.
func pipeWorker(t *testing.T) (*childWorker, *protocol.Decoder, *protocol.Encoder, *io.PipeWriter) {
	t.Helper()
	parentR, workerW := io.Pipe()
	workerR, parentW := io.Pipe()

	w := &childWorker{
		index: 0,
		enc:   protocol.NewEncoder(parentW),
		dec:   protocol.NewDecoder(parentR),
		log:   rlog.Discard(),
	}
	return w, protocol.NewDecoder(workerR), protocol.NewEncoder(workerW), workerW
}

func TestRunGroup_HappyPath(t *testing.T) {
	tree, tests := buildPlannedTree(t)
	d := New(tree, tests, reporters.NewMultiplexer(rlog.Discard()), Options{}, rlog.Discard())

	w, workerDec, workerEnc, _ := pipeWorker(t)
	g := BuildGroups(tree, tests)[0]

	go func() {
		msg, err := workerDec.Recv()
		require.NoError(t, err)
		require.Equal(t, protocol.MethodRun, msg.Method)
		for _, id := range g.TestIDs {
			_ = workerEnc.SendMethod(protocol.MethodTestBegin, protocol.TestBeginParams{TestID: id})
			_ = workerEnc.SendMethod(protocol.MethodTestEnd, protocol.TestEndParams{
				TestID: id,
				Result: protocol.ResultWire{Status: spectree.StatusPassed},
			})
		}
		_ = workerEnc.SendMethod(protocol.MethodDone, protocol.DoneParams{GroupID: g.ID})
	}()

	outcome := d.runGroup(w, g)
	assert.False(t, outcome.crashed)
	assert.Empty(t, outcome.failedTestIDs)
	assert.True(t, tests[0].OK())
	assert.True(t, tests[1].OK())
}

func TestRunGroup_CrashMidGroup_MarksInFlightFailedAndReportsCrash(t *testing.T) {
	tree, tests := buildPlannedTree(t)
	d := New(tree, tests, reporters.NewMultiplexer(rlog.Discard()), Options{}, rlog.Discard())

	w, workerDec, workerEnc, workerW := pipeWorker(t)
	g := BuildGroups(tree, tests)[0]

	go func() {
		_, _ = workerDec.Recv()
		_ = workerEnc.SendMethod(protocol.MethodTestBegin, protocol.TestBeginParams{TestID: g.TestIDs[0]})
		// Crash: the worker process dies mid-group, closing its end of the
		// pipe the dispatcher reads from, without ever sending testEnd/done.
		_ = workerW.Close()
	}()

	outcome := d.runGroup(w, g)
	assert.True(t, outcome.crashed)
	assert.Equal(t, spectree.StatusFailed, tests[0].LastResult().Status)

	// The crashed test already got its one synthesized onTestEnd above;
	// completed must point past it, or splitRemaining would re-enqueue
	// and re-run the same test a second time.
	assert.Equal(t, 1, outcome.completed)
	tail, ok := splitRemaining(g, outcome.completed)
	require.True(t, ok)
	assert.Equal(t, []int{g.TestIDs[1]}, tail.TestIDs)
}
