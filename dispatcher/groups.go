// Package dispatcher owns the worker pool: it spawns one OS child process
// per worker slot, assigns Groups of Tests to them over the protocol
// connection, and recovers from a crashed child by splitting its group's
// unrun tail into a fresh Group and replacing the worker — all the
// parallelism in a run is inter-worker; within a worker, tests execute
// strictly one at a time, matching the design's concurrency model.
package dispatcher

import (
	"github.com/google/uuid"

	"github.com/specrun/specrun/protocol"
	"github.com/specrun/specrun/spectree"
)

// BuildGroups folds an ordered Test list into contiguous runs sharing
// (file, variant tag, repeat index) — the unit whose beforeAll/afterAll
// a worker runs exactly once, grounded in the design's test-grouping
// rule. Tests must already be in the order generator.Generate produced;
// grouping does not reorder them.
func BuildGroups(tree *spectree.Tree, tests []*spectree.Test) []protocol.Group {
	var groups []protocol.Group
	var cur *protocol.Group
	var curFile, curVariant string
	var curRepeat int

	flush := func() {
		if cur != nil {
			groups = append(groups, *cur)
			cur = nil
		}
	}

	for _, t := range tests {
		file := tree.Spec(t.Spec).File
		if cur == nil || file != curFile || t.VariantTag != curVariant || t.RepeatIndex != curRepeat {
			flush()
			curFile, curVariant, curRepeat = file, t.VariantTag, t.RepeatIndex
			cur = &protocol.Group{
				ID:          uuid.NewString(),
				File:        file,
				Variant:     t.Variant,
				RepeatIndex: t.RepeatIndex,
			}
		}
		cur.TestIDs = append(cur.TestIDs, t.ID)
		cur.SpecOrdinals = append(cur.SpecOrdinals, tree.Spec(t.Spec).FileOrdinal)
	}
	flush()
	return groups
}

// splitRemaining returns a fresh Group carrying g's TestIDs (and their
// paired SpecOrdinals) from fromIndex onward, for re-enqueueing the tail
// a crashed worker never reached. ok is false when there is no tail to
// re-run.
func splitRemaining(g protocol.Group, fromIndex int) (protocol.Group, bool) {
	if fromIndex >= len(g.TestIDs) {
		return protocol.Group{}, false
	}
	out := g
	out.ID = uuid.NewString()
	out.TestIDs = append([]int{}, g.TestIDs[fromIndex:]...)
	out.SpecOrdinals = append([]int{}, g.SpecOrdinals[fromIndex:]...)
	return out, true
}

// singleTestGroup builds a one-test retry Group out of g, keeping g's
// file/variant/repeat but isolating testID (and its paired SpecOrdinal)
// as the sole member and stamping the attempt's retry index.
func singleTestGroup(g protocol.Group, testID, retryIndex int) protocol.Group {
	out := g
	out.ID = uuid.NewString()
	out.TestIDs = []int{testID}
	if i := indexOf(g.TestIDs, testID); i >= 0 && i < len(g.SpecOrdinals) {
		out.SpecOrdinals = []int{g.SpecOrdinals[i]}
	}
	out.RetryIndex = retryIndex
	return out
}
