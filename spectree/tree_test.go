package spectree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTree_FullTitle(t *testing.T) {
	tree := NewTree()
	root := tree.NewRootSuite("auth.spec.js")
	child := tree.NewChildSuite(root, "login", "auth.spec.js")
	spec := tree.NewSpec(child, "rejects a bad password", "auth.spec.js", Location{}, nil)

	assert.Equal(t, "login rejects a bad password", tree.FullTitle(spec))
}

func TestTree_FullTitle_RootSuiteHasNoTitle(t *testing.T) {
	tree := NewTree()
	root := tree.NewRootSuite("smoke.spec.js")
	spec := tree.NewSpec(root, "boots", "smoke.spec.js", Location{}, nil)

	assert.Equal(t, "boots", tree.FullTitle(spec))
}

func TestTree_IsSkipped_PropagatesFromAncestor(t *testing.T) {
	tree := NewTree()
	root := tree.NewRootSuite("a.spec.js")
	child := tree.NewChildSuite(root, "group", "a.spec.js")
	tree.Suite(child).Skipped = true
	spec := tree.NewSpec(child, "case", "a.spec.js", Location{}, nil)

	assert.True(t, tree.IsSkipped(spec))
}

func TestTree_FocusedSpecs_FocusedSuiteWithNoNarrowerOnlyKeepsAllChildren(t *testing.T) {
	tree := NewTree()
	root := tree.NewRootSuite("a.spec.js")
	focusedChild := tree.NewChildSuite(root, "focused group", "a.spec.js")
	tree.Suite(focusedChild).Focused = true
	plainChild := tree.NewChildSuite(root, "plain group", "a.spec.js")

	inFocused := tree.NewSpec(focusedChild, "case", "a.spec.js", Location{}, nil)
	inPlain := tree.NewSpec(plainChild, "case", "a.spec.js", Location{}, nil)

	keep := tree.FocusedSpecs()
	assert.True(t, keep[inFocused])
	assert.False(t, keep[inPlain])
	assert.True(t, tree.HasAnyFocusMark())
}

func TestTree_FocusedSpecs_NarrowsToOnlyDescendantsWithinFocusedSuite(t *testing.T) {
	tree := NewTree()
	root := tree.NewRootSuite("a.spec.js")
	a := tree.NewChildSuite(root, "a", "a.spec.js")
	tree.Suite(a).Focused = true

	b := tree.NewSpec(a, "b", "a.spec.js", Location{}, nil)
	tree.Spec(b).Focused = true
	c := tree.NewSpec(a, "c", "a.spec.js", Location{}, nil)
	d := tree.NewSpec(a, "d", "a.spec.js", Location{}, nil)
	tree.Spec(d).Focused = true
	e := tree.NewSpec(root, "e", "a.spec.js", Location{}, nil)

	keep := tree.FocusedSpecs()
	assert.True(t, keep[b])
	assert.False(t, keep[c])
	assert.True(t, keep[d])
	assert.False(t, keep[e])
}

func TestTree_NewSpec_FileOrdinalCountsPerFileOnly(t *testing.T) {
	tree := NewTree()
	root := tree.NewRootSuite("a.spec.js")
	a0 := tree.NewSpec(root, "first", "a.spec.js", Location{}, nil)
	b0 := tree.NewSpec(root, "other file first", "b.spec.js", Location{}, nil)
	a1 := tree.NewSpec(root, "second", "a.spec.js", Location{}, nil)

	assert.Equal(t, 0, tree.Spec(a0).FileOrdinal)
	assert.Equal(t, 0, tree.Spec(b0).FileOrdinal)
	assert.Equal(t, 1, tree.Spec(a1).FileOrdinal)
}

func TestTree_NewTest_InheritsSpecFlags(t *testing.T) {
	tree := NewTree()
	root := tree.NewRootSuite("a.spec.js")
	spec := tree.NewSpec(root, "flaky-ish", "a.spec.js", Location{}, nil)
	tree.Spec(spec).ExpectedToFail = true

	idx := tree.NewTest(spec, Variant{"browser": "chromium"}, "browser=chromium", 0, 0, nil)
	test := tree.Tests[idx]

	require.NotNil(t, test)
	assert.True(t, test.ExpectedToFail)
	assert.Equal(t, "browser=chromium", test.VariantTag)
	assert.Contains(t, tree.Spec(spec).Tests, idx)
}
