package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrun/specrun/spectree"
)

func TestDescribe_NestedSuitesRestoreStack(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		_, err := l.Describe(SuiteOptions{}, "outer", func() {
			_, err := l.Describe(SuiteOptions{}, "inner", func() {
				_, err := l.It(SpecOptions{}, "case", func(ctx *spectree.TestContext) error { return nil })
				require.NoError(t, err)
			})
			require.NoError(t, err)

			// After the inner Describe returns, a spec registered here
			// must attach to "outer", not leak into "inner".
			_, err = l.It(SpecOptions{}, "sibling", func(ctx *spectree.TestContext) error { return nil })
			require.NoError(t, err)
		})
		return err
	})
	require.NoError(t, err)

	tree := l.Tree()
	require.Len(t, tree.Specs, 2)
	assert.Equal(t, "outer inner case", tree.FullTitle(0))
	assert.Equal(t, "outer sibling", tree.FullTitle(1))
}

func TestDescribe_OnlyAndSkipOptions(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		idx, err := l.Describe(SuiteOptions{Only: true, Skip: false}, "focused group", func() {})
		require.NoError(t, err)
		assert.True(t, l.Tree().Suite(idx).Focused)
		return nil
	})
	require.NoError(t, err)
}

func TestIt_ExpectedToFail(t *testing.T) {
	l := NewLoader()
	var specIdx spectree.SpecIndex
	err := l.LoadFile("a.spec.js", func() error {
		idx, err := l.It(SpecOptions{ExpectedToFail: true}, "known broken", func(ctx *spectree.TestContext) error { return nil })
		specIdx = idx
		return err
	})
	require.NoError(t, err)
	assert.True(t, l.Tree().Spec(specIdx).ExpectedToFail)
}

func TestAddBinding_AttachesToCurrentSuite(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		return l.AddBinding(spectree.Binding{Tag: "chromium", Variant: spectree.Variant{"browser": "chromium"}})
	})
	require.NoError(t, err)

	root := l.Tree().Suite(0)
	require.Len(t, root.Bindings, 1)
	assert.Equal(t, "chromium", root.Bindings[0].Tag)
}
