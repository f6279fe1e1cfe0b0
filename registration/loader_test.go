package registration

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrun/specrun/internal/errs"
	"github.com/specrun/specrun/spectree"
)

func TestLoader_Describe_It_BuildsTree(t *testing.T) {
	l := NewLoader()

	err := l.LoadFile("login.spec.js", func() error {
		_, err := l.Describe(SuiteOptions{}, "login", func() {
			_, err := l.It(SpecOptions{}, "rejects a bad password", func(ctx *spectree.TestContext) error { return nil })
			require.NoError(t, err)
		})
		return err
	})
	require.NoError(t, err)

	tree := l.Tree()
	require.Len(t, tree.Specs, 1)
	assert.Equal(t, "login rejects a bad password", tree.FullTitle(0))
	assert.Equal(t, "", l.CurrentFile())
}

func TestLoader_RegistrationOutsideLoad_Fails(t *testing.T) {
	l := NewLoader()
	_, err := l.Describe(SuiteOptions{}, "orphan", func() {})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RegistrationPhaseViolation))
}

func TestLoader_ReentrantLoad_Fails(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		return l.LoadFile("b.spec.js", func() error { return nil })
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LoadError))
}

func TestLoader_LoadFile_WrapsBodyError(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("broken.spec.js", func() error {
		return errors.New("broken spec file")
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LoadError))
	assert.Equal(t, "", l.CurrentFile())
}

func TestLoader_AddHook_RecordsAgainstCurrentSuite(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		return l.BeforeEach(func(ctx *spectree.HookContext) error { return nil })
	})
	require.NoError(t, err)

	root := l.Tree().Suite(0)
	assert.Len(t, root.Hooks[spectree.BeforeEach], 1)
}

func TestLoader_ForbidOnly(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		_, err := l.It(SpecOptions{Only: true}, "focused", func(ctx *spectree.TestContext) error { return nil })
		return err
	})
	require.NoError(t, err)

	err = l.ForbidOnly()
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.RegistrationPhaseViolation))
}

func TestLoader_AddHook_FromDifferentSourceFileFails(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		return registerHookFromHelper(l)
	})
	require.Error(t, err)
	// LoadFile wraps any error its body returns as LoadError; the
	// registration-phase violation checkSameFile raised is the cause.
	assert.True(t, errs.Is(err, errs.LoadError))
	assert.ErrorContains(t, err, "Hook can only be defined in a test file")
}

func TestLoader_Describe_FromDifferentSourceFileFails(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		_, err := describeFromHelper(l)
		return err
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.LoadError))
	assert.ErrorContains(t, err, "Hook can only be defined in a test file")
}

func TestLoader_AddHook_SameSourceFileSucceeds(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		return l.BeforeEach(func(ctx *spectree.HookContext) error { return nil })
	})
	require.NoError(t, err)
}

func TestLoader_ForbidOnly_PassesWithNoFocus(t *testing.T) {
	l := NewLoader()
	err := l.LoadFile("a.spec.js", func() error {
		_, err := l.It(SpecOptions{}, "plain", func(ctx *spectree.TestContext) error { return nil })
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, l.ForbidOnly())
}
