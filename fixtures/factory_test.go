package fixtures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrun/specrun/registration"
	"github.com/specrun/specrun/spectree"
)

func TestFactory_RunWith_RegistersBindingOnCurrentSuite(t *testing.T) {
	l := registration.NewLoader()
	f := NewFactory(l)

	err := l.LoadFile("a.spec.js", func() error {
		return f.RunWith(&Env{Name: "chromium"}, RunOptions{Tag: "chromium"})
	})
	require.NoError(t, err)

	root := l.Tree().Suite(0)
	require.Len(t, root.Bindings, 1)
	assert.Equal(t, "chromium", root.Bindings[0].Variant["name"])
	require.Len(t, root.Bindings[0].Chain, 1)
}

func TestFactory_Extend_PrependsOutermostLayer(t *testing.T) {
	var order []string
	base := &Env{Name: "base", BeforeEach: func(TestInfo) (map[string]any, error) {
		order = append(order, "base")
		return nil, nil
	}}
	outer := &Env{Name: "outer", BeforeEach: func(TestInfo) (map[string]any, error) {
		order = append(order, "outer")
		return nil, nil
	}}

	l := registration.NewLoader()
	f := NewFactory(l).Extend(outer)

	var chain []spectree.EnvHooks
	err := l.LoadFile("a.spec.js", func() error {
		if err := f.RunWith(base, RunOptions{}); err != nil {
			return err
		}
		chain = l.Tree().Suite(0).Bindings[0].Chain
		return nil
	})
	require.NoError(t, err)
	require.Len(t, chain, 2)

	for _, e := range chain {
		_, _ = e.RunBeforeEach(TestInfo{})
	}
	assert.Equal(t, []string{"outer", "base"}, order)
}

func TestFactory_Declare_CopiesChainIndependently(t *testing.T) {
	base := NewFactory(registration.NewLoader())
	extended := base.Extend(&Env{Name: "a"})
	declared := extended.Declare()
	declared2 := declared.Extend(&Env{Name: "b"})

	assert.Len(t, extended.chain, 1)
	assert.Len(t, declared.chain, 1)
	assert.Len(t, declared2.chain, 2)
}

func TestBinding_SetupAndTeardownOrder(t *testing.T) {
	var setup, teardown []string
	mk := func(name string) *Env {
		return &Env{
			Name: name,
			BeforeEach: func(TestInfo) (map[string]any, error) {
				setup = append(setup, name)
				return nil, nil
			},
			AfterEach: func(map[string]any) error {
				teardown = append(teardown, name)
				return nil
			},
		}
	}

	l := registration.NewLoader()
	f := NewFactory(l).Extend(mk("outer")).Extend(mk("outermost"))

	err := l.LoadFile("a.spec.js", func() error {
		return f.RunWith(mk("base"), RunOptions{})
	})
	require.NoError(t, err)

	b := l.Tree().Suite(0).Bindings[0]
	for _, e := range b.SetupOrder() {
		_, _ = e.RunBeforeEach(TestInfo{})
	}
	for _, e := range b.TeardownOrder() {
		_ = e.RunAfterEach(nil)
	}

	assert.Equal(t, []string{"outermost", "outer", "base"}, setup)
	assert.Equal(t, []string{"base", "outer", "outermost"}, teardown)
}
