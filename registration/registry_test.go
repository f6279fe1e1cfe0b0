package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLoad_RunsRegisteredFunc(t *testing.T) {
	defer Reset()
	ran := false
	Register("a.spec.go", func(l *Loader) error {
		ran = true
		_, err := l.Describe(SuiteOptions{}, "top", func() {})
		return err
	})

	loader := NewLoader()
	require.NoError(t, Load(loader, "a.spec.go"))
	assert.True(t, ran)
}

func TestLoad_UnregisteredFileFails(t *testing.T) {
	defer Reset()
	loader := NewLoader()
	err := Load(loader, "missing.spec.go")
	require.Error(t, err)
}

func TestRegisteredFiles_SortedAndDeduped(t *testing.T) {
	defer Reset()
	Register("b.spec.go", func(l *Loader) error { return nil })
	Register("a.spec.go", func(l *Loader) error { return nil })
	Register("a.spec.go", func(l *Loader) error { return nil })

	assert.Equal(t, []string{"a.spec.go", "b.spec.go"}, RegisteredFiles())
}
