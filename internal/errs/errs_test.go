package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_CarriesKindAndMessage(t *testing.T) {
	err := New(Timeout, "test %q exceeded %s", "login", "30s")
	assert.Equal(t, Timeout, err.Kind)
	assert.Equal(t, `Timeout: test "login" exceeded 30s`, err.Error())
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(WorkerCrash, nil))
}

func TestWrap_UnwrapsToOriginal(t *testing.T) {
	original := errors.New("boom")
	wrapped := Wrap(WorkerCrash, original)
	assert.Same(t, original, errors.Unwrap(wrapped))
}

func TestIs(t *testing.T) {
	err := New(GlobalTimeout, "run exceeded global timeout")
	assert.True(t, Is(err, GlobalTimeout))
	assert.False(t, Is(err, Interrupt))
	assert.False(t, Is(errors.New("plain"), GlobalTimeout))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "RegistrationPhaseViolation", RegistrationPhaseViolation.String())
	assert.Equal(t, "Unknown", Kind(99).String())
}
