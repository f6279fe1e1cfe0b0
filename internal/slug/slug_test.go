package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlug_ReplacesEveryWhitespaceRun(t *testing.T) {
	assert.Equal(t, "rejects-a-bad-password", Slug("rejects a   bad password"))
}

func TestSlug_StripsUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "login-works", Slug("login() works?!"))
}

func TestSlug_EmptyFallsBackToTest(t *testing.T) {
	assert.Equal(t, "test", Slug("   "))
}
