package spectree

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTestContext_Skip(t *testing.T) {
	c := &TestContext{}
	c.Skip()
	assert.True(t, c.Skipped())
}

func TestTestContext_Skip_ConditionalFalseIsNoop(t *testing.T) {
	c := &TestContext{}
	c.Skip(false)
	assert.False(t, c.Skipped())

	c.Skip(true)
	assert.True(t, c.Skipped())
}

func TestTestContext_Slow_TriplesTimeoutOnce(t *testing.T) {
	c := &TestContext{Timeout: 10 * time.Second}
	c.Slow()
	assert.Equal(t, 30*time.Second, c.EffectiveTimeout())

	c.Slow() // idempotent, does not triple again
	assert.Equal(t, 30*time.Second, c.EffectiveTimeout())
}

func TestTestContext_SetTimeout_Overrides(t *testing.T) {
	c := &TestContext{Timeout: 10 * time.Second}
	c.SetTimeout(2 * time.Second)
	assert.Equal(t, 2*time.Second, c.EffectiveTimeout())
}

func TestTestContext_EffectiveTimeout_DefaultsToTimeout(t *testing.T) {
	c := &TestContext{Timeout: 5 * time.Second}
	assert.Equal(t, 5*time.Second, c.EffectiveTimeout())
}

func TestTestContext_Annotate(t *testing.T) {
	c := &TestContext{}
	c.Annotate("issue", "JIRA-123")
	assert.Equal(t, []Annotation{{Type: "issue", Description: "JIRA-123"}}, c.Annotations)
}
