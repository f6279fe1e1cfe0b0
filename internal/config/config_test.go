package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShard(t *testing.T) {
	s, err := parseShard("2/4")
	require.NoError(t, err)
	assert.Equal(t, Shard{Index: 2, Total: 4}, s)

	_, err = parseShard("bad")
	assert.Error(t, err)

	_, err = parseShard("5/4")
	assert.Error(t, err)

	empty, err := parseShard("")
	require.NoError(t, err)
	assert.Equal(t, Shard{}, empty)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"dot", "junit"}, splitCSV("dot, junit"))
	assert.Nil(t, splitCSV(""))
}
