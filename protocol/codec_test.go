package protocol

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncoderDecoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	dec := NewDecoder(&buf)

	testID := 42
	err := enc.SendMethod(MethodTestBegin, TestBeginParams{TestID: testID, StartWallClock: time.Unix(0, 0)})
	require.NoError(t, err)

	msg, err := dec.Recv()
	require.NoError(t, err)
	assert.Equal(t, MethodTestBegin, msg.Method)

	var params TestBeginParams
	require.NoError(t, Unmarshal(msg, &params))
	assert.Equal(t, testID, params.TestID)
}

func TestEncoderDecoder_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	dec := NewDecoder(&buf)

	require.NoError(t, enc.SendMethod(MethodReady, ReadyParams{}))
	require.NoError(t, enc.SendMethod(MethodDone, DoneParams{GroupID: "g1"}))

	first, err := dec.Recv()
	require.NoError(t, err)
	assert.Equal(t, MethodReady, first.Method)

	second, err := dec.Recv()
	require.NoError(t, err)
	assert.Equal(t, MethodDone, second.Method)

	var done DoneParams
	require.NoError(t, Unmarshal(second, &done))
	assert.Equal(t, "g1", done.GroupID)
}

func TestDecoder_RejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF}) // length prefix far beyond maxMessageSize
	dec := NewDecoder(&buf)

	_, err := dec.Recv()
	require.Error(t, err)
}
