// Package protocol defines the length-framed JSON wire format spoken
// between the dispatcher (parent) and each worker child process, and the
// message payloads exchanged over it.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/specrun/specrun/spectree"
)

// Method names the RPC being sent. Every Message is a JSON object with a
// "method" and "params", mirroring the design's framing.
type Method string

const (
	// Parent -> worker.
	MethodInit Method = "init"
	MethodRun  Method = "run"
	MethodStop Method = "stop"

	// Worker -> parent.
	MethodReady      Method = "ready"
	MethodTestBegin  Method = "testBegin"
	MethodStdout     Method = "stdout"
	MethodStderr     Method = "stderr"
	MethodTestEnd    Method = "testEnd"
	MethodDone       Method = "done"
	MethodFatalError Method = "fatalError"
)

// Message is the envelope carried over the wire; Params is deferred
// decoding so the dispatch loop can switch on Method first.
type Message struct {
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Encode wraps params under method into a Message ready to write.
func Encode(method Method, params any) (Message, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Message{}, err
	}
	return Message{Method: method, Params: raw}, nil
}

// InitParams is sent once, at worker startup.
type InitParams struct {
	WorkerIndex int              `json:"workerIndex"`
	Config      ConfigSnapshot   `json:"configSnapshot"`
	Variant     spectree.Variant `json:"variant"`
}

// ConfigSnapshot is the subset of run configuration a worker needs to
// reproduce the parent's view of timeouts and file layout without
// importing the internal/config package (which in turn depends on CLI
// flag parsing the worker has no business with).
type ConfigSnapshot struct {
	Timeout       time.Duration `json:"timeout"`
	OutputDir     string        `json:"outputDir"`
	SnapshotDir   string        `json:"snapshotDir"`
	UpdateSnaps   bool          `json:"updateSnapshots"`
	Quiet         bool          `json:"quiet"`
	ConfigFile    string        `json:"configFile"`
	FixtureFiles  []string      `json:"fixtureFiles"`
}

// Group is the unit of work assigned to a worker: a contiguous run of
// Tests sharing (file, variant) so beforeAll/afterAll run exactly once.
type Group struct {
	ID      string           `json:"id"`
	File    string           `json:"file"`
	Variant spectree.Variant `json:"variant"`
	TestIDs []int            `json:"testIds"`
	// SpecOrdinals carries, parallel to TestIDs, each test's spec's
	// position among every spec File declares (spectree.Spec.FileOrdinal).
	// A worker that reloads File fresh has no way to reconstruct which of
	// its own tests this Group means otherwise — TestIDs are the
	// dispatcher's global, cross-file IDs, meaningless to a worker that
	// only ever sees one file at a time.
	SpecOrdinals []int `json:"specOrdinals"`
	RepeatIndex  int   `json:"repeatIndex"`
	RetryIndex   int   `json:"retryIndex"`
}

// RunParams carries one Group to run.
type RunParams struct {
	Group Group `json:"group"`
}

// StopParams is empty; stop() is cooperative shutdown.
type StopParams struct{}

// ReadyParams is empty; emitted once a worker has initialized.
type ReadyParams struct{}

// TestBeginParams announces the start of one test attempt.
type TestBeginParams struct {
	TestID         int       `json:"testId"`
	StartWallClock time.Time `json:"startWallClock"`
}

// StdioParams carries one captured chunk of stdout or stderr. TestID is
// nil when the chunk could not be attributed to a running test (output
// between tests).
type StdioParams struct {
	TestID *int   `json:"testId"`
	Text   string `json:"text"`
}

// ErrorWire is an error as it crosses the wire: message and, when
// available, a stack trace, kept as plain strings so it survives JSON
// round-tripping without a custom error type.
type ErrorWire struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// AnnotationWire mirrors spectree.Annotation across the wire.
type AnnotationWire struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ResultWire is the `result` object carried by testEnd.
type ResultWire struct {
	Status      spectree.Status  `json:"status"`
	Error       *ErrorWire       `json:"error,omitempty"`
	Duration    time.Duration    `json:"duration"`
	Data        map[string]any   `json:"data,omitempty"`
	Annotations []AnnotationWire `json:"annotations,omitempty"`
	Timeout     time.Duration    `json:"timeout"`
	Stdout      []string         `json:"stdout,omitempty"`
	Stderr      []string         `json:"stderr,omitempty"`
	// FailExpected is set when the test body called testInfo.fail() at
	// runtime, overriding the spec's declared expectedToFail for this
	// attempt only; the dispatcher applies it to its own Test before
	// computing OK().
	FailExpected bool `json:"failExpected,omitempty"`
}

// TestEndParams reports the outcome of one test attempt.
type TestEndParams struct {
	TestID int        `json:"testId"`
	Result ResultWire `json:"result"`
}

// DoneParams announces that a group finished cleanly, including afterAll.
type DoneParams struct {
	GroupID string `json:"groupId"`
}

// FatalErrorParams is unrecoverable; the parent treats it as a crash.
type FatalErrorParams struct {
	Error ErrorWire `json:"error"`
}
