// Package fixtures implements environment declarations and the
// runWith/declare/extend composition surface: the DAG of test factories
// described in the design notes. Each node in that DAG resolves, at test
// generation time, to an ordered list of env lifecycles — outermost
// factory first for setup, outermost last for teardown — rather than
// being modeled as prototype/inheritance.
package fixtures

import "github.com/specrun/specrun/spectree"

// WorkerInfo and TestInfo are aliases of the spectree types an Env's hooks
// are called with — kept as fixtures-local names since this is the
// author-facing package, while letting *Env satisfy spectree.EnvHooks
// without either package importing the other in both directions.
type WorkerInfo = spectree.EnvWorkerInfo
type TestInfo = spectree.EnvTestInfo

// Env exposes up to four lifecycle operations. Any of the four may be nil;
// a nil hook is simply skipped. BeforeAll/BeforeEach may return a
// dictionary that is shallow-merged into the worker/test state bag seen
// by later hooks, the test body, and the matching AfterAll/AfterEach.
type Env struct {
	Name       string
	BeforeAll  func(info WorkerInfo) (map[string]any, error)
	AfterAll   func(state map[string]any) error
	BeforeEach func(info TestInfo) (map[string]any, error)
	AfterEach  func(state map[string]any) error
}

// RunBeforeAll, RunAfterAll, RunBeforeEach, and RunAfterEach implement
// spectree.EnvHooks, tolerating a nil *Env or a nil individual hook.
func (e *Env) RunBeforeAll(info WorkerInfo) (map[string]any, error) {
	if e == nil || e.BeforeAll == nil {
		return nil, nil
	}
	return e.BeforeAll(info)
}

func (e *Env) RunAfterAll(state map[string]any) error {
	if e == nil || e.AfterAll == nil {
		return nil
	}
	return e.AfterAll(state)
}

func (e *Env) RunBeforeEach(info TestInfo) (map[string]any, error) {
	if e == nil || e.BeforeEach == nil {
		return nil, nil
	}
	return e.BeforeEach(info)
}

func (e *Env) RunAfterEach(state map[string]any) error {
	if e == nil || e.AfterEach == nil {
		return nil
	}
	return e.AfterEach(state)
}

var _ spectree.EnvHooks = (*Env)(nil)
