package spectree

// EnvWorkerInfo is handed to an env's beforeAll hook.
type EnvWorkerInfo struct {
	WorkerIndex int
	Variant     map[string]string
}

// EnvTestInfo is handed to an env's beforeEach hook.
type EnvTestInfo struct {
	Title       string
	Retry       int
	RepeatIndex int
	Variant     map[string]string
}

// EnvHooks is the narrow surface a fixtures.Env (or a composed chain of
// them) must implement to be bound to a suite via runWith. It is declared
// here, rather than in the fixtures package, so spectree's Suite can hold
// bindings without importing fixtures — fixtures depends on spectree and
// registration, never the reverse.
type EnvHooks interface {
	RunBeforeAll(info EnvWorkerInfo) (map[string]any, error)
	RunAfterAll(state map[string]any) error
	RunBeforeEach(info EnvTestInfo) (map[string]any, error)
	RunAfterEach(state map[string]any) error
}

// Binding is one runWith(env, options) registration, scoped to the suite
// it was declared under. Chain is the env-composition DAG already folded
// into an ordered, outermost-first list by the time it reaches here — the
// fixtures package owns that folding; spectree just carries the result.
type Binding struct {
	Tag        string
	Variant    map[string]string
	RepeatEach int
	Chain      []EnvHooks
	Location   Location
}

// SetupOrder returns the chain outermost-first, the order beforeAll and
// beforeEach hooks run in.
func (b Binding) SetupOrder() []EnvHooks { return b.Chain }

// TeardownOrder returns the chain outermost-last, the order afterAll and
// afterEach hooks run in — the reverse of SetupOrder, so whichever layer's
// beforeEach ran last has its afterEach run first.
func (b Binding) TeardownOrder() []EnvHooks {
	rev := make([]EnvHooks, len(b.Chain))
	for i, e := range b.Chain {
		rev[len(b.Chain)-1-i] = e
	}
	return rev
}
