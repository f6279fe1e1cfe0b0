package registration

import (
	"sort"
	"sync"

	"github.com/specrun/specrun/internal/errs"
)

// LoadFunc is what a test file's init() hands to Register: the closure
// that replays describe/it/hook calls against whichever Loader later
// loads that file. Go has no runtime equivalent of require()/import() by
// string path, so this registry is the load-time indirection a dynamic
// loader would give you — compiled test files register themselves once
// at process startup, and LoadFile/Load look them up by the same path
// string discovery reported.
type LoadFunc func(l *Loader) error

var (
	registryMu sync.Mutex
	registry   = map[string]LoadFunc{}
)

// Register associates file with fn. Test files call this from an init()
// function; re-registering the same path overwrites the previous entry,
// which only matters for tests of this package itself.
func Register(file string, fn LoadFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[file] = fn
}

// Load looks up file in the registry and runs it against l. It returns
// an error tagged LoadError if no test file registered that path — the
// compiled-binary equivalent of "module not found".
func Load(l *Loader, file string) error {
	registryMu.Lock()
	fn, ok := registry[file]
	registryMu.Unlock()
	if !ok {
		return errs.New(errs.LoadError, "no test file registered for %q (is it compiled into this binary?)", file)
	}
	return l.LoadFile(file, func() error { return fn(l) })
}

// RegisteredFiles returns every path currently registered, sorted, for
// discovery to cross-check against what it found on disk.
func RegisteredFiles() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]string, 0, len(registry))
	for f := range registry {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Reset clears the registry. Only test code in this module should call
// it; a worker process never needs to.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = map[string]LoadFunc{}
}
