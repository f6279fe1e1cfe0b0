// Package registration implements the author-facing describe/test/hook
// surface and the Loader machinery that captures a spectree.Tree while a
// single test file is loading. Loading is side-effectful by construction
// (describe/test calls mutate a stack of suites as a file's top-level code
// runs), so the stateful pieces — the "currently loading file" slot and the
// suite stack — are encapsulated in an explicit Loader rather than kept in
// package-level globals, and the public describe/test/hook functions close
// over the live Loader and reject calls made while it is idle.
package registration

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/specrun/specrun/internal/errs"
	"github.com/specrun/specrun/spectree"
)

// Loader owns the process-wide "currently loading file" slot and the
// suite stack for that file. One Loader exists per process (worker or the
// --list planning path); it is re-entrant across files but never across
// itself (re-entry while already loading the same or another file fails).
type Loader struct {
	mu         sync.Mutex
	file       string // "" when idle
	sourceFile string // real Go source file the current load's describe/it/hook calls are anchored to
	tree       *spectree.Tree
	stack      []spectree.SuiteIndex
}

// NewLoader returns an idle Loader bound to a fresh spectree.Tree.
func NewLoader() *Loader {
	return &Loader{tree: spectree.NewTree()}
}

// Tree returns the arena the Loader has been filling.
func (l *Loader) Tree() *spectree.Tree { return l.tree }

// CurrentFile returns the file currently loading, or "" when idle.
func (l *Loader) CurrentFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file
}

// LoadFile runs fn with the loader armed for file, pushing a fresh root
// suite before fn runs and popping it after. Re-entrant loads (fn calling
// back into LoadFile, directly or via a helper file importing the
// registration surface) fail fast: the invariant in the design doc is
// that a hook or spec may only be registered while a file is loading, and
// loading itself is not nested.
func (l *Loader) LoadFile(file string, fn func() error) error {
	l.mu.Lock()
	if l.file != "" {
		l.mu.Unlock()
		return errs.New(errs.LoadError, "file %s is already loading (re-entrant load of %s)", l.file, file)
	}
	l.file = file
	l.sourceFile = ""
	root := l.tree.NewRootSuite(file)
	l.stack = []spectree.SuiteIndex{root}
	l.mu.Unlock()

	err := fn()

	l.mu.Lock()
	l.file = ""
	l.sourceFile = ""
	l.stack = nil
	l.mu.Unlock()

	if err != nil {
		return errs.Wrap(errs.LoadError, fmt.Errorf("loading %s: %w", file, err))
	}
	return nil
}

// top returns the suite at the top of the stack, failing if idle — this
// is the check behind the RegistrationPhaseViolation invariant: describe,
// test, and the hook registrars all route through here.
func (l *Loader) top() (spectree.SuiteIndex, error) {
	if l.file == "" {
		return 0, errs.New(errs.RegistrationPhaseViolation, "registration call outside of file loading")
	}
	if len(l.stack) == 0 {
		return 0, errs.New(errs.RegistrationPhaseViolation, "no active suite")
	}
	return l.stack[len(l.stack)-1], nil
}

// checkSameFile enforces "a hook may only be defined in a test file": every
// describe/it/hook call made during one load must originate from the same
// real source location. The virtual path passed to LoadFile has no
// relation to Go source file names, so the first registration call in a
// load establishes the anchor; any later call from a different source
// file — a shared helper a test file merely calls into, rather than
// declaring its own hooks inline — fails instead of being silently
// accepted.
func (l *Loader) checkSameFile(callerFile string) error {
	if l.file == "" || callerFile == "" {
		return nil
	}
	if l.sourceFile == "" {
		l.sourceFile = callerFile
		return nil
	}
	if callerFile != l.sourceFile {
		return errs.New(errs.RegistrationPhaseViolation, "Hook can only be defined in a test file")
	}
	return nil
}

// callerLocation walks the runtime stack, starting skip frames up, to find
// the first frame outside the Loader's own methods — the equivalent of the
// error-stack probe the design doc calls for when capturing a Spec's
// declared line/column.
func callerLocation(skip int) spectree.Location {
	pcs := make([]uintptr, 64)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(skip, pcs)])
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !strings.HasPrefix(fr.Function, "github.com/specrun/specrun/registration.(*Loader).") {
			// Go's runtime does not expose columns; callers only need the file:line pair for display.
			return spectree.Location{File: fr.File, Line: fr.Line, Column: 1}
		}
		if !more {
			return spectree.Location{}
		}
	}
}
