// Package discovery implements the gitignore-aware recursive walk that
// finds test and fixture files under a test directory, per §6's
// Discovery rule: walk, skip anything .gitignore excludes, then apply
// the match/ignore glob pair and bare substring name filters.
package discovery

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/monochromegane/go-gitignore"
)

// Options controls one discovery pass.
type Options struct {
	TestMatch     string
	TestIgnore    string
	FixtureMatch  string
	FixtureIgnore string
	NameFilters   []string
}

// Result separates fixture files from test files — the caller must load
// fixtures strictly before test files. ModuleRoot and ModulePath are the
// values ModuleRoot() resolved for root.
type Result struct {
	FixtureFiles []string
	TestFiles    []string
	ModuleRoot   string
	ModulePath   string
}

// Discover walks root and classifies every non-ignored file against the
// fixture and test glob pairs. A file matching both is treated as a
// fixture only, since fixtures must load first and a file cannot load
// twice.
func Discover(root string, opts Options) (*Result, error) {
	ignore := loadGitignore(root)

	modRoot, modPath, err := ModuleRoot(root)
	if err != nil {
		// A test directory outside any module (e.g. an ad hoc tmp dir in
		// this package's own tests) still discovers fine; IDs just stay
		// relative to root instead of the module root.
		modRoot, modPath = "", ""
	}

	res := &Result{ModuleRoot: modRoot, ModulePath: modPath}
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" || (ignore != nil && ignore.Match(rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore != nil && ignore.Match(rel, false) {
			return nil
		}

		switch {
		case matches(rel, opts.FixtureMatch, opts.FixtureIgnore):
			res.FixtureFiles = append(res.FixtureFiles, path)
		case matches(rel, opts.TestMatch, opts.TestIgnore):
			if !passesNameFilters(path, opts.NameFilters) {
				return nil
			}
			res.TestFiles = append(res.TestFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func matches(rel, matchGlob, ignoreGlob string) bool {
	if matchGlob == "" {
		return false
	}
	ok, err := doublestar.Match(matchGlob, filepath.ToSlash(rel))
	if err != nil || !ok {
		return false
	}
	if ignoreGlob != "" {
		if ignored, err := doublestar.Match(ignoreGlob, filepath.ToSlash(rel)); err == nil && ignored {
			return false
		}
	}
	return true
}

func passesNameFilters(path string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}

// loadGitignore returns nil (meaning "ignore nothing") if root has no
// .gitignore, so discovery degrades gracefully outside a git checkout.
func loadGitignore(root string) gitignore.IgnoreMatcher {
	path := filepath.Join(root, ".gitignore")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	ig, err := gitignore.NewGitIgnore(path)
	if err != nil {
		return nil
	}
	return ig
}
