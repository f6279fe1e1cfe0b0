package discovery

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/mod/modfile"
)

// ModuleRoot walks upward from dir looking for a go.mod, the same way the
// go command itself resolves a package's module. It returns the
// directory containing go.mod and the module path declared in it.
//
// Discover records this root and module path in its Result; the fixture
// and test file paths it reports stay joined onto the directory it walked
// and are not rewritten relative to this root.
func ModuleRoot(dir string) (root, modulePath string, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", fmt.Errorf("resolving module root: %w", err)
	}
	for cur := abs; ; {
		gomod := filepath.Join(cur, "go.mod")
		if data, readErr := os.ReadFile(gomod); readErr == nil {
			mf, parseErr := modfile.Parse(gomod, data, nil)
			if parseErr != nil {
				return "", "", fmt.Errorf("parsing %s: %w", gomod, parseErr)
			}
			modulePath := ""
			if mf.Module != nil {
				modulePath = mf.Module.Mod.Path
			}
			return cur, modulePath, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", "", fmt.Errorf("no go.mod found above %s", abs)
		}
		cur = parent
	}
}

// ModuleRelativeID returns path's slash-separated form relative to root.
func ModuleRelativeID(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
