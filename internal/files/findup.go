package files

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindUp searches dir and its ancestors for an entry with the given name,
// returning its path, or "" if no ancestor contains it.
func FindUp(name, dir string) string {
	curDir := dir
	for {
		entries, err := os.ReadDir(curDir)
		if err != nil {
			return ""
		}
		for _, e := range entries {
			if name == e.Name() {
				return filepath.Join(curDir, name)
			}
		}
		newDir := filepath.Dir(curDir)
		if newDir == curDir {
			return ""
		}
		curDir = newDir
	}
}

// ResolveFromModuleRoot resolves a path against the nearest ancestor of
// startDir containing a go.mod file. Absolute paths pass through unchanged.
// Mount sources in cluster specs use this so tests can reference resources
// relative to their repository regardless of the test's working directory.
func ResolveFromModuleRoot(path, startDir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	modFile := FindUp("go.mod", startDir)
	if modFile == "" {
		return "", fmt.Errorf("no go.mod found above %s to resolve %q against", startDir, path)
	}
	return filepath.Join(filepath.Dir(modFile), path), nil
}
