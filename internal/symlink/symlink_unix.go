//go:build !windows

package symlink

import (
	"os"
	"path/filepath"
)

// createSymlink uses a relative target so the root can be moved as a whole.
func createSymlink(path, target string) error {
	rel, err := filepath.Rel(filepath.Dir(path), target)
	if err != nil {
		rel = target
	}
	return os.Symlink(rel, path)
}
