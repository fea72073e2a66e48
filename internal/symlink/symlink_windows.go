//go:build windows

package symlink

import (
	"os"
	"path/filepath"
)

// createSymlink makes a directory symlink with an absolute target. It needs
// Developer Mode or an elevated shell.
func createSymlink(path, target string) error {
	abs, err := filepath.Abs(target)
	if err != nil {
		return err
	}
	return os.Symlink(abs, path)
}
