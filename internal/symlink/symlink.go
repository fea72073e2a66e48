// Package symlink creates and inspects the directory links that put a local
// working copy in place of an installed addon or plugin.
package symlink

import (
	"os"
	"path/filepath"
)

// Info describes a path that may be a link
type Info struct {
	Path      string
	Target    string // absolute link target
	Exists    bool
	IsSymlink bool
	IsBroken  bool
}

// Create makes path a link to the directory target, creating path's parent.
func Create(path, target string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return createSymlink(path, target)
}

// Remove removes a link, never its target.
func Remove(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return &os.PathError{Op: "remove", Path: path, Err: os.ErrInvalid}
	}
	return os.Remove(path)
}

// Inspect returns information about path without following it.
func Inspect(path string) (*Info, error) {
	info := &Info{Path: path}
	linfo, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return info, nil
	}
	if err != nil {
		return nil, err
	}
	info.Exists = true
	info.IsSymlink = linfo.Mode()&os.ModeSymlink != 0
	if !info.IsSymlink {
		return info, nil
	}

	target, err := os.Readlink(path)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	info.Target = filepath.Clean(target)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		info.IsBroken = true
	}
	return info, nil
}

// Points reports whether path is a link resolving to target.
func Points(path, target string) (bool, error) {
	info, err := Inspect(path)
	if err != nil || !info.IsSymlink {
		return false, err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return false, err
	}
	return info.Target == filepath.Clean(abs), nil
}
