package fileutil

import (
	"os"
	"path/filepath"
)

// Listing returns every path under root (relative, slash separated) with its
// size, for before/after comparisons of a directory tree.
func Listing(root string) (map[string]int64, error) {
	out := make(map[string]int64)
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		var size int64 = -1
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			size = info.Size()
		}
		out[filepath.ToSlash(rel)] = size
		return nil
	})
	if os.IsNotExist(err) {
		return out, nil
	}
	return out, err
}
