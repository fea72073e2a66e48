package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samhoang/ashpm/internal/detect"
)

// placement tracks companion folders moved under the root for one package.
// Owned folders are swapped with a backup; merged files overwrite shared
// folders and are not restored on rollback.
type placement struct {
	paths     []string
	commits   []func()
	rollbacks []func() error
}

func (p *placement) commit() {
	for _, c := range p.commits {
		c()
	}
}

func (p *placement) rollback() error {
	var errs []error
	for i := len(p.rollbacks) - 1; i >= 0; i-- {
		errs = append(errs, p.rollbacks[i]())
	}
	return errors.Join(errs...)
}

// placeExtras moves the companions of a fetched tree into place.
func (e *Engine) placeExtras(tree string, extras []detect.Extra, owner string) (*placement, error) {
	pl := &placement{}
	for _, x := range extras {
		src := filepath.Join(tree, filepath.FromSlash(x.Src))
		dest := e.paths.Placed(x.Dest)
		if !x.Merge {
			commit, rollback, err := promote(src, dest)
			if err != nil {
				return pl, fmt.Errorf("place %s: %w", x.Dest, err)
			}
			pl.paths = append(pl.paths, x.Dest)
			pl.commits = append(pl.commits, commit)
			pl.rollbacks = append(pl.rollbacks, rollback)
			continue
		}

		claimed := e.placedByOthers(owner)
		err := filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if strings.HasPrefix(d.Name(), ".") && p != src {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(src, p)
			if err != nil {
				return err
			}
			slashed := path.Join(x.Dest, filepath.ToSlash(rel))
			if by, ok := claimed[slashed]; ok {
				e.log.Warn("shared file also placed by another package", "path", slashed, "owner", by)
			}
			target := filepath.Join(dest, rel)
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := osRename(p, target); err != nil {
				return err
			}
			pl.paths = append(pl.paths, slashed)
			return nil
		})
		if err != nil {
			return pl, fmt.Errorf("merge %s: %w", x.Dest, err)
		}
	}
	return pl, nil
}

// placedByOthers maps companion paths to the package that placed them,
// skipping owner.
func (e *Engine) placedByOthers(owner string) map[string]string {
	claimed := make(map[string]string)
	for _, p := range e.reg.All() {
		if p.ID == owner {
			continue
		}
		for _, rel := range p.Placed {
			claimed[rel] = p.ID
		}
	}
	return claimed
}

// dropPlaced deletes companion paths of owner that no other package placed
// as well. Failures are logged; the package itself is already gone or
// replaced.
func (e *Engine) dropPlaced(owner string, paths []string) {
	claimed := e.placedByOthers(owner)
	for _, rel := range paths {
		if _, ok := claimed[rel]; ok {
			continue
		}
		if err := e.discard(e.paths.Placed(rel)); err != nil {
			e.log.Warn("companion not removed", "id", owner, "path", rel, "err", err)
		}
	}
}

// stale returns the entries of prev missing from next.
func stale(prev, next []string) []string {
	var out []string
	for _, p := range prev {
		if !slices.Contains(next, p) {
			out = append(out, p)
		}
	}
	return out
}
