package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/registry"
)

// Remove deletes a package's directory, then its record and the companion
// folders no other package placed. When the
// directory cannot be removed the record stays, marked removal pending, and a
// later Remove retries.
func (e *Engine) Remove(ctx context.Context, id string) (err error) {
	started := e.opts.Now()
	done, err := e.begin(id)
	if err != nil {
		return &InstallError{Op: "remove", ID: id, Err: err}
	}
	defer done()

	pkg, err := e.reg.Get(id)
	if err != nil {
		return err
	}
	defer func() {
		e.record(ctx, Event{Op: "remove", PackageID: id, SourceURL: pkg.SourceURL, Ref: pkg.InstalledRef, Locator: pkg.Locator, Changed: err == nil, Err: err, Started: started})
	}()

	err = e.withIDLock(id, func() error {
		return e.discard(pkg.InstallPath)
	})
	if err != nil {
		e.log.Warn("package directory not removed", "id", id, "path", pkg.InstallPath, "err", err)
		if serr := e.reg.SetStatus(id, registry.StatusRemovalPending); serr != nil {
			return errors.Join(&InstallError{Op: "remove", ID: id, Err: ErrRemovalPending}, err, serr)
		}
		return &InstallError{Op: "remove", ID: id, Err: errors.Join(ErrRemovalPending, err)}
	}

	if err := e.reg.Delete(id); err != nil {
		return err
	}
	e.dropPlaced(id, pkg.Placed)
	e.log.Info("removed", "id", id)
	return nil
}

// discard moves dir into staging and deletes it there. The rename makes the
// package disappear from the loader in one step; leftovers in staging are
// swept by Recover.
func (e *Engine) discard(dir string) error {
	if _, err := os.Lstat(dir); os.IsNotExist(err) {
		return nil
	}
	trash, err := e.newStaging("trash")
	if err != nil {
		return err
	}
	target := filepath.Join(trash, filepath.Base(dir))
	if err := osRename(dir, target); err != nil {
		_ = os.Remove(trash)
		return err
	}
	if err := removeAll(trash); err != nil {
		e.log.Warn("could not clear removed package from staging", "path", trash, "err", err)
	}
	return nil
}

// RecoverReport lists what Recover repaired.
type RecoverReport struct {
	Restored []string // package directories restored from a backup
	Cleaned  []string // stale staging entries and backups deleted
}

// Recover repairs the managed root after an interrupted operation: a backup
// whose package directory is missing is moved back, other backups and
// half-made links are deleted, and staging entries older than an hour are
// swept.
func (e *Engine) Recover() (*RecoverReport, error) {
	report := &RecoverReport{}
	var errs []error

	dirs := e.paths.CompanionDirs()
	for _, t := range config.AllComponentTypes() {
		dirs = append(dirs, e.paths.ComponentDir(t))
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				errs = append(errs, err)
			}
			continue
		}
		for _, entry := range entries {
			if strings.HasSuffix(entry.Name(), linkSuffix) {
				stale := filepath.Join(dir, entry.Name())
				if err := os.Remove(stale); err != nil {
					errs = append(errs, err)
					continue
				}
				report.Cleaned = append(report.Cleaned, stale)
				continue
			}
			if !strings.HasSuffix(entry.Name(), backupSuffix) {
				continue
			}
			backup := filepath.Join(dir, entry.Name())
			dest := strings.TrimSuffix(backup, backupSuffix)
			if _, err := os.Lstat(dest); os.IsNotExist(err) {
				if err := osRename(backup, dest); err != nil {
					errs = append(errs, err)
					continue
				}
				report.Restored = append(report.Restored, dest)
				e.log.Warn("restored package directory from backup", "path", dest)
				continue
			}
			if err := removeAll(backup); err != nil {
				errs = append(errs, err)
				continue
			}
			report.Cleaned = append(report.Cleaned, backup)
		}
	}

	entries, err := os.ReadDir(e.paths.StagingDir())
	if err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	cutoff := e.opts.Now().Add(-staleAfter)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(e.paths.StagingDir(), entry.Name())
		if err := removeAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		report.Cleaned = append(report.Cleaned, path)
	}

	return report, errors.Join(errs...)
}
