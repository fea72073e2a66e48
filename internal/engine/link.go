package engine

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/detect"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
	"github.com/samhoang/ashpm/internal/symlink"
)

const linkSuffix = ".ashpm-link"

// LinkRequest describes a local working copy to link into the root.
type LinkRequest struct {
	Path       string
	Type       detect.Type
	Name       string // overrides the detected name
	Entrypoint string
	Force      bool // replace an unmanaged directory at the destination
}

// LinkURL is the source URL recorded for a linked directory.
func LinkURL(dir string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}).String()
}

// Link records a local directory as a package and points its install path at
// it. The directory is never copied, so edits show up in game on reload.
// Update leaves linked packages alone and Remove deletes only the link.
func (e *Engine) Link(ctx context.Context, req LinkRequest) (pkg *registry.Package, err error) {
	started := e.opts.Now()
	dir, err := filepath.Abs(req.Path)
	if err != nil {
		return nil, &InstallError{Op: "link", ID: req.Path, Err: err}
	}
	if info, serr := os.Stat(dir); serr != nil || !info.IsDir() {
		return nil, &InstallError{Op: "link", ID: req.Path, Err: fmt.Errorf("not a directory: %s", dir)}
	}
	srcURL := LinkURL(dir)

	defer func() {
		ev := Event{Op: "link", SourceURL: srcURL, Started: started, Err: err}
		if pkg != nil {
			ev.PackageID, ev.Ref, ev.Changed = pkg.ID, pkg.InstalledRef, true
		}
		e.record(ctx, ev)
	}()

	name := req.Name
	if name == "" {
		name = filepath.Base(dir)
	}
	det := detect.Inspect(os.DirFS(dir), detect.Hints{
		RepoName:   name,
		Forced:     req.Type,
		Entrypoint: req.Entrypoint,
	})
	if det.Type == detect.Ambiguous {
		return nil, &InstallError{Op: "link", ID: srcURL, Err: ErrAmbiguousType}
	}
	if det.NeedsEntrypoint() {
		return nil, &EntrypointError{URL: srcURL, Candidates: det.Candidates}
	}
	if req.Name == "" {
		name = det.Name
	}
	name = source.SanitizeName(name)
	if name == "" {
		return nil, &InstallError{Op: "link", ID: srcURL, Err: fmt.Errorf("cannot derive a package name")}
	}

	ctype := config.ComponentType(det.Type)
	id := registry.PackageID(ctype, name)
	done, err := e.begin(id)
	if err != nil {
		return nil, &InstallError{Op: "link", ID: id, Err: err}
	}
	defer done()

	prev, gerr := e.reg.Get(id)
	if gerr == nil && prev.SourceKind != source.LocalLink {
		return nil, &InstallError{Op: "link", ID: id, Err: fmt.Errorf("%w: %s", ErrConflictingID, prev.SourceURL)}
	}
	dest := e.paths.PackageDir(ctype, name)
	if gerr != nil {
		if _, serr := os.Lstat(dest); serr == nil && !req.Force {
			return nil, &InstallError{Op: "link", ID: id, Err: fmt.Errorf("%w: %s", ErrDestinationExists, dest)}
		}
	}

	target := filepath.Join(dir, filepath.FromSlash(det.Root))
	now := e.opts.Now()
	next := registry.Package{
		ID:            id,
		Name:          name,
		SourceURL:     srcURL,
		SourceKind:    source.LocalLink,
		ComponentType: ctype,
		InstalledRef:  "local",
		InstallPath:   dest,
		Status:        registry.StatusInstalled,
		InstalledAt:   now,
		LastUpdatedAt: now,
	}
	if gerr == nil {
		next.InstalledAt = prev.InstalledAt
		next.Extra = prev.Extra
	}

	err = e.withIDLock(id, func() error {
		// The link is made next to dest so a relative target stays valid
		// after the rename.
		staged := dest + linkSuffix
		if err := removeAll(staged); err != nil {
			return err
		}
		if err := symlink.Create(staged, target); err != nil {
			return &InstallError{Op: "link", ID: id, Err: err}
		}
		commit, rollback, err := promote(staged, dest)
		if err != nil {
			_ = os.Remove(staged)
			return &InstallError{Op: "link", ID: id, Err: err}
		}
		if err := e.reg.Upsert(next); err != nil {
			if rerr := rollback(); rerr != nil {
				e.log.Error("rollback after registry failure", "id", id, "err", rerr)
			}
			return err
		}
		commit()
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("linked", "id", id, "path", dest, "target", target)
	return &next, nil
}
