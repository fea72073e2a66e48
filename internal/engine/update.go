package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/samhoang/ashpm/internal/detect"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
)

// UpdateOptions selects what an update fetches. With neither field set the
// installed ref is re-resolved.
type UpdateOptions struct {
	Ref    string // switch to this ref
	Latest bool   // switch to the default branch or newest release
	Force  bool   // reinstall even when the locator is unchanged
}

// UpdateResult reports an update.
type UpdateResult struct {
	ID       string
	Previous registry.Package
	Package  registry.Package
	Changed  bool
	Err      error
}

func storedChoice(p registry.Package) string {
	if p.SourceKind == source.ReleaseArchive && p.AssetName != "" && p.InstalledRef != "archive" {
		return p.InstalledRef + "#" + p.AssetName
	}
	return p.InstalledRef
}

func pickUpdateRef(p registry.Package, refs []source.Ref, opts UpdateOptions) (source.Ref, error) {
	switch {
	case opts.Ref != "":
		return chooseRef(p.SourceURL, refs, opts.Ref)
	case opts.Latest && p.SourceKind == source.ReleaseArchive:
		if ref, ok := source.LatestRelease(refs, p.AssetName); ok {
			return ref, nil
		}
	case opts.Latest:
		for _, r := range refs {
			if r.Default {
				return r, nil
			}
		}
	}
	return chooseRef(p.SourceURL, refs, storedChoice(p))
}

// pinned reports whether the locator alone identifies the content: a commit
// hash or a release asset URL. A direct archive URL can serve new bytes at
// the same address.
func pinned(ref source.Ref) bool {
	return ref.Locator != "" && ref.Kind != source.RefArchive
}

// unchanged compares a fetch against the installed package, by checksum for
// sources whose locator is not pinned.
func unchanged(prev registry.Package, fetched *source.Fetched) bool {
	if fetched.Ref.Locator != prev.Locator {
		return false
	}
	if pinned(fetched.Ref) {
		return true
	}
	return fetched.Checksum != "" && fetched.Checksum == prev.Checksum
}

// Update re-resolves a package's ref and replaces its directory when the
// resolved locator differs from the installed one.
func (e *Engine) Update(ctx context.Context, id string, opts UpdateOptions) (res *UpdateResult, err error) {
	started := e.opts.Now()
	done, err := e.begin(id)
	if err != nil {
		return nil, &InstallError{Op: "update", ID: id, Err: err}
	}
	defer done()

	prev, err := e.reg.Get(id)
	if err != nil {
		return nil, err
	}
	if prev.Status == registry.StatusRemovalPending {
		return nil, &InstallError{Op: "update", ID: id, Err: ErrRemovalPending}
	}

	ev := Event{Op: "update", PackageID: id, SourceURL: prev.SourceURL, Started: started}
	defer func() {
		if res != nil {
			ev.Ref, ev.Locator, ev.Changed = res.Package.InstalledRef, res.Package.Locator, res.Changed
		}
		ev.Err = err
		e.record(ctx, ev)
	}()

	if prev.SourceKind == source.LocalLink {
		return &UpdateResult{ID: id, Previous: prev, Package: prev}, nil
	}

	loc := source.Location{URL: prev.SourceURL, Kind: prev.SourceKind}
	fetchCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	refs, err := e.src.ListRefs(fetchCtx, loc)
	if err != nil {
		return nil, err
	}
	ref, err := pickUpdateRef(prev, refs, opts)
	if err != nil {
		return nil, err
	}

	if pinned(ref) && ref.Locator == prev.Locator && !opts.Force {
		e.log.Info("up to date", "id", id, "ref", ref.ID())
		return &UpdateResult{ID: id, Previous: prev, Package: prev}, nil
	}

	staging, err := e.newStaging("update")
	if err != nil {
		return nil, &InstallError{Op: "stage", ID: id, Err: err}
	}
	defer os.RemoveAll(staging)

	fetched, err := e.src.Fetch(fetchCtx, loc, ref, filepath.Join(staging, "src"))
	if err != nil {
		return nil, err
	}
	cancel()

	if unchanged(prev, fetched) && !opts.Force {
		e.log.Info("up to date", "id", id, "ref", fetched.Ref.ID())
		return &UpdateResult{ID: id, Previous: prev, Package: prev}, nil
	}

	det := detect.Inspect(os.DirFS(fetched.Dir), detect.Hints{
		RepoName:   source.NameFromURL(prev.SourceURL),
		Forced:     detect.Type(prev.ComponentType),
		Entrypoint: prev.Name,
	})
	if det.NeedsEntrypoint() {
		return nil, &EntrypointError{URL: prev.SourceURL, Candidates: det.Candidates}
	}
	payload := filepath.Join(fetched.Dir, filepath.FromSlash(det.Root))
	if err := os.RemoveAll(filepath.Join(payload, ".git")); err != nil {
		return nil, &InstallError{Op: "stage", ID: id, Err: err}
	}

	next := prev
	next.InstalledRef = fetched.Ref.Name
	next.Locator = fetched.Ref.Locator
	next.AssetName = fetched.Ref.AssetName
	next.Checksum = fetched.Checksum
	next.LastUpdatedAt = e.opts.Now()

	extras := detect.Extras(os.DirFS(fetched.Dir), det, prev.Name)
	if err := e.place(payload, &next, fetched.Dir, extras); err != nil {
		return nil, err
	}
	e.dropPlaced(id, stale(prev.Placed, next.Placed))
	e.log.Info("updated", "id", id, "from", prev.RefLabel(), "to", next.RefLabel())
	return &UpdateResult{ID: id, Previous: prev, Package: next, Changed: true}, nil
}

// UpdateAll updates every installed package with at most Options.Parallel
// updates in flight. One failing package does not stop the others; their
// errors are joined.
func (e *Engine) UpdateAll(ctx context.Context, opts UpdateOptions) ([]UpdateResult, error) {
	var pkgs []registry.Package
	for _, p := range e.reg.All() {
		if p.Status == registry.StatusInstalled {
			pkgs = append(pkgs, p)
		}
	}
	opts.Ref = ""

	results := make([]UpdateResult, len(pkgs))
	var mu sync.Mutex
	var errs []error

	g := new(errgroup.Group)
	g.SetLimit(e.opts.Parallel)
	for i, p := range pkgs {
		g.Go(func() error {
			res, err := e.Update(ctx, p.ID, opts)
			if err != nil {
				results[i] = UpdateResult{ID: p.ID, Previous: p, Package: p, Err: err}
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}
