package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/detect"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
)

// Method forces how a source is retrieved.
type Method string

const (
	MethodAuto    Method = ""
	MethodClone   Method = "clone"
	MethodRelease Method = "release"
)

// ParseMethod parses auto, clone or release.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "auto":
		return MethodAuto, nil
	case "clone", "git":
		return MethodClone, nil
	case "release":
		return MethodRelease, nil
	}
	return "", fmt.Errorf("unknown install method %q (want auto, clone or release)", s)
}

// Request describes an install.
type Request struct {
	URL        string
	Type       detect.Type // detect.Ambiguous runs detection
	Method     Method
	Ref        string // ref id or name; required when the source has several refs
	Entrypoint string // main .lua file when the addon name cannot be inferred
	Force      bool   // replace an unmanaged directory at the destination
}

// Proposal is the first phase of an install: what could be installed.
type Proposal struct {
	Location source.Location
	Refs     []source.Ref
	Existing *registry.Package // installed from the same URL, if any
}

// NeedsChoice reports whether Install will require a ref choice.
func (p *Proposal) NeedsChoice() bool {
	return len(p.Refs) > 1
}

func (e *Engine) locate(req Request) (source.Location, error) {
	loc, err := e.src.Classify(req.URL)
	if err != nil {
		return source.Location{}, err
	}
	switch req.Method {
	case MethodClone:
		loc = loc.Force(source.VersionControlled)
	case MethodRelease:
		loc = loc.Force(source.ReleaseArchive)
	}
	return loc, nil
}

func (e *Engine) existing(url string, t detect.Type) *registry.Package {
	types := config.AllComponentTypes()
	if t == detect.Addon || t == detect.Plugin {
		types = []config.ComponentType{config.ComponentType(t)}
	}
	for _, ct := range types {
		if p, ok := e.reg.FindBySource(url, ct); ok {
			return &p
		}
	}
	return nil
}

// Propose classifies the URL and lists its refs without writing anything.
func (e *Engine) Propose(ctx context.Context, req Request) (*Proposal, error) {
	loc, err := e.locate(req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	refs, err := e.src.ListRefs(ctx, loc)
	if err != nil {
		return nil, err
	}
	return &Proposal{Location: loc, Refs: refs, Existing: e.existing(loc.URL, req.Type)}, nil
}

func chooseRef(url string, refs []source.Ref, choice string) (source.Ref, error) {
	if choice == "" {
		if len(refs) == 1 {
			return refs[0], nil
		}
		return source.Ref{}, &RefChoiceError{URL: url, Refs: refs}
	}
	ref, ok := source.SelectRef(refs, choice)
	if !ok {
		return source.Ref{}, &source.SourceError{Op: "select ref", URL: url, Kind: source.ErrRefNotFound, Err: fmt.Errorf("%q", choice)}
	}
	return ref, nil
}

// Install fetches, detects, places and records a package. Re-installing a URL
// that is already recorded updates that record in place.
func (e *Engine) Install(ctx context.Context, req Request) (pkg *registry.Package, err error) {
	started := e.opts.Now()
	loc, err := e.locate(req)
	if err != nil {
		return nil, err
	}

	keys := []string{"url:" + loc.URL}
	if prev := e.existing(loc.URL, req.Type); prev != nil {
		keys = append(keys, prev.ID)
	}
	done, err := e.begin(keys...)
	if err != nil {
		return nil, &InstallError{Op: "install", ID: loc.URL, Err: err}
	}
	defer done()

	ev := Event{Op: "install", SourceURL: loc.URL, Started: started}
	defer func() {
		if pkg != nil {
			ev.PackageID, ev.Ref, ev.Locator, ev.Changed = pkg.ID, pkg.InstalledRef, pkg.Locator, true
		}
		ev.Err = err
		if !errors.Is(err, ErrRefChoiceRequired) && !errors.Is(err, ErrOperationInProgress) {
			e.record(ctx, ev)
		}
	}()

	fetchCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	refs, err := e.src.ListRefs(fetchCtx, loc)
	if err != nil {
		return nil, err
	}
	ref, err := chooseRef(loc.URL, refs, req.Ref)
	if err != nil {
		return nil, err
	}

	staging, err := e.newStaging("install")
	if err != nil {
		return nil, &InstallError{Op: "stage", ID: loc.URL, Err: err}
	}
	defer os.RemoveAll(staging)

	fetched, err := e.src.Fetch(fetchCtx, loc, ref, filepath.Join(staging, "src"))
	if err != nil {
		return nil, err
	}
	cancel()

	det := detect.Inspect(os.DirFS(fetched.Dir), detect.Hints{
		RepoName:   source.NameFromURL(loc.URL),
		Forced:     req.Type,
		Entrypoint: req.Entrypoint,
	})
	if det.Type == detect.Ambiguous {
		return nil, &InstallError{Op: "detect", ID: loc.URL, Err: ErrAmbiguousType}
	}
	if det.NeedsEntrypoint() {
		return nil, &EntrypointError{URL: loc.URL, Candidates: det.Candidates}
	}
	ctype := config.ComponentType(det.Type)
	if req.Type != detect.Ambiguous && det.Type != req.Type {
		e.log.Warn("forced type differs from detected layout", "url", loc.URL, "forced", req.Type, "detected", det.Type)
	}

	id, name, prev, err := e.identify(loc.URL, ctype, det.Name)
	if err != nil {
		return nil, err
	}
	dest := e.paths.PackageDir(ctype, name)

	if prev == nil {
		if _, statErr := os.Stat(dest); statErr == nil && !req.Force {
			return nil, &InstallError{Op: "install", ID: id, Err: fmt.Errorf("%w: %s", ErrDestinationExists, dest)}
		}
	}

	if id != "" && (prev == nil || prev.ID != id) {
		release, berr := e.begin(id)
		if berr != nil {
			return nil, &InstallError{Op: "install", ID: id, Err: berr}
		}
		defer release()
	}

	payload := filepath.Join(fetched.Dir, filepath.FromSlash(det.Root))
	if err := os.RemoveAll(filepath.Join(payload, ".git")); err != nil {
		return nil, &InstallError{Op: "stage", ID: id, Err: err}
	}

	now := e.opts.Now()
	next := registry.Package{
		ID:            id,
		Name:          name,
		SourceURL:     loc.URL,
		SourceKind:    loc.Kind,
		ComponentType: ctype,
		InstalledRef:  fetched.Ref.Name,
		Locator:       fetched.Ref.Locator,
		AssetName:     fetched.Ref.AssetName,
		Checksum:      fetched.Checksum,
		InstallPath:   dest,
		Status:        registry.StatusInstalled,
		InstalledAt:   now,
		LastUpdatedAt: now,
	}
	if prev != nil {
		next.InstalledAt = prev.InstalledAt
		next.Extra = prev.Extra
	}

	extras := detect.Extras(os.DirFS(fetched.Dir), det, name)
	if err := e.place(payload, &next, fetched.Dir, extras); err != nil {
		return nil, err
	}
	if prev != nil {
		e.dropPlaced(id, stale(prev.Placed, next.Placed))
	}
	e.log.Info("installed", "id", id, "ref", fetched.Ref.ID(), "path", dest)
	return &next, nil
}

// identify picks the package id. A URL already recorded for the type keeps
// its id and name; otherwise the id comes from the detected name and must not
// belong to a different source.
func (e *Engine) identify(url string, t config.ComponentType, detected string) (string, string, *registry.Package, error) {
	if p, ok := e.reg.FindBySource(url, t); ok {
		return p.ID, p.Name, &p, nil
	}

	name := source.SanitizeName(detected)
	if name == "" {
		name = source.NameFromURL(url)
	}
	if name == "" {
		return "", "", nil, &InstallError{Op: "install", ID: url, Err: fmt.Errorf("cannot derive a package name")}
	}
	id := registry.PackageID(t, name)
	if other, err := e.reg.Get(id); err == nil {
		return "", "", nil, &InstallError{Op: "install", ID: id, Err: fmt.Errorf("%w: %s", ErrConflictingID, other.SourceURL)}
	}
	return id, name, nil, nil
}

// place promotes payload into pkg.InstallPath, moves the companion folders
// listed in extras out of tree and records pkg with the placed paths. If a
// later step fails the directory swaps are undone.
func (e *Engine) place(payload string, pkg *registry.Package, tree string, extras []detect.Extra) error {
	return e.withIDLock(pkg.ID, func() error {
		commit, rollback, err := promote(payload, pkg.InstallPath)
		if err != nil {
			return &InstallError{Op: "place", ID: pkg.ID, Err: err}
		}
		undo := func(pl *placement, cause string) {
			if rerr := errors.Join(pl.rollback(), rollback()); rerr != nil {
				e.log.Error("rollback after "+cause, "id", pkg.ID, "err", rerr)
			}
		}

		pl, err := e.placeExtras(tree, extras, pkg.ID)
		if err != nil {
			undo(pl, "companion failure")
			return &InstallError{Op: "place", ID: pkg.ID, Err: err}
		}
		pkg.Placed = pl.paths
		if err := e.reg.Upsert(*pkg); err != nil {
			undo(pl, "registry failure")
			return err
		}
		pl.commit()
		commit()
		return nil
	})
}
