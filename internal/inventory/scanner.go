// Package inventory finds addons and plugins already present under the
// managed root and seeds the registry with them on first run.
package inventory

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/detect"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
)

// Found is an addon or plugin present on disk.
type Found struct {
	Name   string
	Type   config.ComponentType
	Path   string
	IsDir  bool
	Remote string // origin URL when the directory is a git checkout
	Branch string
	Head   string
}

// ID returns the registry id the item would get.
func (f Found) ID() string {
	return registry.PackageID(f.Type, f.Name)
}

// Scanner walks the component directories of a managed root.
type Scanner struct{}

// NewScanner creates a new Scanner
func NewScanner() *Scanner {
	return &Scanner{}
}

// Scan returns every addon and plugin under root, sorted by id.
func (s *Scanner) Scan(root string) ([]Found, error) {
	var found []Found
	for _, t := range config.AllComponentTypes() {
		dir := filepath.Join(root, t.Dir())
		items, err := s.scanTypeDir(dir, t)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		found = append(found, items...)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].ID() < found[j].ID() })
	return found, nil
}

func (s *Scanner) scanTypeDir(dir string, t config.ComponentType) ([]Found, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var items []Found
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(dir, name)

		if !entry.IsDir() {
			// stock plugins ship as bare dlls next to each other
			if t == config.Plugin && strings.EqualFold(filepath.Ext(name), ".dll") {
				items = append(items, Found{Name: strings.TrimSuffix(name, filepath.Ext(name)), Type: t, Path: path})
			}
			continue
		}
		if t == config.Addon && strings.EqualFold(name, "libs") {
			continue
		}

		d := detect.Inspect(os.DirFS(path), detect.Hints{RepoName: name})
		if d.Type != detect.Type(t) && len(d.Candidates) == 0 {
			continue
		}
		item := Found{Name: source.SanitizeName(name), Type: t, Path: path, IsDir: true}
		readGit(path, &item)
		items = append(items, item)
	}
	return items, nil
}

// readGit fills in the origin remote and HEAD of a git checkout.
func readGit(path string, item *Found) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return
	}
	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		item.Remote = remote.Config().URLs[0]
	}
	if head, err := repo.Head(); err == nil {
		item.Head = head.Hash().String()
		if head.Name().IsBranch() {
			item.Branch = head.Name().Short()
		}
	}
}

// SeedResult reports what Seed did.
type SeedResult struct {
	Added   []string
	Skipped []string // already registered or not manageable
}

// Seed records found items that the registry does not know yet. Items
// without a git origin are recorded with a file URL and cannot be updated.
// Bare plugin files are skipped.
func Seed(reg *registry.Registry, found []Found, now time.Time) (*SeedResult, error) {
	res := &SeedResult{}
	known := make(map[string]bool)
	for _, p := range reg.All() {
		known[filepath.Clean(p.InstallPath)] = true
	}

	var errs []error
	for _, f := range found {
		if !f.IsDir || reg.Has(f.ID()) || known[filepath.Clean(f.Path)] {
			res.Skipped = append(res.Skipped, f.ID())
			continue
		}
		pkg := registry.Package{
			ID:            f.ID(),
			Name:          f.Name,
			ComponentType: f.Type,
			InstallPath:   f.Path,
			Status:        registry.StatusInstalled,
			InstalledAt:   now,
			LastUpdatedAt: now,
		}
		if loc, err := source.Classify(f.Remote); f.Remote != "" && err == nil {
			pkg.SourceURL, pkg.SourceKind = loc.URL, source.VersionControlled
			pkg.InstalledRef, pkg.Locator = f.Branch, f.Head
		} else {
			pkg.SourceURL = "file://" + filepath.ToSlash(f.Path)
		}
		if err := reg.Upsert(pkg); err != nil {
			if errors.Is(err, registry.ErrPathConflict) {
				res.Skipped = append(res.Skipped, f.ID())
				continue
			}
			errs = append(errs, err)
			continue
		}
		res.Added = append(res.Added, f.ID())
	}
	return res, errors.Join(errs...)
}
