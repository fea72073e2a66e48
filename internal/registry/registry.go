package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/fileutil"
)

// SchemaVersion is the registry format version written by this build
const SchemaVersion = 1

// Registry is the in-memory view of packages.toml. Every mutation re-reads
// the file under an exclusive lock, applies the change and writes it back
// atomically.
type Registry struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	packages map[string]Package
	version  int
	extra    map[string]any // unknown top-level keys
}

type document struct {
	SchemaVersion int       `toml:"schema_version"`
	Packages      []Package `toml:"packages"`
}

// Open loads the registry at path. A missing file is an empty registry. A
// corrupt file is moved aside to <path>.corrupt and Open returns a usable empty
// registry together with an error matching ErrCorrupt.
func Open(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Registry{
		path:     path,
		logger:   logger,
		packages: make(map[string]Package),
		version:  SchemaVersion,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &RegistryError{Op: "open", ID: path, Err: err}
	}
	err := fileutil.WithLock(r.lockPath(), r.load)
	if errors.Is(err, ErrCorrupt) {
		aside := path + ".corrupt"
		if rerr := os.Rename(path, aside); rerr != nil {
			logger.Error("could not move corrupt registry aside", "path", path, "err", rerr)
		} else {
			logger.Warn("corrupt registry moved aside, starting empty", "path", aside)
		}
		r.packages = make(map[string]Package)
		r.version = SchemaVersion
		r.extra = nil
		return r, err
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

func (r *Registry) lockPath() string {
	return r.path + ".lock"
}

// load replaces the in-memory state with the file contents. Callers hold the
// file lock.
func (r *Registry) load() error {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		r.mu.Lock()
		r.packages = make(map[string]Package)
		r.mu.Unlock()
		return nil
	}
	if err != nil {
		return &RegistryError{Op: "read", ID: r.path, Err: err}
	}

	packages, version, extra, err := decode(data)
	if err != nil {
		return &RegistryError{Op: "parse", ID: r.path, Err: fmt.Errorf("%w: %v", ErrCorrupt, err)}
	}
	if version > SchemaVersion {
		r.logger.Warn("registry written by a newer version; unknown fields are preserved", "version", version)
	}

	r.mu.Lock()
	r.packages = packages
	r.version = max(version, SchemaVersion)
	r.extra = extra
	r.mu.Unlock()
	return nil
}

func decode(data []byte) (map[string]Package, int, map[string]any, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, 0, nil, err
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, 0, nil, err
	}

	extra := make(map[string]any)
	for k, v := range raw {
		if k != "schema_version" && k != "packages" {
			extra[k] = v
		}
	}
	rawPackages, _ := raw["packages"].([]any)

	known := knownKeys()
	packages := make(map[string]Package, len(doc.Packages))
	for i, p := range doc.Packages {
		if err := p.validate(); err != nil {
			return nil, 0, nil, fmt.Errorf("package %d: %w", i, err)
		}
		if _, dup := packages[p.ID]; dup {
			return nil, 0, nil, fmt.Errorf("duplicate package id %q", p.ID)
		}
		if p.Status == "" {
			p.Status = StatusInstalled
		}
		if i < len(rawPackages) {
			if fields, ok := rawPackages[i].(map[string]any); ok {
				for k, v := range fields {
					if !known[k] {
						if p.Extra == nil {
							p.Extra = make(map[string]any)
						}
						p.Extra[k] = v
					}
				}
			}
		}
		packages[p.ID] = p
	}
	if len(extra) == 0 {
		extra = nil
	}
	return packages, doc.SchemaVersion, extra, nil
}

func (r *Registry) encode() ([]byte, error) {
	doc := make(map[string]any, len(r.extra)+2)
	for k, v := range r.extra {
		doc[k] = v
	}
	doc["schema_version"] = r.version

	rows := make([]map[string]any, 0, len(r.packages))
	for _, p := range sortedPackages(r.packages) {
		row, err := p.fields()
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	doc["packages"] = rows
	return toml.Marshal(doc)
}

// fields flattens p into a key/value map with its extra fields merged in.
func (p Package) fields() (map[string]any, error) {
	data, err := toml.Marshal(p)
	if err != nil {
		return nil, err
	}
	var row map[string]any
	if err := toml.Unmarshal(data, &row); err != nil {
		return nil, err
	}
	for k, v := range p.Extra {
		if _, ok := row[k]; !ok {
			row[k] = v
		}
	}
	return row, nil
}

var (
	knownOnce sync.Once
	known     map[string]bool
)

func knownKeys() map[string]bool {
	knownOnce.Do(func() {
		known = make(map[string]bool)
		t := reflect.TypeOf(Package{})
		for i := 0; i < t.NumField(); i++ {
			name, _, _ := strings.Cut(t.Field(i).Tag.Get("toml"), ",")
			if name != "" && name != "-" {
				known[name] = true
			}
		}
	})
	return known
}

func sortedPackages(m map[string]Package) []Package {
	out := make([]Package, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// mutate runs the read-modify-write-persist sequence under the file lock.
// The in-memory state only changes when the write succeeds.
func (r *Registry) mutate(op, id string, fn func(packages map[string]Package) error) error {
	return fileutil.WithLock(r.lockPath(), func() error {
		if err := r.load(); err != nil {
			return err
		}

		r.mu.RLock()
		next := make(map[string]Package, len(r.packages))
		for k, v := range r.packages {
			next[k] = v
		}
		r.mu.RUnlock()

		if err := fn(next); err != nil {
			return err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		prev := r.packages
		r.packages = next
		data, err := r.encode()
		if err == nil {
			err = fileutil.WriteFileAtomic(r.path, data, 0o644)
		}
		if err != nil {
			r.packages = prev
			return &RegistryError{Op: op, ID: id, Err: err}
		}
		return nil
	})
}

// All returns every package sorted by id.
func (r *Registry) All() []Package {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedPackages(r.packages)
}

// Get returns the package with id.
func (r *Registry) Get(id string) (Package, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.packages[id]
	if !ok {
		return Package{}, &RegistryError{Op: "get", ID: id, Err: ErrNotFound}
	}
	return p, nil
}

// Has reports whether id is recorded.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.packages[id]
	return ok
}

// FindBySource returns the package installed from url as type t.
func (r *Registry) FindBySource(url string, t config.ComponentType) (Package, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.packages {
		if p.SourceURL == url && p.ComponentType == t {
			return p, true
		}
	}
	return Package{}, false
}

// Upsert inserts or replaces p. Its install path must not overlap the path of
// any other package.
func (r *Registry) Upsert(p Package) error {
	if p.Status == "" {
		p.Status = StatusInstalled
	}
	if err := p.validate(); err != nil {
		return err
	}
	return r.mutate("upsert", p.ID, func(packages map[string]Package) error {
		for id, other := range packages {
			if id != p.ID && nested(other.InstallPath, p.InstallPath) {
				return &RegistryError{Op: "upsert", ID: p.ID, Err: fmt.Errorf("%w: %s", ErrPathConflict, id)}
			}
		}
		packages[p.ID] = p
		return nil
	})
}

// SetStatus changes the status of an existing package.
func (r *Registry) SetStatus(id string, status Status) error {
	return r.mutate("set status", id, func(packages map[string]Package) error {
		p, ok := packages[id]
		if !ok {
			return &RegistryError{Op: "set status", ID: id, Err: ErrNotFound}
		}
		p.Status = status
		packages[id] = p
		return nil
	})
}

// Delete removes the package with id.
func (r *Registry) Delete(id string) error {
	return r.mutate("delete", id, func(packages map[string]Package) error {
		if _, ok := packages[id]; !ok {
			return &RegistryError{Op: "delete", ID: id, Err: ErrNotFound}
		}
		delete(packages, id)
		return nil
	})
}

// Reload re-reads the file, picking up changes from other processes.
func (r *Registry) Reload() error {
	return fileutil.WithLock(r.lockPath(), r.load)
}
