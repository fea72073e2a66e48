package script

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samhoang/ashpm/internal/fileutil"
)

// Lookup answers whether a package id is installed. *registry.Registry
// implements it.
type Lookup interface {
	Has(id string) bool
}

// SaveResult carries the warnings of a save. Orphaned references do not stop
// a save.
type SaveResult struct {
	Warnings []error
}

// MarkOrphans flags load entries whose package is not in lookup and returns a
// warning for each.
func (s *Script) MarkOrphans(lookup Lookup) []error {
	var warnings []error
	for i := range s.lines {
		l := &s.lines[i]
		l.orphaned = false
		if l.stmt == nil || lookup == nil {
			continue
		}
		if l.stmt.kind != PluginLoad && l.stmt.kind != AddonLoad {
			continue
		}
		id := string(l.stmt.kind) + "/" + strings.ToLower(l.stmt.target)
		if !lookup.Has(id) {
			l.orphaned = true
			warnings = append(warnings, &ScriptError{Line: i + 1, Text: id, Err: ErrOrphanedReference})
		}
	}
	return warnings
}

// Store reads and writes one script file. Writes are atomic and mutations run
// under an exclusive lock on a sidecar file.
type Store struct {
	path string
}

// NewStore creates a store for the script at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the script path.
func (st *Store) Path() string {
	return st.path
}

func (st *Store) lockPath() string {
	return filepath.Join(filepath.Dir(st.path), "."+filepath.Base(st.path)+".lock")
}

// Load parses the script. A missing file yields the default layout.
func (st *Store) Load() (*Script, error) {
	data, err := os.ReadFile(st.path)
	if os.IsNotExist(err) {
		return NewDefault(), nil
	}
	if err != nil {
		return nil, err
	}
	return Parse(string(data)), nil
}

// Save writes s and reports orphaned load entries.
func (st *Store) Save(s *Script, lookup Lookup) (*SaveResult, error) {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return nil, err
	}
	var res *SaveResult
	err := fileutil.WithLock(st.lockPath(), func() error {
		var err error
		res, err = st.save(s, lookup)
		return err
	})
	return res, err
}

func (st *Store) save(s *Script, lookup Lookup) (*SaveResult, error) {
	warnings := s.MarkOrphans(lookup)
	if err := fileutil.WriteFileAtomic(st.path, []byte(s.String()), 0o644); err != nil {
		return nil, err
	}
	return &SaveResult{Warnings: warnings}, nil
}

// Update loads the script, applies fn and saves the result, all under the
// lock. Nothing is written when fn fails.
func (st *Store) Update(lookup Lookup, fn func(*Script) error) (*Script, *SaveResult, error) {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o755); err != nil {
		return nil, nil, err
	}
	var (
		s   *Script
		res *SaveResult
	)
	err := fileutil.WithLock(st.lockPath(), func() error {
		var err error
		if s, err = st.Load(); err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		res, err = st.save(s, lookup)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return s, res, nil
}

// ListScripts returns the .txt scripts in dir, sorted.
func ListScripts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
