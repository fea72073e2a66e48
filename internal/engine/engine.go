// Package engine installs, updates and removes packages. It ties the source
// resolver, the type detector and the registry together and owns every write
// under the managed root. Content is always fetched into staging and promoted
// with renames, so an interrupted operation leaves either the old or the new
// package directory in place.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/fileutil"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/source"
)

// Source lists and fetches refs. *source.Resolver implements it.
type Source interface {
	Classify(raw string) (source.Location, error)
	ListRefs(ctx context.Context, loc source.Location) ([]source.Ref, error)
	Fetch(ctx context.Context, loc source.Location, ref source.Ref, destPath string) (*source.Fetched, error)
}

// Recorder receives an event for every finished operation.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Event describes one finished operation.
type Event struct {
	Op        string // install, update, remove
	PackageID string
	SourceURL string
	Ref       string
	Locator   string
	Changed   bool
	Err       error
	Started   time.Time
	Duration  time.Duration
}

// Options tunes an Engine.
type Options struct {
	FetchTimeout time.Duration // bound for list+fetch, 0 means none
	Parallel     int           // concurrency of UpdateAll
	Recorder     Recorder
	Logger       *slog.Logger
	Now          func() time.Time
}

var (
	osRename  = os.Rename
	removeAll = os.RemoveAll
)

const (
	backupSuffix = ".ashpm-old"
	staleAfter   = time.Hour
)

// Engine performs package operations under one managed root.
type Engine struct {
	paths *config.Paths
	src   Source
	reg   *registry.Registry
	opts  Options
	log   *slog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an engine.
func New(paths *config.Paths, src Source, reg *registry.Registry, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	return &Engine{
		paths:    paths,
		src:      src,
		reg:      reg,
		opts:     opts,
		log:      opts.Logger,
		inflight: make(map[string]struct{}),
	}
}

// Registry returns the registry the engine records into.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// begin marks keys as in flight. The returned func releases them. A key that
// is already in flight fails the whole call.
func (e *Engine) begin(keys ...string) (func(), error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range keys {
		if _, busy := e.inflight[k]; busy {
			return nil, ErrOperationInProgress
		}
	}
	for _, k := range keys {
		e.inflight[k] = struct{}{}
	}
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for _, k := range keys {
			delete(e.inflight, k)
		}
	}, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.opts.FetchTimeout > 0 {
		return context.WithTimeout(ctx, e.opts.FetchTimeout)
	}
	return context.WithCancel(ctx)
}

// newStaging creates a private directory inside the staging area.
func (e *Engine) newStaging(prefix string) (string, error) {
	if err := os.MkdirAll(e.paths.StagingDir(), 0o755); err != nil {
		return "", err
	}
	return os.MkdirTemp(e.paths.StagingDir(), prefix+"-*")
}

// idLock serializes directory swaps for one id across processes.
func (e *Engine) idLock(id string) string {
	return filepath.Join(e.paths.StateDir, "locks", strings.ReplaceAll(id, "/", "_")+".lock")
}

func (e *Engine) withIDLock(id string, fn func() error) error {
	if err := os.MkdirAll(filepath.Join(e.paths.StateDir, "locks"), 0o755); err != nil {
		return err
	}
	return fileutil.WithLock(e.idLock(id), fn)
}

// promote moves payload to dest. An existing dest is renamed aside first and
// restored if the move fails. The returned commit func drops the backup and
// rollback restores the previous state.
func promote(payload, dest string) (commit func(), rollback func() error, err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, nil, err
	}
	backup := dest + backupSuffix
	if err := removeAll(backup); err != nil {
		return nil, nil, err
	}

	hadOld := false
	if _, err := os.Lstat(dest); err == nil {
		if err := osRename(dest, backup); err != nil {
			return nil, nil, fmt.Errorf("move previous version aside: %w", err)
		}
		hadOld = true
	}

	if err := osRename(payload, dest); err != nil {
		if hadOld {
			if rerr := osRename(backup, dest); rerr != nil {
				return nil, nil, fmt.Errorf("promote: %w (restore failed: %v)", err, rerr)
			}
		}
		return nil, nil, fmt.Errorf("promote: %w", err)
	}

	commit = func() {
		if hadOld {
			_ = removeAll(backup)
		}
	}
	rollback = func() error {
		if err := removeAll(dest); err != nil {
			return err
		}
		if hadOld {
			return osRename(backup, dest)
		}
		return nil
	}
	return commit, rollback, nil
}

func (e *Engine) record(ctx context.Context, ev Event) {
	if e.opts.Recorder == nil {
		return
	}
	ev.Duration = e.opts.Now().Sub(ev.Started)
	if err := e.opts.Recorder.Record(context.WithoutCancel(ctx), ev); err != nil {
		e.log.Warn("could not record history", "op", ev.Op, "id", ev.PackageID, "err", err)
	}
}
