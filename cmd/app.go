package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/engine"
	"github.com/samhoang/ashpm/internal/history"
	ashlog "github.com/samhoang/ashpm/internal/log"
	"github.com/samhoang/ashpm/internal/picker"
	"github.com/samhoang/ashpm/internal/registry"
	"github.com/samhoang/ashpm/internal/script"
	"github.com/samhoang/ashpm/internal/source"
)

// Seams replaced by tests.
var (
	newSource = func(opts source.Options, logger *slog.Logger) engine.Source {
		return source.NewResolver(opts, logger)
	}
	chooser     picker.Chooser = picker.Terminal{}
	interactive                = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
	}
	now = time.Now
)

var errNotInitialized = errors.New("no Ashita root configured; run 'ashpm init --root <dir>' or set ASHPM_ROOT")

// app is everything a command needs, opened from config.
type app struct {
	paths   *config.Paths
	cfg     *config.Config
	logger  *slog.Logger
	reg     *registry.Registry
	journal *history.Journal
	engine  *engine.Engine
}

// loadConfig resolves paths and settings without opening any state.
func loadConfig() (*config.Paths, *config.Config, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.LoadConfig(paths.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if rootFlag != "" {
		cfg.Root = rootFlag
	}
	paths.Root = cfg.Root
	return paths, cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, err := ashlog.ParseLevel(cfg.LogLevel)
	logger := ashlog.New(os.Stderr, level, verboseFlag)
	if err != nil {
		logger.Warn("ignoring log_level", "err", err)
	}
	return logger
}

// openApp opens the registry, the history journal and the engine, and runs
// crash recovery.
func openApp() (*app, error) {
	paths, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !paths.IsInitialized() {
		return nil, errNotInitialized
	}
	if err := paths.EnsureLayout(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	reg, err := registry.Open(paths.RegistryPath(), logger)
	if errors.Is(err, registry.ErrCorrupt) {
		// keep going with an empty registry; 'ashpm scan' can rebuild it
		printWarning(os.Stderr, fmt.Sprintf("%v (starting with an empty registry, run 'ashpm scan' to rebuild)", err))
	} else if err != nil {
		return nil, err
	}

	a := &app{paths: paths, cfg: cfg, logger: logger, reg: reg}

	journal, err := history.Open(paths.HistoryPath())
	if err != nil {
		logger.Warn("history disabled", "err", err)
	} else {
		a.journal = journal
	}

	opts := engine.Options{
		FetchTimeout: cfg.Timeout(),
		Parallel:     cfg.Parallel,
		Logger:       logger,
		Now:          now,
	}
	if a.journal != nil {
		opts.Recorder = a.journal
	}
	src := newSource(source.Options{Token: cfg.GitHubToken, Attempts: cfg.MaxAttempts}, logger)
	a.engine = engine.New(paths, src, reg, opts)

	report, err := a.engine.Recover()
	if err != nil {
		logger.Warn("recovery incomplete", "err", err)
	} else if report != nil {
		for _, dir := range report.Restored {
			logger.Info("restored interrupted package", "path", dir)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close history", "err", err)
		}
	}
}

// scriptStore returns the store of the configured script, or of a named
// script in the scripts directory.
func (a *app) scriptStore(name string) *script.Store {
	if name == "" {
		return script.NewStore(a.cfg.ScriptPath())
	}
	return script.NewStore(scriptPathFor(a.paths, name))
}

func scriptPathFor(paths *config.Paths, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if !strings.EqualFold(filepath.Ext(name), ".txt") {
		name += ".txt"
	}
	return filepath.Join(paths.ScriptsDir(), name)
}

// withApp opens the app for the duration of fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}
