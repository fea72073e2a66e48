package config

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

// Paths holds all resolved paths for ashpm operations
type Paths struct {
	StateDir string // ~/.ashpm (registry, history, locks)
	Root     string // Ashita install root (managed root)
}

// ComponentType is the kind of extension the host framework loads.
type ComponentType string

const (
	Addon  ComponentType = "addon"
	Plugin ComponentType = "plugin"
)

// AllComponentTypes returns all component types in load order
func AllComponentTypes() []ComponentType {
	return []ComponentType{Plugin, Addon}
}

// Valid reports whether t is a known component type.
func (t ComponentType) Valid() bool {
	return t == Addon || t == Plugin
}

// Dir returns the managed subdirectory name for the type.
func (t ComponentType) Dir() string {
	return string(t) + "s"
}

const stagingDirName = ".ashpm-staging"

// ResolvePaths resolves the state directory from ASHPM_HOME or the home
// directory. Root is filled in later from config or flags.
func ResolvePaths() (*Paths, error) {
	stateDir := os.Getenv("ASHPM_HOME")
	if stateDir == "" {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		stateDir = filepath.Join(home, ".ashpm")
	}

	expanded, err := homedir.Expand(stateDir)
	if err != nil {
		return nil, err
	}

	return &Paths{StateDir: expanded}, nil
}

// ComponentDir returns <root>/addons or <root>/plugins.
func (p *Paths) ComponentDir(t ComponentType) string {
	return filepath.Join(p.Root, t.Dir())
}

// PackageDir returns the install directory for a package name of type t.
func (p *Paths) PackageDir(t ComponentType, name string) string {
	return filepath.Join(p.ComponentDir(t), name)
}

// CompanionDirs returns <root>/docs and <root>/resources, where packages
// place folders of their own.
func (p *Paths) CompanionDirs() []string {
	return []string{filepath.Join(p.Root, "docs"), filepath.Join(p.Root, "resources")}
}

// Placed resolves a slash path recorded relative to the managed root.
func (p *Paths) Placed(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// StagingDir returns the staging area inside the managed root. It lives on the
// same filesystem as the install directories so promotion is a rename.
func (p *Paths) StagingDir() string {
	return filepath.Join(p.Root, stagingDirName)
}

// ScriptsDir returns <root>/scripts
func (p *Paths) ScriptsDir() string {
	return filepath.Join(p.Root, "scripts")
}

// RegistryPath returns the path to packages.toml
func (p *Paths) RegistryPath() string {
	return filepath.Join(p.StateDir, "packages.toml")
}

// HistoryPath returns the path to the operation journal database
func (p *Paths) HistoryPath() string {
	return filepath.Join(p.StateDir, "history.db")
}

// ConfigPath returns the path to ashpm.toml
func (p *Paths) ConfigPath() string {
	return filepath.Join(p.StateDir, "ashpm.toml")
}

// IsInitialized checks whether the managed root exists.
func (p *Paths) IsInitialized() bool {
	if p.Root == "" {
		return false
	}
	info, err := os.Stat(p.Root)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// EnsureLayout creates the state dir and the addons/plugins/staging dirs.
func (p *Paths) EnsureLayout() error {
	dirs := []string{p.StateDir, p.StagingDir()}
	for _, t := range AllComponentTypes() {
		dirs = append(dirs, p.ComponentDir(t))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
