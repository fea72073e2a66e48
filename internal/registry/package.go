// Package registry persists the record of installed packages. The file is a
// versioned TOML document written through on every mutation; fields this
// version does not know about are carried over on rewrite.
package registry

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/source"
)

// Status of a package record.
type Status string

const (
	StatusInstalled      Status = "installed"
	StatusRemovalPending Status = "removal_pending"
)

// Package is a managed unit installed under the managed root.
type Package struct {
	ID            string               `toml:"id" yaml:"id"`
	Name          string               `toml:"name" yaml:"name"`
	SourceURL     string               `toml:"source_url" yaml:"source_url"`
	SourceKind    source.Kind          `toml:"source_kind" yaml:"source_kind"`
	ComponentType config.ComponentType `toml:"component_type" yaml:"component_type"`
	InstalledRef  string               `toml:"installed_ref" yaml:"installed_ref"`
	Locator       string               `toml:"locator,omitempty" yaml:"locator,omitempty"`
	AssetName     string               `toml:"asset_name,omitempty" yaml:"asset_name,omitempty"`
	Checksum      string               `toml:"checksum,omitempty" yaml:"checksum,omitempty"`
	InstallPath   string               `toml:"install_path" yaml:"install_path"`
	Placed        []string             `toml:"placed,omitempty" yaml:"placed,omitempty"` // companion paths, slash separated, relative to the root
	Status        Status               `toml:"status" yaml:"status"`
	InstalledAt   time.Time            `toml:"installed_at" yaml:"installed_at"`
	LastUpdatedAt time.Time            `toml:"last_updated_at" yaml:"last_updated_at"`

	// Fields read from the file that this version does not model
	Extra map[string]any `toml:"-" yaml:"-"`
}

// PackageID builds the identifier shared with script entries.
func PackageID(t config.ComponentType, name string) string {
	return string(t) + "/" + strings.ToLower(name)
}

// SplitID splits an id into its type and name.
func SplitID(id string) (config.ComponentType, string, bool) {
	t, name, ok := strings.Cut(id, "/")
	if !ok || name == "" || !config.ComponentType(t).Valid() {
		return "", "", false
	}
	return config.ComponentType(t), name, true
}

// RefLabel describes the installed ref with its short commit or asset.
func (p Package) RefLabel() string {
	label := p.InstalledRef
	switch {
	case p.SourceKind == source.VersionControlled && len(p.Locator) >= 7:
		label += " @" + p.Locator[:7]
	case p.AssetName != "":
		label += " (" + p.AssetName + ")"
	}
	return label
}

func (p Package) validate() error {
	if _, _, ok := SplitID(p.ID); !ok {
		return &RegistryError{Op: "validate", ID: p.ID, Err: ErrInvalid}
	}
	if !p.ComponentType.Valid() || p.InstallPath == "" || p.SourceURL == "" {
		return &RegistryError{Op: "validate", ID: p.ID, Err: ErrInvalid}
	}
	return nil
}

// nested reports whether a and b are the same directory or one contains the
// other.
func nested(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}
