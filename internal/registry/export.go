package registry

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samhoang/ashpm/internal/config"
	"github.com/samhoang/ashpm/internal/source"
)

// Manifest is the portable form of a registry, used to reproduce an install
// set on another machine.
type Manifest struct {
	SchemaVersion int             `yaml:"schema_version"`
	Exported      time.Time       `yaml:"exported"`
	Packages      []ManifestEntry `yaml:"packages"`
}

// ManifestEntry is enough to reinstall one package.
type ManifestEntry struct {
	ID            string               `yaml:"id"`
	SourceURL     string               `yaml:"source_url"`
	SourceKind    source.Kind          `yaml:"source_kind"`
	ComponentType config.ComponentType `yaml:"component_type"`
	Ref           string               `yaml:"ref"`
	AssetName     string               `yaml:"asset_name,omitempty"`
	Locator       string               `yaml:"locator,omitempty"`
}

// RefChoice returns the ref id to pass when reinstalling the entry.
func (e ManifestEntry) RefChoice() string {
	if e.AssetName != "" && e.SourceKind == source.ReleaseArchive && e.Ref != "archive" {
		return e.Ref + "#" + e.AssetName
	}
	return e.Ref
}

// Export writes the registry as a YAML manifest.
func (r *Registry) Export(w io.Writer, now time.Time) error {
	m := Manifest{SchemaVersion: SchemaVersion, Exported: now.UTC()}
	for _, p := range r.All() {
		m.Packages = append(m.Packages, ManifestEntry{
			ID:            p.ID,
			SourceURL:     p.SourceURL,
			SourceKind:    p.SourceKind,
			ComponentType: p.ComponentType,
			Ref:           p.InstalledRef,
			AssetName:     p.AssetName,
			Locator:       p.Locator,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&m); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

// ReadManifest parses a manifest written by Export.
func ReadManifest(rd io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(rd).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	for i, e := range m.Packages {
		if e.SourceURL == "" || !e.ComponentType.Valid() {
			return nil, fmt.Errorf("manifest entry %d (%s): missing source_url or component_type", i, e.ID)
		}
	}
	return &m, nil
}
