// Package source resolves user supplied URLs into fetchable locations. It
// classifies a URL as a version-controlled repository or a release archive,
// lists its refs and fetches a chosen ref into an isolated directory.
package source

import "fmt"

// Kind is how a source is retrieved.
type Kind string

const (
	VersionControlled Kind = "git"
	ReleaseArchive    Kind = "release"
	LocalLink         Kind = "link" // local working copy linked into the root, never fetched
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == VersionControlled || k == ReleaseArchive || k == LocalLink
}

// RefKind says what a Ref names.
type RefKind string

const (
	RefBranch  RefKind = "branch"
	RefTag     RefKind = "tag"
	RefRelease RefKind = "release"
	RefArchive RefKind = "archive"
)

// Ref is a resolvable point in a remote source paired with the concrete
// locator used to fetch it. Refs are not persisted.
type Ref struct {
	Name      string  // branch, tag or release label
	Kind      RefKind //
	Locator   string  // commit hash or archive URL
	AssetName string  // release asset file name, if any
	Default   bool    // default branch or latest release
}

// ID uniquely identifies the ref among the refs of one source. Releases that
// ship several archives get one ref per asset.
func (r Ref) ID() string {
	if r.Kind == RefRelease && r.AssetName != "" {
		return r.Name + "#" + r.AssetName
	}
	return r.Name
}

func (r Ref) String() string {
	label := r.ID()
	if r.Default {
		label += " (default)"
	}
	if r.Locator != "" && (r.Kind == RefBranch || r.Kind == RefTag) {
		short := r.Locator
		if len(short) > 7 {
			short = short[:7]
		}
		label = fmt.Sprintf("%s @%s", label, short)
	}
	return label
}

// Location is a classified source.
type Location struct {
	Raw  string // as supplied by the user
	URL  string // canonical form, used for identity and fetching
	Kind Kind
}

// Fetched describes content retrieved into a staging directory.
type Fetched struct {
	Dir      string // directory holding the fetched tree
	Ref      Ref    // the ref with Locator resolved
	Checksum string // sha256 of the downloaded archive, empty for git
}

// Options configures providers.
type Options struct {
	Token      string // GitHub token, optional
	APIBaseURL string // GitHub API base, defaults to https://api.github.com
	Attempts   int    // attempts for retryable failures, 1..3
}
