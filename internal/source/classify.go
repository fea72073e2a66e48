package source

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var archiveSuffixes = []string{".zip", ".tar.gz", ".tgz"}

var scpLike = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:[^/].*$`)

var bareHosts = []string{"github.com/", "gitlab.com/", "bitbucket.org/", "codeberg.org/"}

// Classify parses raw and decides how it should be retrieved. Ambiguous URLs
// are VersionControlled since a clone can do everything a download can.
func Classify(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, newError("classify", raw, ErrInvalidURL, fmt.Errorf("empty URL"))
	}
	cleaned := norm.NFC.String(raw)

	if scpLike.MatchString(cleaned) {
		return Location{Raw: raw, URL: strings.TrimSuffix(cleaned, "/"), Kind: VersionControlled}, nil
	}

	for _, host := range bareHosts {
		if strings.HasPrefix(strings.ToLower(cleaned), host) {
			cleaned = "https://" + cleaned
			break
		}
	}

	u, err := url.Parse(cleaned)
	if err != nil {
		return Location{}, newError("classify", raw, ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "http", "https", "ssh", "git":
		if u.Host == "" {
			return Location{}, newError("classify", raw, ErrInvalidURL, fmt.Errorf("missing host"))
		}
	case "file":
		if u.Path == "" {
			return Location{}, newError("classify", raw, ErrInvalidURL, fmt.Errorf("missing path"))
		}
	default:
		return Location{}, newError("classify", raw, ErrInvalidURL, fmt.Errorf("unsupported scheme %q", u.Scheme))
	}
	u.Scheme = scheme
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if isArchivePath(u.Path) {
		return Location{Raw: raw, URL: u.String(), Kind: ReleaseArchive}, nil
	}

	if owner, repo, ok := githubRepo(u); ok {
		canonical := "https://github.com/" + owner + "/" + repo
		if isReleasesPath(u.Path) {
			return Location{Raw: raw, URL: canonical, Kind: ReleaseArchive}, nil
		}
		return Location{Raw: raw, URL: canonical, Kind: VersionControlled}, nil
	}

	u.RawQuery = ""
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), ".git")
	return Location{Raw: raw, URL: u.String(), Kind: VersionControlled}, nil
}

// Force returns loc re-targeted at kind, as when the caller overrides the
// install method.
func (loc Location) Force(kind Kind) Location {
	loc.Kind = kind
	return loc
}

// NameFromURL returns the last meaningful path segment of a source URL,
// lowercased, without archive or .git suffixes.
func NameFromURL(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, "/")
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		if _, repo, ok := githubRepo(u); ok && isReleasesPath(u.Path) {
			return SanitizeName(repo)
		}
		s = u.Path
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.Contains(s[i:], "/") {
		s = s[i+1:]
	}
	base := path.Base(strings.ReplaceAll(s, ":", "/"))
	lower := strings.ToLower(base)
	for _, suffix := range append([]string{".git"}, archiveSuffixes...) {
		if strings.HasSuffix(lower, suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}
	return SanitizeName(base)
}

// SanitizeName normalizes a package name for use as a directory name and id
// component.
func SanitizeName(name string) string {
	name = strings.ToLower(norm.NFC.String(strings.TrimSpace(name)))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r > 127:
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-.")
}

func isArchivePath(p string) bool {
	lower := strings.ToLower(p)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

func githubRepo(u *url.URL) (owner, repo string, ok bool) {
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if host != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

func isReleasesPath(p string) bool {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	return len(parts) >= 3 && parts[2] == "releases"
}
