package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	githubAPIBase       = "https://api.github.com"
	maxDownloadBytes    = int64(200 * 1024 * 1024)
	releaseListPageSize = 30
)

var httpClient = &http.Client{Timeout: 5 * time.Minute}

// ReleaseProvider handles GitHub releases and direct archive downloads
// (.zip, .tar.gz, .tgz).
type ReleaseProvider struct {
	client  *http.Client
	baseURL string
	token   string
}

// NewReleaseProvider creates a release provider.
func NewReleaseProvider(opts Options) *ReleaseProvider {
	base := opts.APIBaseURL
	if base == "" {
		base = githubAPIBase
	}
	return &ReleaseProvider{client: httpClient, baseURL: strings.TrimSuffix(base, "/"), token: opts.Token}
}

func (p *ReleaseProvider) Kind() Kind {
	return ReleaseArchive
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type githubRelease struct {
	TagName    string        `json:"tag_name"`
	Name       string        `json:"name"`
	Draft      bool          `json:"draft"`
	Prerelease bool          `json:"prerelease"`
	ZipballURL string        `json:"zipball_url"`
	Assets     []githubAsset `json:"assets"`
}

// ListRefs returns one ref per downloadable archive. A direct archive URL has
// exactly one ref.
func (p *ReleaseProvider) ListRefs(ctx context.Context, rawURL string) ([]Ref, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, newError("list releases", rawURL, ErrInvalidURL, err)
	}
	if isArchivePath(u.Path) {
		return []Ref{{
			Name:      "archive",
			Kind:      RefArchive,
			Locator:   rawURL,
			AssetName: path.Base(u.Path),
			Default:   true,
		}}, nil
	}

	owner, repo, ok := githubRepo(u)
	if !ok {
		return nil, newError("list releases", rawURL, ErrInvalidURL, fmt.Errorf("not a GitHub repository or archive URL"))
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", p.baseURL, owner, repo, releaseListPageSize)
	resp, err := p.get(ctx, apiURL, "application/vnd.github+json")
	if err != nil {
		return nil, newError("list releases", rawURL, kindForTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		if resp.StatusCode == http.StatusNotFound {
			return nil, newError("list releases", rawURL, ErrNoRefsFound, err)
		}
		return nil, newError("list releases", rawURL, kindForStatus(resp, err), err)
	}

	var releases []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, newError("list releases", rawURL, ErrUnreachable, fmt.Errorf("decode releases: %w", err))
	}

	var refs []Ref
	for _, rel := range releases {
		if rel.Draft || rel.TagName == "" {
			continue
		}
		refs = append(refs, releaseRefs(rel)...)
	}
	if len(refs) == 0 {
		return nil, newError("list releases", rawURL, ErrNoRefsFound, nil)
	}
	for i := range refs {
		refs[i].Default = refs[i].Name == refs[0].Name
	}
	return refs, nil
}

// releaseRefs expands a release into refs: every .zip asset, else the first
// asset, else the source zipball.
func releaseRefs(rel githubRelease) []Ref {
	var zips []githubAsset
	for _, a := range rel.Assets {
		if strings.HasSuffix(strings.ToLower(a.Name), ".zip") {
			zips = append(zips, a)
		}
	}

	var refs []Ref
	switch {
	case len(zips) == 1:
		// the tag alone identifies a single-archive release
		refs = append(refs, Ref{Name: rel.TagName, Kind: RefRelease, Locator: zips[0].BrowserDownloadURL})
	case len(zips) > 1:
		for _, a := range zips {
			refs = append(refs, Ref{Name: rel.TagName, Kind: RefRelease, Locator: a.BrowserDownloadURL, AssetName: a.Name})
		}
	case len(rel.Assets) > 0:
		refs = append(refs, Ref{Name: rel.TagName, Kind: RefRelease, Locator: rel.Assets[0].BrowserDownloadURL})
	case rel.ZipballURL != "":
		refs = append(refs, Ref{Name: rel.TagName, Kind: RefRelease, Locator: rel.ZipballURL})
	}
	return refs
}

// Fetch downloads the ref's archive, records its sha256 and unpacks it into
// destPath. A bare .dll asset is copied as-is.
func (p *ReleaseProvider) Fetch(ctx context.Context, rawURL string, ref Ref, destPath string) (*Fetched, error) {
	if ref.Locator == "" {
		return nil, newError("download", rawURL, ErrRefNotFound, fmt.Errorf("ref %q has no download URL", ref.ID()))
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return nil, newError("download", ref.Locator, nil, err)
	}
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*")
	if err != nil {
		return nil, newError("download", ref.Locator, nil, err)
	}
	defer os.Remove(tmpFile.Name())
	defer tmpFile.Close()

	resp, err := p.get(ctx, ref.Locator, "application/octet-stream")
	if err != nil {
		return nil, newError("download", ref.Locator, kindForTransport(ctx, err), err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		kind := kindForStatus(resp, err)
		if resp.StatusCode == http.StatusNotFound {
			kind = ErrInvalidURL
		}
		return nil, newError("download", ref.Locator, kind, err)
	}

	hash := sha256.New()
	limited := io.LimitReader(resp.Body, maxDownloadBytes+1)
	n, err := io.Copy(io.MultiWriter(tmpFile, hash), limited)
	if err != nil {
		return nil, newError("download", ref.Locator, kindForTransport(ctx, err), err)
	}
	if n > maxDownloadBytes {
		return nil, newError("download", ref.Locator, ErrInvalidURL, fmt.Errorf("archive larger than %d bytes", maxDownloadBytes))
	}

	name := ref.AssetName
	if name == "" {
		name = path.Base(ref.Locator)
	}

	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return nil, newError("extract", ref.Locator, nil, err)
	}
	if err := unpack(tmpFile, name, destPath); err != nil {
		return nil, newError("extract", ref.Locator, ErrInvalidURL, err)
	}

	return &Fetched{
		Dir:      destPath,
		Ref:      ref,
		Checksum: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

func unpack(f *os.File, name, destPath string) error {
	format, err := sniffFormat(f, name)
	if err != nil {
		return err
	}
	switch format {
	case formatZip:
		return extractZip(f.Name(), destPath)
	case formatTarGz:
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return extractTarGz(f, destPath)
	}

	if strings.HasSuffix(strings.ToLower(name), ".dll") {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		out, err := os.Create(filepath.Join(destPath, filepath.Base(name)))
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, f); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	}
	return fmt.Errorf("unsupported archive format: %s", name)
}

func (p *ReleaseProvider) get(ctx context.Context, u, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", accept)
	if p.token != "" && p.sendsToken(u) {
		req.Header.Set("Authorization", "token "+p.token)
	}
	return p.client.Do(req)
}

// sendsToken keeps the token to the API host and github.com downloads.
func (p *ReleaseProvider) sendsToken(u string) bool {
	return strings.HasPrefix(u, p.baseURL) || strings.HasPrefix(u, "https://github.com/")
}

var rateLimitRe = regexp.MustCompile(`(?i)rate limit`)

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}

// kindForStatus maps an HTTP failure status. GitHub signals rate limiting
// with 403/429; those are transient.
func kindForStatus(resp *http.Response, statusErr error) error {
	rateLimited := resp.Header.Get("X-RateLimit-Remaining") == "0" ||
		(statusErr != nil && rateLimitRe.MatchString(statusErr.Error()))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrUnreachable
	case resp.StatusCode == http.StatusForbidden && rateLimited:
		return ErrUnreachable
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return ErrForbidden
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return ErrInvalidURL
	default:
		return ErrUnreachable
	}
}

func kindForTransport(ctx context.Context, err error) error {
	if ctx.Err() == context.Canceled {
		return nil
	}
	return ErrUnreachable
}
