package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind Kind
		wantURL  string
	}{
		{"https://github.com/user/repo", VersionControlled, "https://github.com/user/repo"},
		{"https://github.com/User/Repo.git/", VersionControlled, "https://github.com/User/Repo"},
		{"github.com/user/repo", VersionControlled, "https://github.com/user/repo"},
		{"https://GitHub.com/user/repo/tree/dev", VersionControlled, "https://github.com/user/repo"},
		{"https://github.com/user/repo/releases", ReleaseArchive, "https://github.com/user/repo"},
		{"https://github.com/user/repo/releases/latest", ReleaseArchive, "https://github.com/user/repo"},
		{"https://example.com/files/addon.zip", ReleaseArchive, "https://example.com/files/addon.zip"},
		{"https://example.com/files/addon.tar.gz", ReleaseArchive, "https://example.com/files/addon.tar.gz"},
		{"https://example.com/repo-a", VersionControlled, "https://example.com/repo-a"},
		{"https://gitlab.com/group/sub/project.git", VersionControlled, "https://gitlab.com/group/sub/project"},
		{"git@github.com:user/repo.git", VersionControlled, "git@github.com:user/repo.git"},
		{"ssh://git@example.com/repo.git", VersionControlled, "ssh://git@example.com/repo"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			loc, err := Classify(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, loc.Kind)
			assert.Equal(t, tt.wantURL, loc.URL)
			assert.Equal(t, tt.raw, loc.Raw)
		})
	}
}

func TestClassifyInvalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "ftp://example.com/x", "not a url", "https:///nohost", "mailto:someone"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Classify(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidURL)
			assert.False(t, Retryable(err))
		})
	}
}

func TestNameFromURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"https://github.com/user/Distance", "distance"},
		{"https://github.com/user/repo.git", "repo"},
		{"git@github.com:user/repo.git", "repo"},
		{"https://example.com/files/My Addon.zip", "my-addon"},
		{"https://github.com/user/thing/releases/download/v1/pack.zip", "thing"},
		{"https://example.com/dl/tool.tar.gz?token=x", "tool"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NameFromURL(tt.input))
		})
	}
}

func TestRefsFromAdvertised(t *testing.T) {
	advertised := []*plumbing.Reference{
		plumbing.NewSymbolicReference("HEAD", plumbing.NewBranchReferenceName("main")),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("dev"), plumbing.NewHash("2222222222222222222222222222222222222222")),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), plumbing.NewHash("1111111111111111111111111111111111111111")),
		plumbing.NewHashReference(plumbing.NewTagReferenceName("v1.0"), plumbing.NewHash("3333333333333333333333333333333333333333")),
		plumbing.NewHashReference(plumbing.ReferenceName("refs/tags/v1.0^{}"), plumbing.NewHash("4444444444444444444444444444444444444444")),
		plumbing.NewHashReference(plumbing.ReferenceName("refs/pull/1/head"), plumbing.NewHash("5555555555555555555555555555555555555555")),
	}

	refs := refsFromAdvertised(advertised)
	require.Len(t, refs, 3)

	assert.Equal(t, Ref{Name: "main", Kind: RefBranch, Locator: "1111111111111111111111111111111111111111", Default: true}, refs[0])
	assert.Equal(t, "dev", refs[1].Name)
	assert.False(t, refs[1].Default)
	assert.Equal(t, RefTag, refs[2].Kind)
	assert.Equal(t, "4444444444444444444444444444444444444444", refs[2].Locator, "annotated tags resolve to the peeled commit")
}

func TestGitListOptionsPeelTags(t *testing.T) {
	p := NewGitProvider(Options{Token: "secret"})

	opts := p.listOptions("https://github.com/acme/distance")
	assert.Equal(t, git.AppendPeeled, opts.PeelingOption)
	assert.NotNil(t, opts.Auth)

	opts = p.listOptions("git@github.com:acme/distance.git")
	assert.Equal(t, git.AppendPeeled, opts.PeelingOption)
	assert.Nil(t, opts.Auth)
}

func TestRefsFromAdvertisedWithoutHead(t *testing.T) {
	advertised := []*plumbing.Reference{
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("alpha"), plumbing.NewHash("1111111111111111111111111111111111111111")),
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("master"), plumbing.NewHash("2222222222222222222222222222222222222222")),
	}

	refs := refsFromAdvertised(advertised)
	require.Len(t, refs, 2)
	assert.Equal(t, "master", refs[0].Name)
	assert.True(t, refs[0].Default)
}

func TestMapGitError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"auth required", transport.ErrAuthenticationRequired, ErrForbidden},
		{"authorization", transport.ErrAuthorizationFailed, ErrForbidden},
		{"not found", transport.ErrRepositoryNotFound, ErrInvalidURL},
		{"empty", transport.ErrEmptyRemoteRepository, ErrNoRefsFound},
		{"missing ref", plumbing.ErrReferenceNotFound, ErrRefNotFound},
		{"network", errors.New("dial tcp: connection refused"), ErrUnreachable},
		{"timeout", context.DeadlineExceeded, ErrUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapGitError("clone", "https://example.com/r", tt.err)
			assert.ErrorIs(t, err, tt.kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	canceled := mapGitError("clone", "u", context.Canceled)
	assert.ErrorIs(t, canceled, context.Canceled)
	assert.False(t, Retryable(canceled))

}

// fakeProvider scripts a sequence of results for resolver tests.
type fakeProvider struct {
	kind      Kind
	listErrs  []error
	refs      []Ref
	listCalls int
}

func (f *fakeProvider) Kind() Kind { return f.kind }

func (f *fakeProvider) ListRefs(ctx context.Context, url string) ([]Ref, error) {
	f.listCalls++
	if len(f.listErrs) > 0 {
		err := f.listErrs[0]
		f.listErrs = f.listErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.refs, nil
}

func (f *fakeProvider) Fetch(ctx context.Context, url string, ref Ref, destPath string) (*Fetched, error) {
	return &Fetched{Dir: destPath, Ref: ref}, nil
}

func noSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var slept []time.Duration
	orig := retrySleep
	retrySleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	t.Cleanup(func() { retrySleep = orig })
	return &slept
}

func TestResolverRetriesUnreachable(t *testing.T) {
	slept := noSleep(t)
	unreachable := newError("list refs", "u", ErrUnreachable, errors.New("reset"))
	p := &fakeProvider{
		kind:     VersionControlled,
		listErrs: []error{unreachable, unreachable},
		refs:     []Ref{{Name: "main", Kind: RefBranch}},
	}
	r := NewResolverWith(Options{Attempts: 3}, nil, p)

	refs, err := r.ListRefs(context.Background(), Location{URL: "u", Kind: VersionControlled})
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Equal(t, 3, p.listCalls)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 500 * time.Millisecond}, *slept)
}

func TestResolverGivesUpAfterThreeAttempts(t *testing.T) {
	noSleep(t)
	unreachable := newError("list refs", "u", ErrUnreachable, errors.New("reset"))
	p := &fakeProvider{kind: VersionControlled, listErrs: []error{unreachable, unreachable, unreachable, unreachable}}
	r := NewResolverWith(Options{Attempts: 10}, nil, p)

	_, err := r.ListRefs(context.Background(), Location{URL: "u", Kind: VersionControlled})
	assert.ErrorIs(t, err, ErrUnreachable)
	assert.Equal(t, 3, p.listCalls)
}

func TestResolverDoesNotRetryForbidden(t *testing.T) {
	noSleep(t)
	p := &fakeProvider{kind: VersionControlled, listErrs: []error{newError("list refs", "u", ErrForbidden, nil)}}
	r := NewResolverWith(Options{Attempts: 3}, nil, p)

	_, err := r.ListRefs(context.Background(), Location{URL: "u", Kind: VersionControlled})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, p.listCalls)
}

func TestResolverEmptyRefsIsContractViolation(t *testing.T) {
	p := &fakeProvider{kind: VersionControlled}
	r := NewResolverWith(Options{}, nil, p)

	_, err := r.ListRefs(context.Background(), Location{URL: "u", Kind: VersionControlled})
	assert.ErrorIs(t, err, ErrNoRefsFound)
}

func TestResolverUnknownKind(t *testing.T) {
	r := NewResolverWith(Options{}, nil)

	_, err := r.ListRefs(context.Background(), Location{URL: "u", Kind: ReleaseArchive})
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestSelectRef(t *testing.T) {
	refs := []Ref{
		{Name: "main", Kind: RefBranch},
		{Name: "dev", Kind: RefBranch},
		{Name: "v2", Kind: RefRelease, AssetName: "a.zip"},
		{Name: "v2", Kind: RefRelease, AssetName: "b.zip"},
	}

	got, ok := SelectRef(refs, "dev")
	require.True(t, ok)
	assert.Equal(t, "dev", got.Name)

	got, ok = SelectRef(refs, "v2#b.zip")
	require.True(t, ok)
	assert.Equal(t, "b.zip", got.AssetName)

	_, ok = SelectRef(refs, "v2")
	assert.False(t, ok, "ambiguous release name needs the asset")

	_, ok = SelectRef(refs, "feature")
	assert.False(t, ok)
}

func TestLatestRelease(t *testing.T) {
	refs := []Ref{
		{Name: "v3", Kind: RefRelease, AssetName: "tool-x64-release.zip", Locator: "u1"},
		{Name: "v3", Kind: RefRelease, AssetName: "tool-x86-release.zip", Locator: "u2"},
		{Name: "v2", Kind: RefRelease, AssetName: "tool-x86-release.zip", Locator: "u3"},
	}

	got, ok := LatestRelease(refs, "tool-x86-release-v2.zip")
	require.True(t, ok)
	assert.Equal(t, "u2", got.Locator)

	got, ok = LatestRelease(refs, "")
	require.True(t, ok)
	assert.Equal(t, "u1", got.Locator)

	_, ok = LatestRelease(nil, "")
	assert.False(t, ok)
}
