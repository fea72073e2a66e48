package source

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

// GitProvider lists remote refs and performs shallow single-ref clones.
type GitProvider struct {
	token string
}

// NewGitProvider creates a git provider.
func NewGitProvider(opts Options) *GitProvider {
	return &GitProvider{token: opts.Token}
}

func (p *GitProvider) Kind() Kind {
	return VersionControlled
}

func (p *GitProvider) auth(url string) transport.AuthMethod {
	if p.token == "" || !strings.HasPrefix(url, "https://") {
		return nil
	}
	return &githttp.BasicAuth{Username: "x-access-token", Password: p.token}
}

// ListRefs is the equivalent of git ls-remote: branches first with the
// default branch on top, then tags.
func (p *GitProvider) ListRefs(ctx context.Context, url string) ([]Ref, error) {
	remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{url},
	})

	advertised, err := remote.ListContext(ctx, p.listOptions(url))
	if err != nil {
		return nil, mapGitError("list refs", url, err)
	}
	return refsFromAdvertised(advertised), nil
}

// listOptions asks for peeled tags too, so an annotated tag resolves to its
// commit and update can compare it with the installed locator.
func (p *GitProvider) listOptions(url string) *git.ListOptions {
	return &git.ListOptions{Auth: p.auth(url), PeelingOption: git.AppendPeeled}
}

func refsFromAdvertised(advertised []*plumbing.Reference) []Ref {
	var defaultBranch string
	peeled := make(map[string]string)
	for _, r := range advertised {
		name := r.Name().String()
		if name == "HEAD" && r.Type() == plumbing.SymbolicReference {
			defaultBranch = r.Target().Short()
		}
		if strings.HasSuffix(name, "^{}") && r.Type() == plumbing.HashReference {
			peeled[strings.TrimSuffix(name, "^{}")] = r.Hash().String()
		}
	}

	var branches, tags []Ref
	for _, r := range advertised {
		if r.Type() != plumbing.HashReference || strings.HasSuffix(r.Name().String(), "^{}") {
			continue
		}
		switch {
		case r.Name().IsBranch():
			branches = append(branches, Ref{Name: r.Name().Short(), Kind: RefBranch, Locator: r.Hash().String()})
		case r.Name().IsTag():
			hash := r.Hash().String()
			if c, ok := peeled[r.Name().String()]; ok {
				hash = c
			}
			tags = append(tags, Ref{Name: r.Name().Short(), Kind: RefTag, Locator: hash})
		}
	}

	if defaultBranch == "" {
		for _, candidate := range []string{"main", "master"} {
			for _, b := range branches {
				if b.Name == candidate {
					defaultBranch = candidate
					break
				}
			}
			if defaultBranch != "" {
				break
			}
		}
	}

	sort.Slice(branches, func(i, j int) bool {
		if (branches[i].Name == defaultBranch) != (branches[j].Name == defaultBranch) {
			return branches[i].Name == defaultBranch
		}
		return branches[i].Name < branches[j].Name
	})
	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })

	for i := range branches {
		branches[i].Default = branches[i].Name == defaultBranch
	}
	return append(branches, tags...)
}

// Fetch clones ref with depth 1 into destPath and resolves its commit.
func (p *GitProvider) Fetch(ctx context.Context, url string, ref Ref, destPath string) (*Fetched, error) {
	opts := &git.CloneOptions{
		URL:          url,
		Auth:         p.auth(url),
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	switch ref.Kind {
	case RefBranch:
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref.Name)
	case RefTag:
		opts.ReferenceName = plumbing.NewTagReferenceName(ref.Name)
	}

	repo, err := git.PlainCloneContext(ctx, destPath, false, opts)
	if err != nil {
		return nil, mapGitError("clone", url, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, newError("clone", url, ErrNoRefsFound, err)
	}

	resolved := ref
	resolved.Locator = head.Hash().String()
	if resolved.Name == "" && head.Name().IsBranch() {
		resolved.Name = head.Name().Short()
		resolved.Kind = RefBranch
	}
	return &Fetched{Dir: destPath, Ref: resolved}, nil
}

// mapGitError sorts go-git failures into the source error kinds.
func mapGitError(op, url string, err error) error {
	var noMatch git.NoMatchingRefSpecError
	switch {
	case errors.Is(err, context.Canceled):
		return newError(op, url, nil, err)
	case errors.Is(err, context.DeadlineExceeded):
		return newError(op, url, ErrUnreachable, err)
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed),
		errors.Is(err, transport.ErrInvalidAuthMethod):
		return newError(op, url, ErrForbidden, err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return newError(op, url, ErrInvalidURL, err)
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return newError(op, url, ErrNoRefsFound, err)
	case errors.Is(err, plumbing.ErrReferenceNotFound), errors.As(err, &noMatch):
		return newError(op, url, ErrRefNotFound, err)
	default:
		return newError(op, url, ErrUnreachable, err)
	}
}
