package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Provider lists and fetches refs for one kind of source.
type Provider interface {
	// Kind returns the source kind this provider serves
	Kind() Kind

	// ListRefs returns the refs a caller can choose from
	ListRefs(ctx context.Context, url string) ([]Ref, error)

	// Fetch retrieves ref into destPath, which must not exist yet
	Fetch(ctx context.Context, url string, ref Ref, destPath string) (*Fetched, error)
}

var retrySleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const retryBackoff = 250 * time.Millisecond

// Resolver dispatches to the provider for a location's kind and retries
// transport failures with backoff.
type Resolver struct {
	providers map[Kind]Provider
	attempts  int
	logger    *slog.Logger
}

// NewResolver builds a resolver with the git and release providers.
func NewResolver(opts Options, logger *slog.Logger) *Resolver {
	return NewResolverWith(opts, logger, NewGitProvider(opts), NewReleaseProvider(opts))
}

// NewResolverWith builds a resolver over explicit providers.
func NewResolverWith(opts Options, logger *slog.Logger, providers ...Provider) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	if attempts > 3 {
		attempts = 3
	}
	r := &Resolver{providers: make(map[Kind]Provider), attempts: attempts, logger: logger}
	for _, p := range providers {
		r.providers[p.Kind()] = p
	}
	return r
}

// Classify classifies a raw URL.
func (r *Resolver) Classify(raw string) (Location, error) {
	return Classify(raw)
}

func (r *Resolver) provider(loc Location) (Provider, error) {
	p, ok := r.providers[loc.Kind]
	if !ok {
		return nil, newError("resolve", loc.URL, ErrInvalidURL, fmt.Errorf("no provider for kind %q", loc.Kind))
	}
	return p, nil
}

// ListRefs lists refs for loc. An empty list is never returned without error.
func (r *Resolver) ListRefs(ctx context.Context, loc Location) ([]Ref, error) {
	p, err := r.provider(loc)
	if err != nil {
		return nil, err
	}

	var refs []Ref
	err = r.retry(ctx, "list refs", loc.URL, func() error {
		var err error
		refs, err = p.ListRefs(ctx, loc.URL)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, newError("list refs", loc.URL, ErrNoRefsFound, nil)
	}
	return refs, nil
}

// Fetch retrieves ref into destPath. destPath is removed before each retry
// and on failure.
func (r *Resolver) Fetch(ctx context.Context, loc Location, ref Ref, destPath string) (*Fetched, error) {
	p, err := r.provider(loc)
	if err != nil {
		return nil, err
	}

	var fetched *Fetched
	err = r.retry(ctx, "fetch", loc.URL, func() error {
		if err := os.RemoveAll(destPath); err != nil {
			return err
		}
		var err error
		fetched, err = p.Fetch(ctx, loc.URL, ref, destPath)
		return err
	})
	if err != nil {
		_ = os.RemoveAll(destPath)
		return nil, err
	}
	return fetched, nil
}

func (r *Resolver) retry(ctx context.Context, op, url string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = fn()
		if err == nil || !Retryable(err) || ctx.Err() != nil {
			break
		}
		if attempt == r.attempts {
			break
		}
		backoff := retryBackoff << (attempt - 1)
		r.logger.Warn("retrying after transport failure", "op", op, "url", url, "attempt", attempt, "backoff", backoff, "err", err)
		if serr := retrySleep(ctx, backoff); serr != nil {
			break
		}
	}
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return newError(op, url, ErrUnreachable, ctx.Err())
		}
		return newError(op, url, nil, ctx.Err())
	}
	return err
}
