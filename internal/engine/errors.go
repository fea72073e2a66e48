package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samhoang/ashpm/internal/source"
)

// Sentinel errors
var (
	ErrAmbiguousType       = errors.New("cannot tell whether the source is an addon or a plugin; pass an explicit type")
	ErrConflictingID       = errors.New("package id is already used by another source")
	ErrOperationInProgress = errors.New("another operation is in progress for this package")
	ErrRefChoiceRequired   = errors.New("several refs available; choose one")
	ErrEntrypointRequired  = errors.New("several .lua files could be the addon; choose an entrypoint")
	ErrRemovalPending      = errors.New("package directory could not be removed")
	ErrDestinationExists   = errors.New("destination exists and is not managed by ashpm")
)

// InstallError wraps errors with package context
type InstallError struct {
	Op  string
	ID  string // package id, or source URL before the id is known
	Err error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// RefChoiceError is returned by Install when the source has several refs and
// none was chosen. It carries the refs so the caller can ask and resubmit.
type RefChoiceError struct {
	URL  string
	Refs []source.Ref
}

func (e *RefChoiceError) Error() string {
	ids := make([]string, 0, len(e.Refs))
	for _, r := range e.Refs {
		ids = append(ids, r.ID())
	}
	return fmt.Sprintf("%s: %v: %s", e.URL, ErrRefChoiceRequired, strings.Join(ids, ", "))
}

func (e *RefChoiceError) Unwrap() error {
	return ErrRefChoiceRequired
}

// EntrypointError is returned when an addon's main file could not be inferred.
type EntrypointError struct {
	URL        string
	Candidates []string
}

func (e *EntrypointError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.URL, ErrEntrypointRequired, strings.Join(e.Candidates, ", "))
}

func (e *EntrypointError) Unwrap() error {
	return ErrEntrypointRequired
}
