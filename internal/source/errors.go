package source

import (
	"errors"
	"fmt"
)

// Failure kinds. A *SourceError matches exactly one of them with errors.Is.
var (
	ErrUnreachable = errors.New("source unreachable")
	ErrForbidden   = errors.New("access to source forbidden")
	ErrInvalidURL  = errors.New("invalid or unsupported source URL")
	ErrNoRefsFound = errors.New("no refs found")
	ErrRefNotFound = errors.New("ref not found")
)

// SourceError represents a source-related error
type SourceError struct {
	Op   string // operation
	URL  string // source URL
	Kind error  // one of the Err* kinds above, nil for cancellation
	Err  error  // underlying error
}

func (e *SourceError) Error() string {
	msg := e.Op
	if e.URL != "" {
		msg += " " + e.URL
	}
	switch {
	case e.Kind != nil && e.Err != nil:
		return fmt.Sprintf("%s: %v: %v", msg, e.Kind, e.Err)
	case e.Kind != nil:
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	default:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
}

func (e *SourceError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Retryable reports whether err is a transport failure worth retrying.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

func newError(op, url string, kind, err error) *SourceError {
	return &SourceError{Op: op, URL: url, Kind: kind, Err: err}
}
