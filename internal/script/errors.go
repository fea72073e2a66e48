package script

import (
	"errors"
	"fmt"
)

var (
	ErrUnparseableLine   = errors.New("unparseable script line")
	ErrOrphanedReference = errors.New("script loads a package that is not installed")
	ErrIndexOutOfRange   = errors.New("entry index out of range")
)

// ScriptError wraps errors with script line context
type ScriptError struct {
	Line int    // 1-based line number, 0 when not tied to a line
	Text string // offending line or target
	Err  error
}

func (e *ScriptError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("script: %v: %s", e.Err, e.Text)
	}
	return fmt.Sprintf("script line %d: %v: %s", e.Line, e.Err, e.Text)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
