package registry

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("package not found")
	ErrCorrupt      = errors.New("registry file is corrupt")
	ErrInvalid      = errors.New("invalid package record")
	ErrPathConflict = errors.New("install path overlaps another package")
)

// RegistryError wraps errors with registry context
type RegistryError struct {
	Op  string
	ID  string // package id or file path
	Err error
}

func (e *RegistryError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("registry: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registry: %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *RegistryError) Unwrap() error {
	return e.Err
}
