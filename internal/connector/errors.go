package connector

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyNamespace is returned when Resolve is called without a namespace.
	ErrEmptyNamespace = errors.New("connector namespace must not be empty")
	// ErrUnknownModule is returned when no factory is registered for an identifier.
	ErrUnknownModule = errors.New("unknown connector module")
	// ErrDuplicateModule is returned when an identifier is registered twice.
	ErrDuplicateModule = errors.New("connector module already registered")
	// ErrNilModule is returned when a factory yields no module.
	ErrNilModule = errors.New("connector factory returned nil module")
)

// ResolutionError reports the connector whose module could not be loaded.
// Any such failure fails the whole resolution.
type ResolutionError struct {
	ID  string
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve connector %q: %v", e.ID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
