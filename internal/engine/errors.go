package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrBroken is returned by every operation on a container after a
	// structural operation failed partway. The state is sticky.
	ErrBroken = errors.New("engine: container is broken")

	// ErrClosed is returned when an operation is attempted on a closed container.
	ErrClosed = errors.New("engine: container closed")

	// ErrChangesetClosed is returned when a changeset is used after Apply or Discard.
	ErrChangesetClosed = errors.New("engine: changeset closed")

	// ErrUnknownField is returned for field ordinals outside the schema.
	ErrUnknownField = errors.New("engine: unknown field")

	// ErrNotPersistent is returned by Flush on a container without a directory.
	ErrNotPersistent = errors.New("engine: container has no directory")

	// ErrInvalidArgument is returned for malformed requests such as a row
	// buffer built for another schema.
	ErrInvalidArgument = errors.New("engine: invalid argument")
)

// brokenError records the failure that tripped the broken state.
type brokenError struct {
	op    string
	cause error
}

func (e *brokenError) Error() string {
	return fmt.Sprintf("%s (%s: %v)", ErrBroken, e.op, e.cause)
}

func (e *brokenError) Unwrap() []error { return []error{ErrBroken, e.cause} }
