package coldb

import (
	"errors"
	"fmt"

	"github.com/hupe1980/coldb/blobstore"
	"github.com/hupe1980/coldb/internal/engine"
	"github.com/hupe1980/coldb/internal/persist"
	"github.com/hupe1980/coldb/internal/resource"
	"github.com/hupe1980/coldb/model"
)

var (
	// ErrBroken is returned by every operation on a container after a
	// structural operation failed partway.
	ErrBroken = engine.ErrBroken
	// ErrClosed is returned when the store or a container is closed.
	ErrClosed = engine.ErrClosed
	// ErrChangesetClosed is returned when a changeset is used after Apply or Discard.
	ErrChangesetClosed = engine.ErrChangesetClosed
	// ErrUnknownField is returned for field ordinals or IDs outside the schema.
	ErrUnknownField = engine.ErrUnknownField
	// ErrNotPersistent is returned by Flush without a blob store.
	ErrNotPersistent = engine.ErrNotPersistent
	// ErrMemoryLimitExceeded is returned when storage growth exceeds the memory limit.
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
	// ErrIncompatibleVersion is returned for files of an unsupported format version.
	ErrIncompatibleVersion = persist.ErrIncompatibleVersion
	// ErrMalformedStream is returned when persisted data cannot be decoded.
	ErrMalformedStream = persist.ErrMalformedStream
	// ErrNotFound is returned when a persisted file is missing.
	ErrNotFound = blobstore.ErrNotFound

	// ErrSchemaMismatch is returned when a document type is opened again
	// with a different schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// ErrUnknownDocumentType indicates a document type that is neither open
// nor persisted.
type ErrUnknownDocumentType struct {
	Name string
}

func (e *ErrUnknownDocumentType) Error() string {
	return fmt.Sprintf("unknown document type %q", e.Name)
}

// ErrInvalidKey indicates an empty or oversized primary key.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrInvalidKey struct {
	Length int
	cause  error
}

func (e *ErrInvalidKey) Error() string {
	return fmt.Sprintf("invalid primary key of %d bytes (allowed 1..%d)", e.Length, model.MaxKeyLength)
}

func (e *ErrInvalidKey) Unwrap() error { return e.cause }

// translateError normalizes errors of the internal packages.
func translateError(err error, key []byte) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrInvalidKey) {
		return &ErrInvalidKey{Length: len(key), cause: err}
	}
	return err
}
