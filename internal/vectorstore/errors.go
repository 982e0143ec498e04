package vectorstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid vector store configuration")

	// ErrConnectionFailed indicates the backing store is unreachable.
	// Distinguished from empty results.
	ErrConnectionFailed = errors.New("vector store unreachable")

	// ErrCollectionMissing is returned when the fable collection has
	// not been created yet.
	ErrCollectionMissing = errors.New("collection does not exist")

	// ErrSchemaMismatch is returned when an existing collection has an
	// incompatible vector dimension or distance metric. This is a
	// configuration error, not a recoverable one.
	ErrSchemaMismatch = errors.New("collection schema mismatch")

	// ErrFableNotFound is returned by GetFable for an unknown ID.
	ErrFableNotFound = errors.New("fable not found")

	// ErrInvalidLimit is returned when a search limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// errCollectionMissing wraps ErrCollectionMissing with the collection name.
func errCollectionMissing(name string) error {
	return fmt.Errorf("%w: %s", ErrCollectionMissing, name)
}

// isCollectionMissing reports whether err wraps ErrCollectionMissing.
func isCollectionMissing(err error) bool {
	return errors.Is(err, ErrCollectionMissing)
}
