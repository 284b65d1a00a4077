package vector

import (
	"errors"
	"fmt"
)

var (
	// ErrCollectionNotFound is returned when an operation names an unknown collection.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrDimensionMismatch is returned when an embedding's length differs from
	// its collection's dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidCollection is returned for a bad collection name, dimension or metric.
	ErrInvalidCollection = errors.New("invalid collection")

	// ErrBackendUnavailable is returned by a native backend probe when the
	// vector capability is absent. It selects the fallback and is never
	// surfaced to callers.
	ErrBackendUnavailable = errors.New("vector backend unavailable")

	// ErrBackendQueryFailed marks a search that failed inside a backend.
	// Backends log it and the store answers with an empty result set.
	ErrBackendQueryFailed = errors.New("vector backend query failed")

	// ErrInvalidFilter is returned for metadata filters with non-scalar values.
	ErrInvalidFilter = errors.New("invalid filter")
)

// DimensionError describes a rejected embedding.
type DimensionError struct {
	Collection string
	Expected   uint
	Got        int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch for collection %q: expected %d, got %d", e.Collection, e.Expected, e.Got)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// InvalidCollectionError describes why a collection definition was rejected.
type InvalidCollectionError struct {
	Name   string
	Reason string
}

func (e *InvalidCollectionError) Error() string {
	if e.Name == "" {
		return "invalid collection: " + e.Reason
	}
	return fmt.Sprintf("invalid collection %q: %s", e.Name, e.Reason)
}

// Is matches ErrInvalidCollection.
func (e *InvalidCollectionError) Is(target error) bool {
	return target == ErrInvalidCollection
}

// CheckDimension returns a *DimensionError when embedding does not fit c.
func CheckDimension(c *Collection, embedding []float32) error {
	if uint(len(embedding)) != c.Dimension {
		return &DimensionError{Collection: c.Name, Expected: c.Dimension, Got: len(embedding)}
	}
	return nil
}
