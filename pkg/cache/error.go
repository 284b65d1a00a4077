package cache

import "errors"

var (
	// ErrUnavailable wraps failures talking to the distributed tier. Callers
	// treat it as a miss.
	ErrUnavailable = errors.New("cache unavailable")

	// ErrCorruptEntry is returned when a cached payload cannot be decoded.
	ErrCorruptEntry = errors.New("corrupt cache entry")
)
