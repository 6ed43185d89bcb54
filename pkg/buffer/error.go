package buffer

import "errors"

var (
	// ErrConnection is returned when the buffer backend cannot be reached.
	ErrConnection = errors.New("buffer connection failed")

	// ErrCapacityExceeded is returned when an append would exceed the
	// backend's configured capacity.
	ErrCapacityExceeded = errors.New("buffer capacity exceeded")
)
