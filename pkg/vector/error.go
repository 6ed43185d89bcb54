package vector

import "errors"

var (
	// ErrNotFound is returned when a record is not found in the store.
	ErrNotFound = errors.New("record not found")

	// ErrBackendUnavailable is returned when the durable store cannot be
	// reached. Read paths degrade on it; write paths abort the affected
	// item only.
	ErrBackendUnavailable = errors.New("vector store unavailable")
)
