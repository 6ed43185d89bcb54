package embeddings

import "errors"

// ErrUnavailable is returned when the embedding backend cannot produce a
// vector. The flush path defers the affected pair on it rather than failing
// the run.
var ErrUnavailable = errors.New("embedding backend unavailable")
