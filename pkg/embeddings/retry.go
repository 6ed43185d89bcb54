package embeddings

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 500 * time.Millisecond
	defaultRetryCap      = 5 * time.Second
)

// RetryEmbedder wraps an Embedder with bounded retries and exponential
// backoff. Failures past the final attempt surface to the caller, which
// defers the pair instead of dropping it.
type RetryEmbedder struct {
	inner    Embedder
	attempts int
	base     time.Duration
	cap      time.Duration
	logger   *slog.Logger
}

// NewRetryEmbedder wraps inner with the default retry policy.
func NewRetryEmbedder(inner Embedder, logger *slog.Logger) *RetryEmbedder {
	return &RetryEmbedder{
		inner:    inner,
		attempts: defaultRetryAttempts,
		base:     defaultRetryBase,
		cap:      defaultRetryCap,
		logger:   logger,
	}
}

// Embed calls the wrapped embedder, retrying transient failures.
func (r *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	delay := r.base
	for attempt := 1; attempt <= r.attempts; attempt++ {
		vec, err := r.inner.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if attempt == r.attempts {
			break
		}

		r.logger.Warn("embedding attempt failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 4
		if delay > r.cap {
			delay = r.cap
		}
	}

	return nil, lastErr
}

// Close closes the wrapped embedder.
func (r *RetryEmbedder) Close() error {
	return r.inner.Close()
}

var _ Embedder = (*RetryEmbedder)(nil)
