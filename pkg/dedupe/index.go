// Package dedupe decides whether a turn pair has already been committed.
//
// The durable store's metadata is the authority: a pair is committed if a
// record with its (user, fingerprint) exists there. The in-process cache in
// front of it only short-circuits repeat lookups within a process lifetime;
// a cache miss always falls through to the store, so losing the cache can
// never cause a duplicate commit or a false skip.
package dedupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/ristretto"

	"github.com/papercomputeco/recall/pkg/vector"
)

const (
	cacheNumCounters = 1e6
	cacheMaxCost     = 1 << 24
	cacheEntryCost   = 1
)

// Index answers committed-or-not for turn pairs.
type Index struct {
	driver vector.Driver
	cache  *ristretto.Cache
	logger *slog.Logger
}

// NewIndex builds a dedup index over the given durable store.
func NewIndex(driver vector.Driver, logger *slog.Logger) (*Index, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cacheNumCounters,
		MaxCost:     cacheMaxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("creating dedup cache: %w", err)
	}

	return &Index{
		driver: driver,
		cache:  cache,
		logger: logger,
	}, nil
}

func cacheKey(userID, fingerprint string) string {
	return userID + "/" + fingerprint
}

// IsCommitted reports whether the pair has already been committed for the
// user. Store errors propagate so the caller defers rather than re-commits.
func (i *Index) IsCommitted(ctx context.Context, userID, fingerprint string) (bool, error) {
	key := cacheKey(userID, fingerprint)

	if _, hit := i.cache.Get(key); hit {
		return true, nil
	}

	exists, err := i.driver.Exists(ctx, userID, fingerprint)
	if err != nil {
		return false, fmt.Errorf("checking committed state: %w", err)
	}

	if exists {
		i.cache.Set(key, struct{}{}, cacheEntryCost)
	}

	return exists, nil
}

// MarkCommitted records a fresh commit in the cache so the same process
// skips the store round trip next time.
func (i *Index) MarkCommitted(userID, fingerprint string) {
	i.cache.Set(cacheKey(userID, fingerprint), struct{}{}, cacheEntryCost)
}

// Close releases the cache.
func (i *Index) Close() {
	i.cache.Close()
}
