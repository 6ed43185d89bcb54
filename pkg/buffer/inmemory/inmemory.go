// Package inmemory provides an in-process buffer driver for tests and local
// development.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/recall/pkg/buffer"
)

// Driver implements buffer.Driver using per-user slices.
type Driver struct {
	mu sync.RWMutex

	// entries maps user id -> appended entries in order.
	entries map[string][]buffer.Entry
}

// NewDriver creates a new in-memory buffer driver.
func NewDriver() *Driver {
	return &Driver{
		entries: make(map[string][]buffer.Entry),
	}
}

// Append adds one entry to the user's buffer.
func (d *Driver) Append(_ context.Context, entry buffer.Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.entries[entry.UserID] = append(d.entries[entry.UserID], entry)
	return nil
}

// Scan returns the user's entries from position since onward.
func (d *Driver) Scan(_ context.Context, userID string, since int) ([]buffer.Entry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	all := d.entries[userID]
	if since < 0 {
		since = 0
	}
	if since >= len(all) {
		return nil, nil
	}

	out := make([]buffer.Entry, len(all)-since)
	copy(out, all[since:])
	return out, nil
}

// Len returns the current length of the user's buffer.
func (d *Driver) Len(_ context.Context, userID string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.entries[userID]), nil
}

// Users returns every user with buffered entries.
func (d *Driver) Users(_ context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make([]string, 0, len(d.entries))
	for u, es := range d.entries {
		if len(es) > 0 {
			users = append(users, u)
		}
	}
	return users, nil
}

// Prune removes entries appended before the cutoff.
func (d *Driver) Prune(_ context.Context, olderThan time.Time) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	for u, es := range d.entries {
		kept := es[:0]
		for _, e := range es {
			if e.AppendedAt.Before(olderThan) {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		d.entries[u] = kept
	}
	return removed, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
