package flush

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const watermarkFileName = "watermarks.json"

// WatermarkStore persists per-user scan positions between flush runs.
//
// Watermarks are advisory. They only skip buffer prefixes that earlier runs
// fully committed; losing the file means re-scanning from zero, which the
// dedup index turns into skips rather than duplicates.
type WatermarkStore struct {
	mu   sync.Mutex
	path string
	pos  map[string]int
}

// NewWatermarkStore loads (or initializes) the watermark file under dir.
func NewWatermarkStore(dir string) (*WatermarkStore, error) {
	path := filepath.Join(dir, watermarkFileName)

	pos := make(map[string]int)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &pos); err != nil {
			// A corrupt file is equivalent to a missing one.
			pos = make(map[string]int)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading watermark file: %w", err)
	}

	return &WatermarkStore{
		path: path,
		pos:  pos,
	}, nil
}

// Get returns the scan position for a user, zero if unknown.
func (w *WatermarkStore) Get(userID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos[userID]
}

// Set advances the scan position for a user and persists the file.
func (w *WatermarkStore) Set(userID string, position int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pos[userID] = position

	return w.persistLocked()
}

// Reset clears every scan position and persists the file. Required after a
// prune: removed head entries shift every surviving entry's position, so
// stale watermarks would hide entries appended after the prune. The next
// run re-scans from zero and the dedup index turns already-committed pairs
// into skips.
func (w *WatermarkStore) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pos = make(map[string]int)

	return w.persistLocked()
}

func (w *WatermarkStore) persistLocked() error {
	data, err := json.MarshalIndent(w.pos, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling watermarks: %w", err)
	}

	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("writing watermark file: %w", err)
	}

	return nil
}
