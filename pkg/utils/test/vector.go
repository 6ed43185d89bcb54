package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/recall/pkg/vector"
)

// MockVectorDriver is a test vector driver. It keeps records in memory,
// keyed by ID like a real store, so Exists and idempotent re-upserts behave
// the way the durable tier does.
type MockVectorDriver struct {
	mu      sync.Mutex
	records map[string]vector.Record
	order   []string

	// UpsertErr, QueryErr, ExistsErr force the corresponding call to fail.
	UpsertErr error
	QueryErr  error
	ExistsErr error

	// UpsertCalls counts Upsert invocations, including failed ones.
	UpsertCalls int
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		records: make(map[string]vector.Record),
	}
}

func (m *MockVectorDriver) Upsert(_ context.Context, records []vector.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpsertCalls++
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	for _, r := range records {
		if _, exists := m.records[r.ID]; !exists {
			m.order = append(m.order, r.ID)
		}
		m.records[r.ID] = r
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, userID string, embedding []float32, topK int, side string) ([]vector.QueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var results []vector.QueryResult
	for _, id := range m.order {
		r := m.records[id]
		if r.UserID != userID {
			continue
		}
		if side != "" && r.Side != side {
			continue
		}
		results = append(results, vector.QueryResult{
			Record: r,
			Score:  dot(embedding, r.Embedding),
		})
	}

	// Insertion sort by descending score; test data sets are tiny.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MockVectorDriver) Exists(_ context.Context, userID, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}

	for _, r := range m.records {
		if r.UserID == userID && r.Fingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockVectorDriver) Fetch(_ context.Context, ids []string) ([]vector.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []vector.Record
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			records = append(records, r)
		}
	}
	return records, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		delete(m.records, id)
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.records[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// Records returns a snapshot of everything stored.
func (m *MockVectorDriver) Records() []vector.Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]vector.Record, 0, len(m.order))
	for _, id := range m.order {
		records = append(records, m.records[id])
	}
	return records
}

func dot(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := range n {
		sum += a[i] * b[i]
	}
	return sum
}

var _ vector.Driver = (*MockVectorDriver)(nil)
