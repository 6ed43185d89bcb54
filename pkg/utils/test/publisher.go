package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/recall/pkg/eventstream"
)

// MockPublisher records published events for assertions.
type MockPublisher struct {
	mu     sync.Mutex
	events []eventstream.RecordCommittedEvent

	// PublishErr forces PublishRecordCommitted to fail.
	PublishErr error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishRecordCommitted(_ context.Context, event *eventstream.RecordCommittedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	if event == nil {
		return eventstream.ErrNilEvent
	}

	m.events = append(m.events, *event)
	return nil
}

func (m *MockPublisher) Close() error {
	return nil
}

// Events returns a snapshot of everything published.
func (m *MockPublisher) Events() []eventstream.RecordCommittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]eventstream.RecordCommittedEvent, len(m.events))
	copy(out, m.events)
	return out
}

var _ eventstream.Publisher = (*MockPublisher)(nil)
