package eventstream

import "context"

// Publisher publishes record events to an event stream backend.
type Publisher interface {
	PublishRecordCommitted(ctx context.Context, event *RecordCommittedEvent) error
	Close() error
}
