package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRecordCommitted is emitted after a turn pair's records are
	// committed to the durable store.
	EventTypeRecordCommitted = "recall.record.committed"
)

// RecordCommittedEvent is a transport-neutral event payload for a committed
// turn pair. One event covers all records the pair produced.
type RecordCommittedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`
	UserID        string    `json:"user_id"`
	SessionID     string    `json:"session_id"`
	TurnIndex     int       `json:"turn_index"`
	Fingerprint   string    `json:"fingerprint"`
	Importance    string    `json:"importance"`
	RecordIDs     []string  `json:"record_ids"`
}
