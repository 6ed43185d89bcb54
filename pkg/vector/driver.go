// Package vector provides the durable tier of the memory pipeline: a
// persistent, similarity-indexed store of committed memory records.
//
// Records are addressed by a deterministic ID derived from the owning user,
// the pair fingerprint, and the record side, so re-committing the same pair
// is an idempotent overwrite rather than a duplicate. The deduplication
// index runs its existence checks against this store's metadata — not a
// separate store — so the check and the data it protects cannot diverge.
package vector

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sides of a committed turn pair. Each pair commits three records sharing
// one fingerprint: the user utterance, the agent utterance, and a combined
// summary used for ranked retrieval.
const (
	SideUser    = "user"
	SideAgent   = "agent"
	SideSummary = "summary"
)

// recordNamespace is the UUIDv5 namespace for record IDs. Fixed forever;
// changing it would orphan every committed record.
var recordNamespace = uuid.MustParse("7a8d2c4e-9b1f-4f63-8e0a-5c6d2b9f1e37")

// RecordID derives the deterministic store key for one side of a pair.
func RecordID(userID, fingerprint, side string) string {
	return uuid.NewSHA1(recordNamespace, []byte(userID+"/"+fingerprint+"/"+side)).String()
}

// Record is the durable unit: one embedded side of a committed turn pair.
// Immutable once committed; never deleted by the pipeline itself.
type Record struct {
	// ID is the deterministic record key (see RecordID).
	ID string `json:"id"`

	// UserID is the persistent owner of the memory.
	UserID string `json:"user_id"`

	// SessionID is the conversation the pair came from.
	SessionID string `json:"session_id"`

	// TurnIndex is the user turn's position within the session.
	TurnIndex int `json:"turn_index"`

	// Fingerprint is the pair's content digest, the idempotency key.
	Fingerprint string `json:"fingerprint"`

	// Side is which projection of the pair this record embeds.
	Side string `json:"side"`

	// Text is the embedded content.
	Text string `json:"text"`

	// Importance is the pair's importance classification.
	Importance string `json:"importance"`

	// Embedding is the vector representation of Text.
	Embedding []float32 `json:"embedding,omitempty"`

	// CommittedAt is when the flush orchestrator committed the record.
	CommittedAt time.Time `json:"committed_at"`
}

// QueryResult is a search hit with its similarity score.
type QueryResult struct {
	Record

	// Score is the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of memory records.
type Driver interface {
	// Upsert stores records keyed by their deterministic IDs. Re-upserting
	// an existing ID overwrites it in place.
	Upsert(ctx context.Context, records []Record) error

	// Query finds the topK records most similar to the embedding, scoped
	// to one user. A non-empty side restricts results to that side.
	Query(ctx context.Context, userID string, embedding []float32, topK int, side string) ([]QueryResult, error)

	// Exists reports whether any record with the given user and
	// fingerprint has been committed. This is the authoritative dedup
	// check.
	Exists(ctx context.Context, userID, fingerprint string) (bool, error)

	// Fetch retrieves records by their IDs.
	Fetch(ctx context.Context, ids []string) ([]Record, error)

	// Delete removes records by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the driver.
	Close() error
}
