// Package buffer provides the ephemeral tier of the memory pipeline: a
// short-lived, append-only store of normalized turns keyed by user.
//
// The buffer survives process restarts but is not the durable store. Appends
// are decoupled from flushing and never fail because a downstream system is
// unavailable. Flushing MUST NOT delete buffer contents; entries are removed
// only by an explicit Prune, so independent consumers can keep reading raw
// turns after they have been committed durably.
//
// Drivers are pluggable via configuration:
//
//	[buffer]
//	provider = "redis"   # or "inmemory"
package buffer

import (
	"context"
	"time"

	"github.com/papercomputeco/recall/pkg/turn"
)

// Entry is one buffered utterance. Created on every interaction, never
// mutated.
type Entry struct {
	UserID     string    `json:"user_id"`
	SessionID  string    `json:"session_id"`
	TurnIndex  int       `json:"turn_index"`
	Role       turn.Role `json:"role"`
	Text       string    `json:"text"`
	AppendedAt time.Time `json:"appended_at"`
}

// Turn converts the entry back into its canonical turn form.
func (e Entry) Turn() turn.Turn {
	return turn.Turn{
		SessionID: e.SessionID,
		Index:     e.TurnIndex,
		Role:      e.Role,
		Text:      e.Text,
		CreatedAt: e.AppendedAt,
	}
}

// Driver is the ephemeral buffer backend. Per-user append order is
// preserved; no ordering is guaranteed across users.
type Driver interface {
	// Append adds one entry to the user's buffer.
	Append(ctx context.Context, entry Entry) error

	// Scan returns the user's entries starting at list position since,
	// in append order. A since of 0 returns everything.
	Scan(ctx context.Context, userID string, since int) ([]Entry, error)

	// Len returns the current length of the user's buffer.
	Len(ctx context.Context, userID string) (int, error)

	// Users returns every user with buffered entries.
	Users(ctx context.Context) ([]string, error)

	// Prune removes entries appended before the cutoff, across all users,
	// and returns how many were removed. Prune is the only operation that
	// deletes buffer contents.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases driver resources.
	Close() error
}
