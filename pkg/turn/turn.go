// Package turn defines the canonical conversational turn representation and
// the operations that turn raw interaction logs into units the pipeline can
// deduplicate and embed.
//
// A Turn is one utterance. A TurnPair is one user/agent exchange — the unit
// of deduplication and embedding. Pairs are identified by a deterministic
// content fingerprint, which is the idempotency key for durable commits.
package turn

import "time"

// Role identifies who produced a turn.
type Role string

const (
	// RoleUser marks a turn spoken by the user.
	RoleUser Role = "user"

	// RoleAgent marks a turn spoken by the assistant.
	RoleAgent Role = "agent"
)

// Turn is one utterance in a session. Immutable once created.
type Turn struct {
	// SessionID groups turns belonging to one conversation.
	SessionID string `json:"session_id"`

	// Index is the position of the turn within its session.
	// Monotonic per session, matching interaction order.
	Index int `json:"turn_index"`

	// Role is who spoke: RoleUser or RoleAgent.
	Role Role `json:"role"`

	// Text is the utterance content.
	Text string `json:"text"`

	// CreatedAt is when the turn occurred. Not part of the fingerprint.
	CreatedAt time.Time `json:"created_at"`
}

// TurnPair is a user/agent exchange, the unit of dedup and embedding.
type TurnPair struct {
	User  Turn `json:"user"`
	Agent Turn `json:"agent"`
}

// Fingerprint returns the deterministic content digest for the pair.
func (p TurnPair) Fingerprint() string {
	return Fingerprint(p.User.Text, p.Agent.Text)
}

// SessionID returns the session the pair belongs to.
func (p TurnPair) SessionID() string {
	return p.User.SessionID
}

// Paired is the result of pairing a sequence of turns.
type Paired struct {
	// Pairs holds complete user/agent exchanges in log order.
	Pairs []TurnPair

	// Unpaired holds turns without a counterpart. They are excluded from
	// dedup and embedding but stay visible to live-buffer retrieval.
	Unpaired []Turn
}

// Pair associates each user turn with the next agent turn that follows it in
// log order. Turns without a counterpart (an agent turn with no preceding
// user turn, or a user turn never answered) are emitted as unpaired.
func Pair(turns []Turn) Paired {
	var out Paired
	var pending *Turn

	for _, t := range turns {
		switch t.Role {
		case RoleUser:
			if pending != nil {
				out.Unpaired = append(out.Unpaired, *pending)
			}
			u := t
			pending = &u
		case RoleAgent:
			if pending == nil {
				out.Unpaired = append(out.Unpaired, t)
				continue
			}
			out.Pairs = append(out.Pairs, TurnPair{User: *pending, Agent: t})
			pending = nil
		default:
			out.Unpaired = append(out.Unpaired, t)
		}
	}

	if pending != nil {
		out.Unpaired = append(out.Unpaired, *pending)
	}

	return out
}
