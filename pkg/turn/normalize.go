package turn

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedLog is returned when a raw log entry is missing its role or
// text fields. Callers skip the offending entry and continue.
var ErrMalformedLog = errors.New("malformed log entry")

// RawEntry is one record of a heterogeneous interaction log. Different
// producers name the text field differently, so both forms are accepted.
type RawEntry struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Content   string    `json:"content"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"ts"`
}

// NormalizedLog is the outcome of normalizing a raw log.
type NormalizedLog struct {
	// Turns holds the canonical turns in log order.
	Turns []Turn

	// Malformed counts entries dropped for missing role or text.
	Malformed int
}

// NormalizeEntry converts one raw entry into a canonical Turn. The entry's
// position in its session becomes the turn index. Returns ErrMalformedLog
// when the role or text field is absent.
func NormalizeEntry(e RawEntry, index int) (Turn, error) {
	text := e.Text
	if text == "" {
		text = e.Content
	}

	role, ok := normalizeRole(e.Role)
	if !ok {
		return Turn{}, fmt.Errorf("%w: unrecognized role %q", ErrMalformedLog, e.Role)
	}
	if text == "" {
		return Turn{}, fmt.Errorf("%w: missing text", ErrMalformedLog)
	}

	return Turn{
		SessionID: e.SessionID,
		Index:     index,
		Role:      role,
		Text:      text,
		CreatedAt: e.Timestamp,
	}, nil
}

// Normalize converts a raw log into an ordered sequence of turns. Malformed
// entries are dropped and counted; an empty log produces an empty sequence
// and never an error. Turn indexes are assigned per session in log order.
func Normalize(entries []RawEntry) *NormalizedLog {
	out := &NormalizedLog{}
	next := make(map[string]int)

	for _, e := range entries {
		t, err := NormalizeEntry(e, next[e.SessionID])
		if err != nil {
			out.Malformed++
			continue
		}
		next[e.SessionID]++
		out.Turns = append(out.Turns, t)
	}

	return out
}

// Decode parses raw log bytes into entries. Accepts either a JSON array or
// JSONL (one object per line). Empty input decodes to an empty slice.
func Decode(data []byte) ([]RawEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var entries []RawEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("decoding log array: %w", err)
		}
		return entries, nil
	}

	var entries []RawEntry
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e RawEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decoding log line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning log: %w", err)
	}

	return entries, nil
}

// normalizeRole maps producer role names onto the two canonical roles.
func normalizeRole(role string) (Role, bool) {
	switch role {
	case "user", "human":
		return RoleUser, true
	case "agent", "assistant", "ai":
		return RoleAgent, true
	default:
		return "", false
	}
}
