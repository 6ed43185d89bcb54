// Package retrieval answers memory queries by merging the two tiers: ranked
// similarity hits from the durable store and a recency scan of the not yet
// committed tail of the buffer. Either tier failing degrades the answer to
// the other tier instead of failing the query.
package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/turn"
	"github.com/papercomputeco/recall/pkg/vector"
)

// DefaultWindow is how many trailing buffer entries a search scans.
const DefaultWindow = 200

// Sources a result can come from.
const (
	SourceDurable = "durable"
	SourceBuffer  = "buffer"
)

// Result is one memory hit.
type Result struct {
	// Text is the memory content: the stored summary for durable hits,
	// the pair summary for buffer hits.
	Text string `json:"text"`

	// Score is the similarity score for durable hits, zero for buffer
	// hits, which are ordered by recency instead.
	Score float32 `json:"score"`

	// Source is which tier the hit came from.
	Source string `json:"source"`

	// SessionID is the conversation the memory came from.
	SessionID string `json:"session_id"`

	// TurnIndex is the user turn's position within the session.
	TurnIndex int `json:"turn_index"`

	// Importance is the pair's importance classification.
	Importance string `json:"importance"`

	// CommittedAt is set for durable hits only.
	CommittedAt time.Time `json:"committed_at,omitempty"`
}

// Config holds configuration for the search service.
type Config struct {
	// Buffer is the ephemeral tier. Required.
	Buffer buffer.Driver

	// Vector is the durable tier. Required.
	Vector vector.Driver

	// Embedder embeds the query text for the durable search.
	Embedder embeddings.Embedder

	// Window caps how many trailing buffer entries are scanned per search.
	// Defaults to DefaultWindow.
	Window int

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Service merges durable and buffered memories into one ranked answer.
type Service struct {
	config *Config
	logger *slog.Logger
}

// NewService creates a search service.
func NewService(c *Config) *Service {
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}

	return &Service{
		config: c,
		logger: c.Logger,
	}
}

// Search returns up to topK memories for the user: durable similarity hits
// first, then matching uncommitted buffer pairs newest first.
func (s *Service) Search(ctx context.Context, userID, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = 10
	}

	durable, storeReachable := s.searchDurable(ctx, userID, query, topK)

	results := durable
	if len(results) < topK {
		results = append(results, s.searchBuffer(ctx, userID, query, topK-len(results), storeReachable)...)
	}

	if len(results) > topK {
		results = results[:topK]
	}

	return results, nil
}

// searchDurable runs the ranked tier. Any failure degrades to buffer-only
// and reports the store as unreachable so the buffer pass stops trying to
// filter out committed pairs.
func (s *Service) searchDurable(ctx context.Context, userID, query string, topK int) ([]Result, bool) {
	embedding, err := s.config.Embedder.Embed(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, degrading to buffer-only search",
			"user_id", userID,
			"error", err,
		)
		return nil, false
	}

	hits, err := s.config.Vector.Query(ctx, userID, embedding, topK, vector.SideSummary)
	if err != nil {
		s.logger.Warn("durable search failed, degrading to buffer-only search",
			"user_id", userID,
			"error", err,
		)
		return nil, false
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Text:        h.Text,
			Score:       h.Score,
			Source:      SourceDurable,
			SessionID:   h.SessionID,
			TurnIndex:   h.TurnIndex,
			Importance:  h.Importance,
			CommittedAt: h.CommittedAt,
		})
	}

	return results, true
}

// bufferHit is a buffer-tier candidate awaiting the recency merge. The
// fingerprint is empty for unpaired turns, which can never be committed.
type bufferHit struct {
	order       int
	fingerprint string
	result      Result
}

// searchBuffer scans the trailing window of the user's buffer for pairs and
// unpaired turns matching the query, newest first. Unpaired turns never
// reach the durable store, so this scan is the only place a question whose
// answer has not arrived yet is findable.
func (s *Service) searchBuffer(ctx context.Context, userID, query string, limit int, storeReachable bool) []Result {
	length, err := s.config.Buffer.Len(ctx, userID)
	if err != nil {
		s.logger.Warn("buffer length check failed, skipping buffer tier",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	since := length - s.config.Window
	if since < 0 {
		since = 0
	}

	entries, err := s.config.Buffer.Scan(ctx, userID, since)
	if err != nil {
		s.logger.Warn("buffer scan failed, skipping buffer tier",
			"user_id", userID,
			"error", err,
		)
		return nil
	}

	type turnKey struct {
		session string
		index   int
	}

	position := make(map[turnKey]int, len(entries))
	sessions := make(map[string][]turn.Turn)
	var sessionOrder []string
	for i, e := range entries {
		t := e.Turn()
		position[turnKey{t.SessionID, t.Index}] = i
		if _, seen := sessions[t.SessionID]; !seen {
			sessionOrder = append(sessionOrder, t.SessionID)
		}
		sessions[t.SessionID] = append(sessions[t.SessionID], t)
	}

	var hits []bufferHit
	for _, sessionID := range sessionOrder {
		paired := turn.Pair(sessions[sessionID])

		for _, pair := range paired.Pairs {
			if !matches(pair.User.Text+" "+pair.Agent.Text, query) {
				continue
			}
			hits = append(hits, bufferHit{
				order:       position[turnKey{pair.Agent.SessionID, pair.Agent.Index}],
				fingerprint: pair.Fingerprint(),
				result: Result{
					Text:       pair.Summary(),
					Source:     SourceBuffer,
					SessionID:  pair.SessionID(),
					TurnIndex:  pair.User.Index,
					Importance: pair.Importance(),
				},
			})
		}

		for _, t := range paired.Unpaired {
			if !matches(t.Text, query) {
				continue
			}
			hits = append(hits, bufferHit{
				order: position[turnKey{t.SessionID, t.Index}],
				result: Result{
					Text:      t.Text,
					Source:    SourceBuffer,
					SessionID: t.SessionID,
					TurnIndex: t.Index,
				},
			})
		}
	}

	// Newest underlying entry first, across sessions and across the
	// pair/unpaired split.
	sort.Slice(hits, func(i, j int) bool { return hits[i].order > hits[j].order })

	var results []Result
	for _, h := range hits {
		if len(results) >= limit {
			break
		}

		// Committed pairs already had their chance in the durable tier.
		// With the store down there is no way to tell, so everything
		// matching is returned rather than losing recent memories.
		if h.fingerprint != "" && storeReachable {
			committed, err := s.config.Vector.Exists(ctx, userID, h.fingerprint)
			if err == nil && committed {
				continue
			}
		}

		results = append(results, h.result)
	}

	return results
}

// matches reports whether any query token appears in the haystack text.
// An empty query matches everything.
func matches(haystack, query string) bool {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return true
	}

	lowered := strings.ToLower(haystack)
	for _, token := range tokens {
		if strings.Contains(lowered, token) {
			return true
		}
	}
	return false
}
