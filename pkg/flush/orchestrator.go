// Package flush drains the ephemeral buffer into the durable store.
//
// A run scans each user's buffered turns from their advisory watermark,
// pairs them, and commits each not-yet-committed pair as three embedded
// records in a single upsert. The buffer is never cleared by a flush; the
// run only advances watermarks, and only for users whose scan ended with
// every pair in a terminal state. Correctness never depends on a lock: a
// concurrent or repeated run re-derives the same deterministic record IDs
// and converges on the same store contents.
package flush

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/dedupe"
	"github.com/papercomputeco/recall/pkg/embeddings"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/turn"
	"github.com/papercomputeco/recall/pkg/vector"
)

var defaultNumWorkers uint = 3

// Config is the configuration options for the flush orchestrator.
type Config struct {
	// Buffer is the ephemeral tier the run scans. Never cleared here.
	Buffer buffer.Driver

	// Vector is the durable store commits land in.
	Vector vector.Driver

	// Embedder generates the three embeddings per pair.
	Embedder embeddings.Embedder

	// Dedupe answers committed-or-not before any embedding work happens.
	Dedupe *dedupe.Index

	// Events receives one committed event per stored pair. Optional.
	Events eventstream.Publisher

	// Watermarks persists per-user scan positions. Optional; without it
	// every run scans each user's full buffer.
	Watermarks *WatermarkStore

	// NumWorkers is how many users are flushed concurrently.
	NumWorkers uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Orchestrator runs flush and prune passes over the buffer.
type Orchestrator struct {
	config *Config
	logger *slog.Logger
}

// NewOrchestrator validates config and creates an orchestrator.
func NewOrchestrator(c *Config) (*Orchestrator, error) {
	if c.Buffer == nil {
		return nil, fmt.Errorf("buffer driver is required")
	}
	if c.Vector == nil {
		return nil, fmt.Errorf("vector driver is required")
	}
	if c.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if c.Dedupe == nil {
		return nil, fmt.Errorf("dedupe index is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}
	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	return &Orchestrator{
		config: c,
		logger: c.Logger,
	}, nil
}

// Run flushes every user with buffered entries and returns the merged
// report. Failing to list users aborts the run; everything past that point
// is isolated per user and per pair.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	users, err := o.config.Buffer.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing buffered users: %w", err)
	}

	report := &Report{}
	if len(users) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	queue := make(chan string)

	wg.Add(int(o.config.NumWorkers))
	for i := range o.config.NumWorkers {
		go func(id uint) {
			defer wg.Done()
			for userID := range queue {
				userReport := o.flushUser(ctx, userID)

				mu.Lock()
				report.add(userReport)
				mu.Unlock()

				o.logger.Debug("user flushed",
					"worker_id", id,
					"user_id", userID,
					"stored", userReport.Stored,
					"skipped", userReport.Skipped,
					"deferred", userReport.Deferred,
					"failed", userReport.Failed,
				)
			}
		}(i)
	}

	for _, userID := range users {
		queue <- userID
	}
	close(queue)
	wg.Wait()

	o.logger.Info("flush run complete",
		"users", report.Users,
		"pairs", report.Pairs,
		"stored", report.Stored,
		"skipped", report.Skipped,
		"malformed", report.Malformed,
		"deferred", report.Deferred,
		"failed", report.Failed,
	)

	return report, nil
}

// Prune removes buffered entries older than the cutoff. This is the only
// path that deletes from the buffer. Deleting head entries shifts every
// surviving entry's position, so the watermarks are reset along with it.
func (o *Orchestrator) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	removed, err := o.config.Buffer.Prune(ctx, olderThan)
	if err != nil {
		return 0, fmt.Errorf("pruning buffer: %w", err)
	}

	if removed > 0 && o.config.Watermarks != nil {
		if err := o.config.Watermarks.Reset(); err != nil {
			return removed, fmt.Errorf("resetting watermarks after prune: %w", err)
		}
	}

	o.logger.Info("buffer pruned", "removed", removed, "older_than", olderThan)

	return removed, nil
}

// flushUser scans one user's buffer from their watermark and commits every
// eligible pair. Failures are counted, never propagated; a user's bad pair
// cannot stop another user's flush.
func (o *Orchestrator) flushUser(ctx context.Context, userID string) *Report {
	report := &Report{Users: 1}

	since := 0
	if o.config.Watermarks != nil {
		since = o.config.Watermarks.Get(userID)
	}

	entries, err := o.config.Buffer.Scan(ctx, userID, since)
	if err != nil {
		o.logger.Warn("buffer scan failed, user deferred", "user_id", userID, "error", err)
		report.Deferred++
		return report
	}
	if len(entries) == 0 {
		return report
	}

	// Pair within each session; a user turn in one session never pairs
	// with an agent turn in another.
	sessions := make(map[string][]turn.Turn)
	var sessionOrder []string
	for _, e := range entries {
		t := e.Turn()
		if _, seen := sessions[t.SessionID]; !seen {
			sessionOrder = append(sessionOrder, t.SessionID)
		}
		sessions[t.SessionID] = append(sessions[t.SessionID], t)
	}

	for _, sessionID := range sessionOrder {
		paired := turn.Pair(sessions[sessionID])
		report.Pairs += len(paired.Pairs)
		report.Malformed += len(paired.Unpaired)

		for _, pair := range paired.Pairs {
			o.flushPair(ctx, userID, pair, report)
		}
	}

	// The watermark only moves past entries whose pairs all reached a
	// terminal state. Trailing unpaired turns also hold it back so a
	// later agent turn can still complete them.
	if o.config.Watermarks != nil && report.Clean() && report.Malformed == 0 {
		if err := o.config.Watermarks.Set(userID, since+len(entries)); err != nil {
			o.logger.Warn("watermark update failed", "user_id", userID, "error", err)
		}
	}

	return report
}

// flushPair takes one pair through dedup, embedding, and commit, updating
// the report with its terminal state.
func (o *Orchestrator) flushPair(ctx context.Context, userID string, pair turn.TurnPair, report *Report) {
	fingerprint := pair.Fingerprint()

	committed, err := o.config.Dedupe.IsCommitted(ctx, userID, fingerprint)
	if err != nil {
		o.logger.Warn("dedup check failed, pair deferred",
			"user_id", userID,
			"fingerprint", fingerprint,
			"error", err,
		)
		report.Deferred++
		return
	}
	if committed {
		report.Skipped++
		return
	}

	importance := pair.Importance()
	sides := []struct {
		side string
		text string
	}{
		{vector.SideUser, pair.User.Text},
		{vector.SideAgent, pair.Agent.Text},
		{vector.SideSummary, pair.Summary()},
	}

	now := time.Now().UTC()
	records := make([]vector.Record, 0, len(sides))
	for _, s := range sides {
		embedding, err := o.config.Embedder.Embed(ctx, s.text)
		if err != nil {
			// No partial commits: if any side fails to embed, the whole
			// pair waits for the next run.
			o.logger.Warn("embedding failed, pair deferred",
				"user_id", userID,
				"fingerprint", fingerprint,
				"side", s.side,
				"error", err,
			)
			report.Deferred++
			return
		}

		records = append(records, vector.Record{
			ID:          vector.RecordID(userID, fingerprint, s.side),
			UserID:      userID,
			SessionID:   pair.SessionID(),
			TurnIndex:   pair.User.Index,
			Fingerprint: fingerprint,
			Side:        s.side,
			Text:        s.text,
			Importance:  importance,
			Embedding:   embedding,
			CommittedAt: now,
		})
	}

	if err := o.config.Vector.Upsert(ctx, records); err != nil {
		o.logger.Error("commit failed",
			"user_id", userID,
			"fingerprint", fingerprint,
			"error", err,
		)
		report.Failed++
		return
	}

	o.config.Dedupe.MarkCommitted(userID, fingerprint)
	report.Stored++

	o.publishCommitted(ctx, userID, pair, fingerprint, importance, records)
}

// publishCommitted emits the committed event. Publishing is observability,
// not part of the commit: an error here is logged and the pair stays stored.
func (o *Orchestrator) publishCommitted(ctx context.Context, userID string, pair turn.TurnPair, fingerprint, importance string, records []vector.Record) {
	if o.config.Events == nil {
		return
	}

	recordIDs := make([]string, 0, len(records))
	for _, r := range records {
		recordIDs = append(recordIDs, r.ID)
	}

	event := &eventstream.RecordCommittedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeRecordCommitted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		UserID:        userID,
		SessionID:     pair.SessionID(),
		TurnIndex:     pair.User.Index,
		Fingerprint:   fingerprint,
		Importance:    importance,
		RecordIDs:     recordIDs,
	}

	if err := o.config.Events.PublishRecordCommitted(ctx, event); err != nil {
		o.logger.Warn("event publish failed",
			"user_id", userID,
			"fingerprint", fingerprint,
			"error", err,
		)
	}
}
