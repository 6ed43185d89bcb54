// Package harvest ingests session log files into the ephemeral buffer.
//
// Harvesting is append-only and deliberately tolerant of re-reads: running
// it twice over the same logs duplicates entries in the buffer, and the
// commit path's dedup collapses them. That keeps the harvester free of any
// per-file bookkeeping that could lose turns when it drifts from reality.
package harvest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/turn"
)

// Config holds configuration for the harvester.
type Config struct {
	// Buffer receives the harvested turns.
	Buffer buffer.Driver

	// UserID is the owner the harvested turns are attributed to.
	UserID string

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Harvester reads session logs and appends their turns to the buffer.
type Harvester struct {
	config *Config
	logger *slog.Logger
}

// NewHarvester validates config and creates a harvester.
func NewHarvester(c *Config) (*Harvester, error) {
	if c.Buffer == nil {
		return nil, fmt.Errorf("buffer driver is required")
	}
	if c.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	return &Harvester{
		config: c,
		logger: c.Logger,
	}, nil
}

// ScanSessionDir finds all JSON and JSONL session files under the directory.
func ScanSessionDir(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".jsonl") || strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Run harvests every session file under dir.
func (h *Harvester) Run(ctx context.Context, dir string) (*Result, error) {
	files, err := ScanSessionDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning session directory: %w", err)
	}

	result := &Result{}
	for _, f := range files {
		fileResult, err := h.HarvestFile(ctx, f)
		if err != nil {
			h.logger.Warn("skipping session file", "path", f, "error", err)
			result.SkippedFiles++
			continue
		}
		result.add(fileResult)
	}
	result.Files = len(files)

	h.logger.Info("harvest complete",
		"files", result.Files,
		"appended", result.Appended,
		"malformed", result.Malformed,
		"skipped_files", result.SkippedFiles,
	)

	return result, nil
}

// HarvestFile parses one session file and appends its turns to the buffer.
// The session defaults to the file's base name when entries carry none.
func (h *Harvester) HarvestFile(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	entries, err := turn.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding session file: %w", err)
	}

	defaultSession := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range entries {
		if entries[i].SessionID == "" {
			entries[i].SessionID = defaultSession
		}
	}

	normalized := turn.Normalize(entries)

	result := &Result{
		Entries:   len(entries),
		Malformed: normalized.Malformed,
	}

	now := time.Now().UTC()
	for _, t := range normalized.Turns {
		appendedAt := t.CreatedAt
		if appendedAt.IsZero() {
			appendedAt = now
		}

		err := h.config.Buffer.Append(ctx, buffer.Entry{
			UserID:     h.config.UserID,
			SessionID:  t.SessionID,
			TurnIndex:  t.Index,
			Role:       t.Role,
			Text:       t.Text,
			AppendedAt: appendedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("appending harvested turn: %w", err)
		}
		result.Appended++
	}

	return result, nil
}
