// Package redis provides a Redis-backed buffer driver.
//
// Each user's buffer is a Redis list under recall:buffer:<user_id>. RPUSH
// preserves per-user append order; LRANGE serves position-based scans, which
// is what the flush orchestrator's advisory watermarks index into.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papercomputeco/recall/pkg/buffer"
)

const keyPrefix = "recall:buffer:"

// Config holds configuration for the Redis buffer driver.
type Config struct {
	// Addr is the Redis address (e.g., "localhost:6379").
	Addr string

	// Password is the optional Redis auth password.
	Password string

	// DB is the Redis database number.
	DB int
}

// Driver implements buffer.Driver on a Redis list per user.
type Driver struct {
	client *redis.Client
	logger *slog.Logger
}

// NewDriver creates a Redis buffer driver and verifies connectivity.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: pinging redis at %s: %v", buffer.ErrConnection, c.Addr, err)
	}

	logger.Info("redis buffer driver initialized", "addr", c.Addr, "db", c.DB)

	return &Driver{client: client, logger: logger}, nil
}

// Append adds one entry to the tail of the user's list.
func (d *Driver) Append(ctx context.Context, entry buffer.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	if err := d.client.RPush(ctx, key(entry.UserID), data).Err(); err != nil {
		return fmt.Errorf("%w: appending entry: %v", buffer.ErrConnection, err)
	}

	d.logger.Debug("buffered entry",
		"user_id", entry.UserID,
		"session_id", entry.SessionID,
		"turn_index", entry.TurnIndex,
	)

	return nil
}

// Scan returns the user's entries from list position since onward.
func (d *Driver) Scan(ctx context.Context, userID string, since int) ([]buffer.Entry, error) {
	if since < 0 {
		since = 0
	}

	raw, err := d.client.LRange(ctx, key(userID), int64(since), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: scanning buffer for %s: %v", buffer.ErrConnection, userID, err)
	}

	entries := make([]buffer.Entry, 0, len(raw))
	for _, item := range raw {
		var e buffer.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			d.logger.Warn("skipping undecodable buffer item", "user_id", userID, "error", err)
			continue
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// Len returns the current length of the user's list.
func (d *Driver) Len(ctx context.Context, userID string) (int, error) {
	n, err := d.client.LLen(ctx, key(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: reading buffer length for %s: %v", buffer.ErrConnection, userID, err)
	}
	return int(n), nil
}

// Users returns every user with a buffer list.
func (d *Driver) Users(ctx context.Context) ([]string, error) {
	var users []string
	var cursor uint64

	for {
		keys, next, err := d.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: listing buffer keys: %v", buffer.ErrConnection, err)
		}

		for _, k := range keys {
			users = append(users, strings.TrimPrefix(k, keyPrefix))
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return users, nil
}

// Prune removes entries appended before the cutoff. Each user's list is
// rewritten atomically in a transaction pipeline; a concurrent append lands
// either before the rewrite (and is kept by the age filter) or after it.
func (d *Driver) Prune(ctx context.Context, olderThan time.Time) (int, error) {
	users, err := d.Users(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, userID := range users {
		n, err := d.pruneUser(ctx, userID, olderThan)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	d.logger.Info("pruned buffer", "removed", removed, "older_than", olderThan)

	return removed, nil
}

func (d *Driver) pruneUser(ctx context.Context, userID string, olderThan time.Time) (int, error) {
	entries, err := d.Scan(ctx, userID, 0)
	if err != nil {
		return 0, err
	}

	var kept [][]byte
	for _, e := range entries {
		if e.AppendedAt.Before(olderThan) {
			continue
		}
		data, err := json.Marshal(e)
		if err != nil {
			return 0, fmt.Errorf("marshaling kept entry: %w", err)
		}
		kept = append(kept, data)
	}

	removed := len(entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	pipe := d.client.TxPipeline()
	pipe.Del(ctx, key(userID))
	for _, data := range kept {
		pipe.RPush(ctx, key(userID), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: rewriting buffer for %s: %v", buffer.ErrConnection, userID, err)
	}

	return removed, nil
}

// Close releases the Redis client.
func (d *Driver) Close() error {
	return d.client.Close()
}

func key(userID string) string {
	return keyPrefix + userID
}
