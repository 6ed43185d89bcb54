// Package sqlitevec provides a SQLite-backed vector driver using sqlite-vec,
// for single-node deployments that do not run a networked vector store.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/recall/pkg/vector"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db     *sql.DB
	logger *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions for the embedding vectors.
	Dimensions uint
}

// NewDriver creates a new SQLite vector driver backed by sqlite-vec.
func NewDriver(c Config, logger *slog.Logger) (*Driver, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so record metadata lives in a
	// companion table that maps record IDs to rowids and carries the
	// payload columns the dedup index and search filters need.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_records (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			session_id TEXT NOT NULL DEFAULT '',
			turn_index INTEGER NOT NULL DEFAULT 0,
			fingerprint TEXT NOT NULL,
			side TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			importance TEXT NOT NULL DEFAULT '',
			committed_at TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_memory_records_dedup
		ON memory_records(user_id, fingerprint)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating dedup index: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS memory_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:     db,
		logger: logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Upsert stores records keyed by their deterministic IDs. An existing record
// ID is overwritten in place, which is what makes racing double-commits of
// the same pair converge on one record.
func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		embBlob := serializeFloat32(r.Embedding)
		committedAt := r.CommittedAt.UTC().Format(time.RFC3339Nano)

		var existingRowID int64
		err = tx.QueryRowContext(ctx,
			`SELECT rowid FROM memory_records WHERE record_id = ?`, r.ID,
		).Scan(&existingRowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE memory_records
				 SET user_id = ?, session_id = ?, turn_index = ?, fingerprint = ?,
				     side = ?, text = ?, importance = ?, committed_at = ?
				 WHERE rowid = ?`,
				r.UserID, r.SessionID, r.TurnIndex, r.Fingerprint,
				r.Side, r.Text, r.Importance, committedAt,
				existingRowID,
			); err != nil {
				return fmt.Errorf("updating record %s: %w", r.ID, err)
			}

			// vec0 does not support UPDATE; replace via DELETE + INSERT.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM memory_embeddings WHERE rowid = ?`, existingRowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for record %s: %w", r.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memory_embeddings(rowid, embedding) VALUES (?, ?)`,
				existingRowID, embBlob,
			); err != nil {
				return fmt.Errorf("re-inserting embedding for record %s: %w", r.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO memory_records(record_id, user_id, session_id, turn_index,
				     fingerprint, side, text, importance, committed_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID, r.UserID, r.SessionID, r.TurnIndex,
				r.Fingerprint, r.Side, r.Text, r.Importance, committedAt,
			)
			if err != nil {
				return fmt.Errorf("inserting record %s: %w", r.ID, err)
			}

			rowID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for record %s: %w", r.ID, err)
			}

			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memory_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, embBlob,
			); err != nil {
				return fmt.Errorf("inserting embedding for record %s: %w", r.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("upserted records to sqlite-vec", "count", len(records))

	return nil
}

// Query finds the topK records most similar to the embedding for one user.
// The KNN pass over-fetches before the metadata filter is applied, since
// vec0 cannot filter on joined columns inside the MATCH.
func (d *Driver) Query(ctx context.Context, userID string, embedding []float32, topK int, side string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	queryBlob := serializeFloat32(embedding)
	fetchK := topK * 8

	query := `
		SELECT
			r.record_id, r.user_id, r.session_id, r.turn_index,
			r.fingerprint, r.side, r.text, r.importance, r.committed_at,
			ve.distance
		FROM memory_embeddings ve
		INNER JOIN memory_records r ON r.rowid = ve.rowid
		WHERE ve.embedding MATCH ?
			AND ve.k = ?
			AND r.user_id = ?`
	args := []any{queryBlob, fetchK, userID}

	if side != "" {
		query += ` AND r.side = ?`
		args = append(args, side)
	}

	query += ` ORDER BY ve.distance LIMIT ?`
	args = append(args, topK)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var r vector.Record
		var committedAt string
		var distance float64
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.SessionID, &r.TurnIndex,
			&r.Fingerprint, &r.Side, &r.Text, &r.Importance, &committedAt,
			&distance,
		); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		r.CommittedAt = parseCommittedAt(committedAt)

		results = append(results, vector.QueryResult{
			Record: r,
			// Convert distance to similarity score: lower distance = higher similarity
			Score: float32(1.0 / (1.0 + distance)),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	d.logger.Debug("queried sqlite-vec", "user_id", userID, "results", len(results))

	return results, nil
}

// Exists reports whether any record with the user and fingerprint has been
// committed.
func (d *Driver) Exists(ctx context.Context, userID, fingerprint string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM memory_records WHERE user_id = ? AND fingerprint = ? LIMIT 1`,
		userID, fingerprint,
	).Scan(&one)

	switch err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("checking fingerprint: %w", err)
	}
}

// Fetch retrieves records by their IDs, embeddings included.
func (d *Driver) Fetch(ctx context.Context, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT r.record_id, r.user_id, r.session_id, r.turn_index,
			r.fingerprint, r.side, r.text, r.importance, r.committed_at,
			r.rowid
		FROM memory_records r
		WHERE r.record_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	// Collect results first so the rows cursor is closed before issuing
	// additional queries (SQLite uses a single connection).
	type recordRow struct {
		record vector.Record
		rowID  int64
	}
	var recordRows []recordRow

	for rows.Next() {
		var rr recordRow
		var committedAt string
		if err := rows.Scan(
			&rr.record.ID, &rr.record.UserID, &rr.record.SessionID, &rr.record.TurnIndex,
			&rr.record.Fingerprint, &rr.record.Side, &rr.record.Text, &rr.record.Importance,
			&committedAt, &rr.rowID,
		); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		rr.record.CommittedAt = parseCommittedAt(committedAt)
		recordRows = append(recordRows, rr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	rows.Close()

	records := make([]vector.Record, 0, len(recordRows))
	for _, rr := range recordRows {
		var embBlob []byte
		err := d.db.QueryRowContext(ctx,
			`SELECT embedding FROM memory_embeddings WHERE rowid = ?`, rr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			rr.record.Embedding, _ = deserializeFloat32(embBlob)
		}

		records = append(records, rr.record)
	}

	return records, nil
}

// Delete removes records by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	inClause := strings.Join(placeholders, ",")

	rows, err := tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM memory_records WHERE record_id IN (%s)`, inClause),
		args...,
	)
	if err != nil {
		return fmt.Errorf("querying rowids for deletion: %w", err)
	}

	var rowIDs []int64
	for rows.Next() {
		var rowID int64
		if err := rows.Scan(&rowID); err != nil {
			rows.Close()
			return fmt.Errorf("scanning rowid: %w", err)
		}
		rowIDs = append(rowIDs, rowID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating rowids: %w", err)
	}

	for _, rowID := range rowIDs {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM memory_embeddings WHERE rowid = ?`, rowID,
		); err != nil {
			return fmt.Errorf("deleting embedding rowid %d: %w", rowID, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM memory_records WHERE record_id IN (%s)`, inClause),
		args...,
	); err != nil {
		return fmt.Errorf("deleting records: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted records from sqlite-vec", "count", len(ids))

	return nil
}

// Close releases resources held by the driver.
func (d *Driver) Close() error {
	return d.db.Close()
}

func parseCommittedAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ensure Driver implements vector.Driver.
var _ vector.Driver = (*Driver)(nil)
