// Package qdrant provides a Qdrant-backed vector driver.
//
// Records map to Qdrant points: the deterministic record ID is the point ID,
// the embedding is the point vector, and everything else rides in the
// payload. The dedup existence check is an exact payload-filtered count over
// (user_id, fingerprint), the same metadata the search path filters on.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/papercomputeco/recall/pkg/vector"
)

// DefaultCollectionName is the default collection for memory records.
const DefaultCollectionName = "recall_memories"

// Config holds configuration for the Qdrant driver.
type Config struct {
	// Host is the Qdrant gRPC host (e.g., "localhost").
	Host string

	// Port is the Qdrant gRPC port (e.g., 6334).
	Port int

	// CollectionName defaults to DefaultCollectionName if empty.
	CollectionName string

	// Dimensions is the embedding vector size. Required; the collection
	// is created with it on first use.
	Dimensions uint64
}

// Driver implements vector.Driver using the Qdrant gRPC client.
type Driver struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewDriver connects to Qdrant and ensures the collection exists.
func NewDriver(ctx context.Context, c Config, logger *slog.Logger) (*Driver, error) {
	if c.Host == "" {
		return nil, fmt.Errorf("qdrant host is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	collection := c.CollectionName
	if collection == "" {
		collection = DefaultCollectionName
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: c.Host,
		Port: c.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vector.ErrBackendUnavailable, err)
	}

	d := &Driver{
		client:     client,
		collection: collection,
		logger:     logger,
	}

	if err := d.ensureCollection(ctx, c.Dimensions); err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("qdrant vector driver initialized",
		"host", c.Host,
		"port", c.Port,
		"collection", collection,
		"dimensions", c.Dimensions,
	)

	return d, nil
}

func (d *Driver) ensureCollection(ctx context.Context, dims uint64) error {
	exists, err := d.client.CollectionExists(ctx, d.collection)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", vector.ErrBackendUnavailable, err)
	}
	if exists {
		return nil
	}

	err = d.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: d.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dims,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection %s: %v", vector.ErrBackendUnavailable, d.collection, err)
	}

	return nil
}

// Upsert stores records as points keyed by their deterministic IDs. Writes
// wait for the operation to land so a successful return means the dedup
// check will see the record.
func (d *Driver) Upsert(ctx context.Context, records []vector.Record) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(r.ID),
			Vectors: qdrant.NewVectors(r.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				"user_id":      r.UserID,
				"session_id":   r.SessionID,
				"turn_index":   int64(r.TurnIndex),
				"fingerprint":  r.Fingerprint,
				"side":         r.Side,
				"text":         r.Text,
				"importance":   r.Importance,
				"committed_at": r.CommittedAt.UTC().Format(time.RFC3339Nano),
			}),
		})
	}

	_, err := d.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting %d points: %v", vector.ErrBackendUnavailable, len(points), err)
	}

	d.logger.Debug("upserted records to qdrant", "count", len(points))

	return nil
}

// Query runs a user-scoped similarity search.
func (d *Driver) Query(ctx context.Context, userID string, embedding []float32, topK int, side string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch("user_id", userID),
	}
	if side != "" {
		must = append(must, qdrant.NewMatch("side", side))
	}

	points, err := d.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: d.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		Filter:         &qdrant.Filter{Must: must},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying: %v", vector.ErrBackendUnavailable, err)
	}

	results := make([]vector.QueryResult, 0, len(points))
	for _, p := range points {
		results = append(results, vector.QueryResult{
			Record: recordFromPayload(p.GetId().GetUuid(), p.GetPayload()),
			Score:  p.GetScore(),
		})
	}

	d.logger.Debug("queried qdrant", "user_id", userID, "results", len(results))

	return results, nil
}

// Exists reports whether any record with the user and fingerprint has been
// committed, via an exact filtered count.
func (d *Driver) Exists(ctx context.Context, userID, fingerprint string) (bool, error) {
	count, err := d.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: d.collection,
		Exact:          qdrant.PtrOf(true),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("user_id", userID),
				qdrant.NewMatch("fingerprint", fingerprint),
			},
		},
	})
	if err != nil {
		return false, fmt.Errorf("%w: counting points: %v", vector.ErrBackendUnavailable, err)
	}

	return count > 0, nil
}

// Fetch retrieves records by their IDs, embeddings included.
func (d *Driver) Fetch(ctx context.Context, ids []string) ([]vector.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	points, err := d.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: d.collection,
		Ids:            pointIDs,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching %d points: %v", vector.ErrBackendUnavailable, len(ids), err)
	}

	records := make([]vector.Record, 0, len(points))
	for _, p := range points {
		r := recordFromPayload(p.GetId().GetUuid(), p.GetPayload())
		r.Embedding = p.GetVectors().GetVector().GetData()
		records = append(records, r)
	}

	return records, nil
}

// Delete removes records by their IDs.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewID(id))
	}

	_, err := d.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: d.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return fmt.Errorf("%w: deleting %d points: %v", vector.ErrBackendUnavailable, len(ids), err)
	}

	return nil
}

// Close releases the gRPC connection.
func (d *Driver) Close() error {
	return d.client.Close()
}

func recordFromPayload(id string, payload map[string]*qdrant.Value) vector.Record {
	r := vector.Record{
		ID:          id,
		UserID:      payload["user_id"].GetStringValue(),
		SessionID:   payload["session_id"].GetStringValue(),
		TurnIndex:   int(payload["turn_index"].GetIntegerValue()),
		Fingerprint: payload["fingerprint"].GetStringValue(),
		Side:        payload["side"].GetStringValue(),
		Text:        payload["text"].GetStringValue(),
		Importance:  payload["importance"].GetStringValue(),
	}

	if ts := payload["committed_at"].GetStringValue(); ts != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			r.CommittedAt = parsed
		}
	}

	return r
}

// Ensure Driver implements vector.Driver.
var _ vector.Driver = (*Driver)(nil)
