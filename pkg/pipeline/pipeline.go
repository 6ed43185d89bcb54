// Package pipeline assembles the memory pipeline from configuration.
//
// The flush, search, and serve commands all need the same wiring: a buffer
// driver, a vector driver, an embedder, the dedupe index, and the services
// built on top of them. Assembling them in one place keeps the commands
// thin and guarantees they agree on provider construction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/recall/pkg/buffer"
	bufferutils "github.com/papercomputeco/recall/pkg/buffer/utils"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dedupe"
	"github.com/papercomputeco/recall/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/recall/pkg/embeddings/utils"
	"github.com/papercomputeco/recall/pkg/eventstream"
	"github.com/papercomputeco/recall/pkg/eventstream/kafka"
	"github.com/papercomputeco/recall/pkg/flush"
	"github.com/papercomputeco/recall/pkg/retrieval"
	"github.com/papercomputeco/recall/pkg/vector"
	vectorutils "github.com/papercomputeco/recall/pkg/vector/utils"
)

// Pipeline holds every wired component. Close releases them in reverse
// construction order.
type Pipeline struct {
	Buffer    buffer.Driver
	Vector    vector.Driver
	Embedder  embeddings.Embedder
	Dedupe    *dedupe.Index
	Events    eventstream.Publisher
	Flusher   *flush.Orchestrator
	Retriever *retrieval.Service

	logger *slog.Logger
}

// New builds the full pipeline from cfg. dataDir is where watermarks are
// persisted; pass "" to disable watermarks and scan full buffers each run.
func New(ctx context.Context, cfg *config.Config, dataDir string, logger *slog.Logger) (*Pipeline, error) {
	p := &Pipeline{logger: logger}

	buf, err := bufferutils.NewBufferDriver(ctx, &bufferutils.NewBufferDriverOpts{
		ProviderType: cfg.Buffer.Provider,
		TargetURL:    cfg.Buffer.Target,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating buffer driver: %w", err)
	}
	p.Buffer = buf

	store, err := vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType:   cfg.VectorStore.Provider,
		TargetURL:      cfg.VectorStore.Target,
		CollectionName: cfg.VectorStore.Collection,
		Dimensions:     cfg.Embedding.Dimensions,
		Logger:         logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}
	p.Vector = store

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	p.Embedder = embeddings.NewRetryEmbedder(embedder, logger)

	index, err := dedupe.NewIndex(store, logger)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating dedupe index: %w", err)
	}
	p.Dedupe = index

	if cfg.Events.Enabled {
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Events.Brokers,
			Topic:   cfg.Events.Topic,
		}, logger)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating event publisher: %w", err)
		}
		p.Events = publisher
	}

	var watermarks *flush.WatermarkStore
	if dataDir != "" {
		watermarks, err = flush.NewWatermarkStore(dataDir)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("creating watermark store: %w", err)
		}
	}

	flusher, err := flush.NewOrchestrator(&flush.Config{
		Buffer:     buf,
		Vector:     store,
		Embedder:   p.Embedder,
		Dedupe:     index,
		Events:     p.Events,
		Watermarks: watermarks,
		NumWorkers: cfg.Flush.Workers,
		Logger:     logger,
	})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("creating flush orchestrator: %w", err)
	}
	p.Flusher = flusher

	p.Retriever = retrieval.NewService(&retrieval.Config{
		Buffer:   buf,
		Vector:   store,
		Embedder: p.Embedder,
		Window:   cfg.Retrieval.BufferWindow,
		Logger:   logger,
	})

	return p, nil
}

// Close releases all held components. Safe on partially constructed pipelines.
func (p *Pipeline) Close() error {
	var errs []error

	if p.Events != nil {
		if err := p.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing event publisher: %w", err))
		}
	}
	if p.Dedupe != nil {
		p.Dedupe.Close()
	}
	if p.Embedder != nil {
		if err := p.Embedder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedder: %w", err))
		}
	}
	if p.Vector != nil {
		if err := p.Vector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector driver: %w", err))
		}
	}
	if p.Buffer != nil {
		if err := p.Buffer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing buffer driver: %w", err))
		}
	}

	return errors.Join(errs...)
}
