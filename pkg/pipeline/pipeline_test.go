package pipeline_test

import (
	"context"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/buffer/inmemory"
	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/dedupe"
	"github.com/papercomputeco/recall/pkg/flush"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/pipeline"
	"github.com/papercomputeco/recall/pkg/retrieval"
	"github.com/papercomputeco/recall/pkg/turn"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
	"github.com/papercomputeco/recall/pkg/vector/sqlitevec"
)

var _ = Describe("Pipeline", func() {
	var (
		ctx context.Context
		cfg *config.Config
	)

	log := logger.Nop()

	BeforeEach(func() {
		ctx = context.Background()

		cfg = config.NewDefaultConfig()
		cfg.Buffer.Provider = "inmemory"
		cfg.VectorStore.Provider = "sqlite-vec"
		cfg.VectorStore.Target = filepath.Join(GinkgoT().TempDir(), "recall.db")
	})

	It("assembles every component from config", func() {
		p, err := pipeline.New(ctx, cfg, GinkgoT().TempDir(), log)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p.Buffer).NotTo(BeNil())
		Expect(p.Vector).NotTo(BeNil())
		Expect(p.Embedder).NotTo(BeNil())
		Expect(p.Dedupe).NotTo(BeNil())
		Expect(p.Flusher).NotTo(BeNil())
		Expect(p.Retriever).NotTo(BeNil())
	})

	It("leaves the event publisher nil when events are disabled", func() {
		p, err := pipeline.New(ctx, cfg, "", log)
		Expect(err).NotTo(HaveOccurred())
		defer p.Close()

		Expect(p.Events).To(BeNil())
	})

	It("works without a data dir", func() {
		p, err := pipeline.New(ctx, cfg, "", log)
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("rejects an unknown buffer provider", func() {
		cfg.Buffer.Provider = "etcd"

		_, err := pipeline.New(ctx, cfg, "", log)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("buffer provider"))
	})

	It("rejects an unknown vector store provider", func() {
		cfg.VectorStore.Provider = "pinecone"

		_, err := pipeline.New(ctx, cfg, "", log)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("vector store provider"))
	})

	It("rejects an unknown embedding provider", func() {
		cfg.Embedding.Provider = "openai"

		_, err := pipeline.New(ctx, cfg, "", log)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("embedding provider"))
	})
})

var _ = Describe("Append to search", func() {
	appendPair := func(ctx context.Context, buf *inmemory.Driver, session string, idx int, question, answer string) {
		Expect(buf.Append(ctx, buffer.Entry{
			UserID:     "u1",
			SessionID:  session,
			TurnIndex:  idx,
			Role:       turn.RoleUser,
			Text:       question,
			AppendedAt: time.Now(),
		})).To(Succeed())
		Expect(buf.Append(ctx, buffer.Entry{
			UserID:     "u1",
			SessionID:  session,
			TurnIndex:  idx + 1,
			Role:       turn.RoleAgent,
			Text:       answer,
			AppendedAt: time.Now(),
		})).To(Succeed())
	}

	It("walks a pair from buffer through flush into ranked search", func() {
		ctx := context.Background()
		log := logger.Nop()

		buf := inmemory.NewDriver()
		store, err := sqlitevec.NewDriver(sqlitevec.Config{
			DBPath:     filepath.Join(GinkgoT().TempDir(), "recall.db"),
			Dimensions: 3,
		}, log)
		Expect(err).NotTo(HaveOccurred())
		defer store.Close()

		embedder := testutils.NewMockEmbedder()

		index, err := dedupe.NewIndex(store, log)
		Expect(err).NotTo(HaveOccurred())
		defer index.Close()

		flusher, err := flush.NewOrchestrator(&flush.Config{
			Buffer:   buf,
			Vector:   store,
			Embedder: embedder,
			Dedupe:   index,
			Logger:   log,
		})
		Expect(err).NotTo(HaveOccurred())

		retriever := retrieval.NewService(&retrieval.Config{
			Buffer:   buf,
			Vector:   store,
			Embedder: embedder,
			Logger:   log,
		})

		appendPair(ctx, buf, "s1", 0, "remember my wifi password is hunter2", "noted")

		first, err := flusher.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Stored).To(Equal(1))

		// A repeated run converges instead of duplicating.
		second, err := flusher.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Stored).To(BeZero())
		Expect(second.Skipped).To(Equal(1))

		appendPair(ctx, buf, "s2", 0, "what was the wifi again", "hunter2")

		results, err := retriever.Search(ctx, "u1", "wifi", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Source).To(Equal(retrieval.SourceDurable))
		Expect(results[0].Text).To(HavePrefix("Q: remember my wifi"))
		Expect(results[1].Source).To(Equal(retrieval.SourceBuffer))
		Expect(results[1].SessionID).To(Equal("s2"))
	})
})
