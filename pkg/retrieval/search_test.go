package retrieval_test

import (
	"context"
	"errors"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/buffer/inmemory"
	"github.com/papercomputeco/recall/pkg/retrieval"
	"github.com/papercomputeco/recall/pkg/turn"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
	"github.com/papercomputeco/recall/pkg/vector"
)

var _ = Describe("Service", func() {
	var (
		buf      *inmemory.Driver
		store    *testutils.MockVectorDriver
		embedder *testutils.MockEmbedder
		service  *retrieval.Service
		ctx      context.Context
	)

	logger := slog.New(slog.DiscardHandler)

	appendTurn := func(user, session string, idx int, role turn.Role, text string) {
		Expect(buf.Append(ctx, buffer.Entry{
			UserID:     user,
			SessionID:  session,
			TurnIndex:  idx,
			Role:       role,
			Text:       text,
			AppendedAt: time.Now(),
		})).To(Succeed())
	}

	commitSummary := func(user, fingerprint, text string, emb []float32) {
		Expect(store.Upsert(ctx, []vector.Record{{
			ID:          vector.RecordID(user, fingerprint, vector.SideSummary),
			UserID:      user,
			SessionID:   "old-session",
			Fingerprint: fingerprint,
			Side:        vector.SideSummary,
			Text:        text,
			Importance:  "medium",
			Embedding:   emb,
			CommittedAt: time.Now(),
		}})).To(Succeed())
	}

	BeforeEach(func() {
		buf = inmemory.NewDriver()
		store = testutils.NewMockVectorDriver()
		embedder = testutils.NewMockEmbedder()
		ctx = context.Background()

		service = retrieval.NewService(&retrieval.Config{
			Buffer:   buf,
			Vector:   store,
			Embedder: embedder,
			Logger:   logger,
		})
	})

	It("ranks durable hits before buffer hits", func() {
		embedder.Embeddings["cats"] = []float32{1, 0, 0}
		commitSummary("u1", "fp-cats", "Q: cats? A: yes cats", []float32{1, 0, 0})

		appendTurn("u1", "s1", 0, turn.RoleUser, "more about cats")
		appendTurn("u1", "s1", 1, turn.RoleAgent, "buffered cats answer")

		results, err := service.Search(ctx, "u1", "cats", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Source).To(Equal(retrieval.SourceDurable))
		Expect(results[0].Text).To(Equal("Q: cats? A: yes cats"))
		Expect(results[1].Source).To(Equal(retrieval.SourceBuffer))
	})

	It("finds a just-appended pair before any flush has run", func() {
		appendTurn("u1", "s1", 0, turn.RoleUser, "remember my wifi password is hunter2")
		appendTurn("u1", "s1", 1, turn.RoleAgent, "noted")

		results, err := service.Search(ctx, "u1", "wifi", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Source).To(Equal(retrieval.SourceBuffer))
		Expect(results[0].Importance).To(Equal(turn.ImportanceHigh))
	})

	It("does not return a committed pair twice", func() {
		appendTurn("u1", "s1", 0, turn.RoleUser, "about dogs")
		appendTurn("u1", "s1", 1, turn.RoleAgent, "dogs bark")

		fingerprint := turn.Fingerprint("about dogs", "dogs bark")
		embedder.Embeddings["dogs"] = []float32{0, 1, 0}
		commitSummary("u1", fingerprint, "Q: about dogs A: dogs bark", []float32{0, 1, 0})

		results, err := service.Search(ctx, "u1", "dogs", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Source).To(Equal(retrieval.SourceDurable))
	})

	It("never returns another user's memories", func() {
		commitSummary("u2", "fp-x", "their secret", []float32{0.1, 0.2, 0.3})
		appendTurn("u2", "s1", 0, turn.RoleUser, "their buffered secret")
		appendTurn("u2", "s1", 1, turn.RoleAgent, "ok")

		results, err := service.Search(ctx, "u1", "secret", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(BeEmpty())
	})

	It("degrades to buffer-only when the embedder is down", func() {
		embedder.FailAll = true
		appendTurn("u1", "s1", 0, turn.RoleUser, "buffered fact")
		appendTurn("u1", "s1", 1, turn.RoleAgent, "ok")

		results, err := service.Search(ctx, "u1", "buffered", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Source).To(Equal(retrieval.SourceBuffer))
	})

	It("degrades to buffer-only when the durable store is down", func() {
		store.QueryErr = errors.New("store down")
		appendTurn("u1", "s1", 0, turn.RoleUser, "buffered fact")
		appendTurn("u1", "s1", 1, turn.RoleAgent, "ok")

		results, err := service.Search(ctx, "u1", "buffered", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Source).To(Equal(retrieval.SourceBuffer))
	})

	It("truncates to topK", func() {
		for i := range 5 {
			appendTurn("u1", "s1", i*2, turn.RoleUser, "fact")
			appendTurn("u1", "s1", i*2+1, turn.RoleAgent, "answer")
		}

		results, err := service.Search(ctx, "u1", "fact", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
	})

	It("finds a user turn whose answer has not arrived yet", func() {
		appendTurn("u1", "s1", 0, turn.RoleUser, "remember my wifi password is hunter2")

		results, err := service.Search(ctx, "u1", "wifi", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(1))
		Expect(results[0].Source).To(Equal(retrieval.SourceBuffer))
		Expect(results[0].Text).To(Equal("remember my wifi password is hunter2"))
		Expect(results[0].TurnIndex).To(Equal(0))
	})

	It("orders an unpaired turn by recency among pairs", func() {
		appendTurn("u1", "s1", 0, turn.RoleUser, "older fact")
		appendTurn("u1", "s1", 1, turn.RoleAgent, "older answer")
		appendTurn("u1", "s1", 2, turn.RoleUser, "newest fact still unanswered")

		results, err := service.Search(ctx, "u1", "fact", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].TurnIndex).To(Equal(2))
		Expect(results[0].Text).To(Equal("newest fact still unanswered"))
		Expect(results[1].TurnIndex).To(Equal(0))
	})

	It("returns buffer hits newest first", func() {
		appendTurn("u1", "s1", 0, turn.RoleUser, "older fact")
		appendTurn("u1", "s1", 1, turn.RoleAgent, "older answer")
		appendTurn("u1", "s1", 2, turn.RoleUser, "newer fact")
		appendTurn("u1", "s1", 3, turn.RoleAgent, "newer answer")

		results, err := service.Search(ctx, "u1", "fact", 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(2))
		Expect(results[0].TurnIndex).To(Equal(2))
		Expect(results[1].TurnIndex).To(Equal(0))
	})
})
