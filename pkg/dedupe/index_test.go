package dedupe_test

import (
	"context"
	"errors"
	"log/slog"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/dedupe"
	testutils "github.com/papercomputeco/recall/pkg/utils/test"
	"github.com/papercomputeco/recall/pkg/vector"
)

var _ = Describe("Index", func() {
	var (
		driver *testutils.MockVectorDriver
		index  *dedupe.Index
		ctx    context.Context
	)

	BeforeEach(func() {
		driver = testutils.NewMockVectorDriver()
		var err error
		index, err = dedupe.NewIndex(driver, slog.New(slog.DiscardHandler))
		Expect(err).NotTo(HaveOccurred())
		ctx = context.Background()
	})

	AfterEach(func() {
		index.Close()
	})

	commit := func(user, fingerprint string) {
		r := vector.Record{
			ID:          vector.RecordID(user, fingerprint, vector.SideSummary),
			UserID:      user,
			Fingerprint: fingerprint,
			Side:        vector.SideSummary,
			CommittedAt: time.Now(),
		}
		Expect(driver.Upsert(ctx, []vector.Record{r})).To(Succeed())
	}

	It("reports uncommitted pairs as not committed", func() {
		committed, err := index.IsCommitted(ctx, "u1", "fp1")
		Expect(err).NotTo(HaveOccurred())
		Expect(committed).To(BeFalse())
	})

	It("finds commits already in the store", func() {
		commit("u1", "fp1")

		committed, err := index.IsCommitted(ctx, "u1", "fp1")
		Expect(err).NotTo(HaveOccurred())
		Expect(committed).To(BeTrue())
	})

	It("scopes committed state to the user", func() {
		commit("u1", "fp1")

		committed, err := index.IsCommitted(ctx, "u2", "fp1")
		Expect(err).NotTo(HaveOccurred())
		Expect(committed).To(BeFalse())
	})

	It("answers from the cache after MarkCommitted even if the store is down", func() {
		index.MarkCommitted("u1", "fp1")

		// Ristretto applies sets asynchronously.
		Eventually(func() (bool, error) {
			driver.ExistsErr = errors.New("store down")
			return index.IsCommitted(ctx, "u1", "fp1")
		}).Should(BeTrue())
	})

	It("propagates store errors on a cache miss", func() {
		driver.ExistsErr = errors.New("store down")

		_, err := index.IsCommitted(ctx, "u1", "fp1")
		Expect(err).To(HaveOccurred())
	})
})
