package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/buffer"
	"github.com/papercomputeco/recall/pkg/buffer/inmemory"
	"github.com/papercomputeco/recall/pkg/turn"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
	)

	entry := func(user string, idx int, text string, at time.Time) buffer.Entry {
		return buffer.Entry{
			UserID:     user,
			SessionID:  "s1",
			TurnIndex:  idx,
			Role:       turn.RoleUser,
			Text:       text,
			AppendedAt: at,
		}
	}

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
	})

	It("implements buffer.Driver", func() {
		var _ buffer.Driver = (*inmemory.Driver)(nil)
	})

	Describe("Append and Scan", func() {
		It("preserves per-user append order", func() {
			now := time.Now()
			Expect(driver.Append(ctx, entry("u1", 0, "first", now))).To(Succeed())
			Expect(driver.Append(ctx, entry("u1", 1, "second", now))).To(Succeed())

			entries, err := driver.Scan(ctx, "u1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Text).To(Equal("first"))
			Expect(entries[1].Text).To(Equal("second"))
		})

		It("scans from the given position", func() {
			now := time.Now()
			for i := range 5 {
				Expect(driver.Append(ctx, entry("u1", i, "t", now))).To(Succeed())
			}

			entries, err := driver.Scan(ctx, "u1", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].TurnIndex).To(Equal(3))
		})

		It("returns nothing past the end", func() {
			entries, err := driver.Scan(ctx, "u1", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})

		It("isolates users", func() {
			now := time.Now()
			Expect(driver.Append(ctx, entry("u1", 0, "mine", now))).To(Succeed())
			Expect(driver.Append(ctx, entry("u2", 0, "theirs", now))).To(Succeed())

			entries, err := driver.Scan(ctx, "u1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Text).To(Equal("mine"))
		})
	})

	Describe("Users", func() {
		It("lists users with buffered entries", func() {
			now := time.Now()
			Expect(driver.Append(ctx, entry("u1", 0, "a", now))).To(Succeed())
			Expect(driver.Append(ctx, entry("u2", 0, "b", now))).To(Succeed())

			users, err := driver.Users(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(users).To(ConsistOf("u1", "u2"))
		})
	})

	Describe("Prune", func() {
		It("removes only entries older than the cutoff", func() {
			old := time.Now().Add(-48 * time.Hour)
			fresh := time.Now()
			Expect(driver.Append(ctx, entry("u1", 0, "old", old))).To(Succeed())
			Expect(driver.Append(ctx, entry("u1", 1, "fresh", fresh))).To(Succeed())

			removed, err := driver.Prune(ctx, time.Now().Add(-24*time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(1))

			entries, err := driver.Scan(ctx, "u1", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Text).To(Equal("fresh"))
		})

		It("removes nothing when everything is fresh", func() {
			Expect(driver.Append(ctx, entry("u1", 0, "fresh", time.Now()))).To(Succeed())

			removed, err := driver.Prune(ctx, time.Now().Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(BeZero())
		})
	})
})
