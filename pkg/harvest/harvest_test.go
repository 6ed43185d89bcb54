package harvest_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/buffer/inmemory"
	"github.com/papercomputeco/recall/pkg/harvest"
	"github.com/papercomputeco/recall/pkg/turn"
)

var _ = Describe("Harvester", func() {
	var (
		buf       *inmemory.Driver
		harvester *harvest.Harvester
		dir       string
		ctx       context.Context
	)

	logger := slog.New(slog.DiscardHandler)

	writeFile := func(name, content string) string {
		path := filepath.Join(dir, name)
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	BeforeEach(func() {
		buf = inmemory.NewDriver()
		dir = GinkgoT().TempDir()
		ctx = context.Background()

		var err error
		harvester, err = harvest.NewHarvester(&harvest.Config{
			Buffer: buf,
			UserID: "u1",
			Logger: logger,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a buffer and a user", func() {
		_, err := harvest.NewHarvester(&harvest.Config{UserID: "u1", Logger: logger})
		Expect(err).To(HaveOccurred())

		_, err = harvest.NewHarvester(&harvest.Config{Buffer: buf, Logger: logger})
		Expect(err).To(HaveOccurred())
	})

	It("appends JSONL session turns to the buffer", func() {
		writeFile("session-a.jsonl",
			`{"role":"user","text":"hello"}
{"role":"assistant","text":"hi there"}
`)

		result, err := harvester.Run(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Files).To(Equal(1))
		Expect(result.Appended).To(Equal(2))

		entries, err := buf.Scan(ctx, "u1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(entries[0].Role).To(Equal(turn.RoleUser))
		Expect(entries[0].SessionID).To(Equal("session-a"))
		Expect(entries[1].Role).To(Equal(turn.RoleAgent))
	})

	It("handles JSON array session files", func() {
		writeFile("session-b.json",
			`[{"role":"user","text":"q"},{"role":"agent","text":"a"}]`)

		result, err := harvester.Run(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Appended).To(Equal(2))
	})

	It("keeps a session id present in the entries", func() {
		writeFile("whatever.jsonl",
			`{"role":"user","text":"q","session_id":"real-session"}
`)

		_, err := harvester.Run(ctx, dir)
		Expect(err).NotTo(HaveOccurred())

		entries, err := buf.Scan(ctx, "u1", 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries[0].SessionID).To(Equal("real-session"))
	})

	It("counts malformed entries without aborting the file", func() {
		writeFile("session-c.jsonl",
			`{"role":"user","text":"good"}
{"role":"user"}
{"text":"no role"}
`)

		result, err := harvester.Run(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Appended).To(Equal(1))
		Expect(result.Malformed).To(Equal(2))
	})

	It("skips unreadable files and harvests the rest", func() {
		writeFile("good.jsonl", `{"role":"user","text":"fine"}
`)
		writeFile("bad.json", `{invalid`)

		result, err := harvester.Run(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Appended).To(Equal(1))
		Expect(result.SkippedFiles).To(Equal(1))
	})

	It("ignores non-session files", func() {
		writeFile("notes.txt", "not a session")

		result, err := harvester.Run(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Files).To(BeZero())
	})
})
