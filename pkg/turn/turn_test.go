package turn_test

import (
	"strings"
	"time"
	"unicode/utf8"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/recall/pkg/turn"
)

var _ = Describe("Fingerprint", func() {
	It("is stable across timestamps and sessions", func() {
		a := turn.TurnPair{
			User:  turn.Turn{SessionID: "s1", Index: 0, Role: turn.RoleUser, Text: "What is 2+2?", CreatedAt: time.Now()},
			Agent: turn.Turn{SessionID: "s1", Index: 1, Role: turn.RoleAgent, Text: "4", CreatedAt: time.Now()},
		}
		b := turn.TurnPair{
			User:  turn.Turn{SessionID: "s2", Index: 7, Role: turn.RoleUser, Text: "What is 2+2?", CreatedAt: time.Now().Add(-24 * time.Hour)},
			Agent: turn.Turn{SessionID: "s2", Index: 8, Role: turn.RoleAgent, Text: "4", CreatedAt: time.Now().Add(-24 * time.Hour)},
		}

		Expect(a.Fingerprint()).To(Equal(b.Fingerprint()))
	})

	It("differs when either side differs", func() {
		base := turn.Fingerprint("hello", "hi")
		Expect(turn.Fingerprint("hello", "hey")).NotTo(Equal(base))
		Expect(turn.Fingerprint("hello there", "hi")).NotTo(Equal(base))
	})

	It("ignores leading and trailing whitespace", func() {
		Expect(turn.Fingerprint("  hello ", "hi\n")).To(Equal(turn.Fingerprint("hello", "hi")))
	})

	It("keeps the separator out of side content ambiguity", func() {
		Expect(turn.Fingerprint("a::b", "c")).NotTo(Equal(turn.Fingerprint("a", "b::c")))
	})

	It("produces a 64-character hex digest", func() {
		Expect(turn.Fingerprint("q", "a")).To(HaveLen(64))
	})
})

var _ = Describe("Pair", func() {
	mk := func(role turn.Role, idx int, text string) turn.Turn {
		return turn.Turn{SessionID: "s1", Index: idx, Role: role, Text: text}
	}

	It("pairs a user turn with the next agent turn", func() {
		paired := turn.Pair([]turn.Turn{
			mk(turn.RoleUser, 0, "q1"),
			mk(turn.RoleAgent, 1, "a1"),
			mk(turn.RoleUser, 2, "q2"),
			mk(turn.RoleAgent, 3, "a2"),
		})

		Expect(paired.Pairs).To(HaveLen(2))
		Expect(paired.Unpaired).To(BeEmpty())
		Expect(paired.Pairs[0].User.Text).To(Equal("q1"))
		Expect(paired.Pairs[0].Agent.Text).To(Equal("a1"))
		Expect(paired.Pairs[1].User.Text).To(Equal("q2"))
	})

	It("emits a trailing user turn as unpaired", func() {
		paired := turn.Pair([]turn.Turn{
			mk(turn.RoleUser, 0, "q1"),
			mk(turn.RoleAgent, 1, "a1"),
			mk(turn.RoleUser, 2, "dangling"),
		})

		Expect(paired.Pairs).To(HaveLen(1))
		Expect(paired.Unpaired).To(HaveLen(1))
		Expect(paired.Unpaired[0].Text).To(Equal("dangling"))
	})

	It("emits an agent turn with no preceding user as unpaired", func() {
		paired := turn.Pair([]turn.Turn{
			mk(turn.RoleAgent, 0, "orphan"),
			mk(turn.RoleUser, 1, "q1"),
			mk(turn.RoleAgent, 2, "a1"),
		})

		Expect(paired.Pairs).To(HaveLen(1))
		Expect(paired.Unpaired).To(HaveLen(1))
		Expect(paired.Unpaired[0].Text).To(Equal("orphan"))
	})

	It("supersedes an unanswered user turn with the next user turn", func() {
		paired := turn.Pair([]turn.Turn{
			mk(turn.RoleUser, 0, "ignored"),
			mk(turn.RoleUser, 1, "q1"),
			mk(turn.RoleAgent, 2, "a1"),
		})

		Expect(paired.Pairs).To(HaveLen(1))
		Expect(paired.Pairs[0].User.Text).To(Equal("q1"))
		Expect(paired.Unpaired).To(HaveLen(1))
		Expect(paired.Unpaired[0].Text).To(Equal("ignored"))
	})

	It("returns nothing for empty input", func() {
		paired := turn.Pair(nil)
		Expect(paired.Pairs).To(BeEmpty())
		Expect(paired.Unpaired).To(BeEmpty())
	})
})

var _ = Describe("Normalize", func() {
	It("produces an empty sequence for an empty log", func() {
		out := turn.Normalize(nil)
		Expect(out.Turns).To(BeEmpty())
		Expect(out.Malformed).To(BeZero())
	})

	It("converts entries and assigns per-session indexes", func() {
		out := turn.Normalize([]turn.RawEntry{
			{Role: "user", Text: "hi", SessionID: "s1"},
			{Role: "assistant", Text: "hello", SessionID: "s1"},
			{Role: "user", Text: "other", SessionID: "s2"},
		})

		Expect(out.Turns).To(HaveLen(3))
		Expect(out.Turns[0].Index).To(Equal(0))
		Expect(out.Turns[1].Index).To(Equal(1))
		Expect(out.Turns[1].Role).To(Equal(turn.RoleAgent))
		Expect(out.Turns[2].Index).To(Equal(0))
	})

	It("accepts content as a fallback text field", func() {
		out := turn.Normalize([]turn.RawEntry{
			{Role: "user", Content: "from content", SessionID: "s1"},
		})

		Expect(out.Turns).To(HaveLen(1))
		Expect(out.Turns[0].Text).To(Equal("from content"))
	})

	It("drops and counts entries missing a role", func() {
		out := turn.Normalize([]turn.RawEntry{
			{Text: "no role", SessionID: "s1"},
			{Role: "user", Text: "ok", SessionID: "s1"},
		})

		Expect(out.Turns).To(HaveLen(1))
		Expect(out.Malformed).To(Equal(1))
	})

	It("drops and counts entries missing text", func() {
		out := turn.Normalize([]turn.RawEntry{
			{Role: "user", SessionID: "s1"},
		})

		Expect(out.Turns).To(BeEmpty())
		Expect(out.Malformed).To(Equal(1))
	})

	It("returns ErrMalformedLog from NormalizeEntry", func() {
		_, err := turn.NormalizeEntry(turn.RawEntry{Role: "user"}, 0)
		Expect(err).To(MatchError(turn.ErrMalformedLog))
	})
})

var _ = Describe("Decode", func() {
	It("decodes a JSON array", func() {
		entries, err := turn.Decode([]byte(`[{"role":"user","text":"hi","session_id":"s1"}]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Role).To(Equal("user"))
	})

	It("decodes JSONL", func() {
		data := []byte("{\"role\":\"user\",\"text\":\"hi\"}\n{\"role\":\"agent\",\"text\":\"hello\"}\n")
		entries, err := turn.Decode(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
	})

	It("returns nothing for empty input", func() {
		entries, err := turn.Decode([]byte("  \n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(BeEmpty())
	})

	It("errors on invalid JSON", func() {
		_, err := turn.Decode([]byte(`{"role":`))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Summary", func() {
	It("builds the Q/A summary line", func() {
		p := turn.TurnPair{
			User:  turn.Turn{Text: "What is 2+2?"},
			Agent: turn.Turn{Text: "4"},
		}
		Expect(p.Summary()).To(Equal("Q: What is 2+2? A: 4"))
	})

	It("truncates long sides on rune boundaries", func() {
		p := turn.TurnPair{
			User:  turn.Turn{Text: "a" + strings.Repeat("ü", 200)},
			Agent: turn.Turn{Text: "a" + strings.Repeat("日", 200)},
		}
		summary := p.Summary()
		Expect(utf8.ValidString(summary)).To(BeTrue())
		Expect(summary).To(HavePrefix("Q: aü"))
	})

	It("classifies instruction language as high importance", func() {
		p := turn.TurnPair{
			User:  turn.Turn{Text: "Always remember my birthday"},
			Agent: turn.Turn{Text: "Noted"},
		}
		Expect(p.Importance()).To(Equal(turn.ImportanceHigh))
	})

	It("defaults to medium importance", func() {
		p := turn.TurnPair{
			User:  turn.Turn{Text: "hello"},
			Agent: turn.Turn{Text: "hi"},
		}
		Expect(p.Importance()).To(Equal(turn.ImportanceMedium))
	})
})
