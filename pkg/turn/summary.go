package turn

import (
	"strings"
	"unicode/utf8"
)

const (
	summaryUserLimit  = 200
	summaryAgentLimit = 300
)

// Importance levels attached to committed records. High-importance pairs
// contain explicit instruction language; everything else is medium.
const (
	ImportanceHigh   = "high"
	ImportanceMedium = "medium"
)

var importanceKeywords = []string{"remember", "important", "always", "never", "rule"}

// Summary builds the searchable one-line summary text for a pair. The
// truncation limits are fixed so the same pair always produces the same
// summary, which keeps the summary embedding stable across re-ingestion.
func (p TurnPair) Summary() string {
	return "Q: " + truncate(p.User.Text, summaryUserLimit) +
		" A: " + truncate(p.Agent.Text, summaryAgentLimit)
}

// Importance classifies the pair by scanning both sides for instruction
// keywords.
func (p TurnPair) Importance() string {
	combined := strings.ToLower(p.User.Text + " " + p.Agent.Text)
	for _, kw := range importanceKeywords {
		if strings.Contains(combined, kw) {
			return ImportanceHigh
		}
	}
	return ImportanceMedium
}

// truncate cuts s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
