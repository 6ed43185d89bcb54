package turn

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintSeparator joins the user and agent sides of a pair before
// hashing. Changing it would change every fingerprint, so it is fixed.
const fingerprintSeparator = "::"

// Fingerprint returns the hex-encoded SHA-256 digest of the pair content.
// It is deterministic and side-effect free: identical user/agent text always
// yields the same digest regardless of timestamps, session, or ingestion
// order. Leading and trailing whitespace does not affect the digest.
func Fingerprint(userText, agentText string) string {
	content := strings.TrimSpace(userText) + fingerprintSeparator + strings.TrimSpace(agentText)
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
