package providers

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Fingerprint returns the hex-encoded SHA-256 over the parts that define
// a record's content identity. Adapters feed it the normalized title,
// body, and the provider's last-modified signal so any content change
// produces a new fingerprint while re-fetches of unchanged content do not.
func Fingerprint(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(h[:])
}

// timeSignal renders an optional timestamp for fingerprint input.
func timeSignal(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
