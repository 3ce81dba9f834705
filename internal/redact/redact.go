// Package redact removes secrets from anything destined for a log line.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Marker replaces any redacted value.
const Marker = "[REDACTED]"

// sensitiveKey matches object keys whose values must never be logged.
var sensitiveKey = regexp.MustCompile(`(?i)(key|token|secret|password|authorization)`)

// tokenValue matches string values that look like credentials regardless of
// the key they sit under: bearer headers and vendor API-key prefixes.
var tokenValue = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+\S+`),
	regexp.MustCompile(`\bsk-[A-Za-z0-9_\-]{8,}\b`),
	regexp.MustCompile(`\bpplx-[A-Za-z0-9_\-]{8,}\b`),
	regexp.MustCompile(`\bsk-ant-[A-Za-z0-9_\-]{8,}\b`),
}

// String applies pattern-based redaction to a single string value.
func String(s string) string {
	for _, re := range tokenValue {
		s = re.ReplaceAllString(s, Marker)
	}
	return s
}

// Deep walks maps, slices and strings, replacing values under sensitive
// keys with the marker and scrubbing credential-shaped substrings
// everywhere else. Non-container, non-string values pass through.
func Deep(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if sensitiveKey.MatchString(k) {
				out[k] = Marker
				continue
			}
			out[k] = Deep(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Deep(inner)
		}
		return out
	case string:
		return String(val)
	default:
		return v
	}
}

// HashPrompt returns a short one-way hash of the concatenated system and
// user prompts, so log lines can correlate requests to prompt versions
// without carrying prompt text.
func HashPrompt(system, user string) string {
	sum := sha256.Sum256([]byte(system + "\x00" + user))
	return hex.EncodeToString(sum[:])[:16]
}
