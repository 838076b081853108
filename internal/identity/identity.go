// Package identity implements the deterministic short-ID scheme that makes
// cached GitHub events addressable from a terminal. A short ID is the first
// five hex chars of SHA-256 over the repo and the full GitHub node ID, so the
// same comment ID across forks yields distinct handles.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// ShortIDLength is the number of hex chars in a short ID.
const ShortIDLength = 5

// Kind classifies a user-supplied identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindPRNumber
	KindShortID
	KindFullID
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindPRNumber:
		return "pr_number"
	case KindShortID:
		return "short_id"
	case KindFullID:
		return "full_id"
	default:
		return "unknown"
	}
}

var (
	prNumberPattern = regexp.MustCompile(`^[0-9]+$`)
	shortIDPattern  = regexp.MustCompile(`^@?[a-fA-F0-9]{4,5}$`)
	fullIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_=-]{12,}$`)
)

// GenerateShortID returns the deterministic 5-hex handle for a full GitHub
// node ID within a repo.
func GenerateShortID(fullID, repo string) string {
	sum := sha256.Sum256([]byte(repo + "\x00" + fullID))
	return hex.EncodeToString(sum[:])[:ShortIDLength]
}

// Classify decides how a user-supplied identifier should be resolved.
// Decimal digits are a PR number, 4-5 hex chars (optionally prefixed with @
// or wrapped in brackets) are a short ID, and long node-ID-shaped strings
// are full IDs. Everything else is unknown.
func Classify(input string) Kind {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return KindUnknown
	}

	if prNumberPattern.MatchString(s) {
		return KindPRNumber
	}
	if shortIDPattern.MatchString(s) {
		return KindShortID
	}
	if fullIDPattern.MatchString(s) {
		return KindFullID
	}
	return KindUnknown
}

// Normalize strips the optional brackets and @ prefix from a short ID and
// lowercases it. The result is the bare 4-5 hex form used for lookups.
func Normalize(input string) string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimPrefix(s, "@")
	return strings.ToLower(s)
}

// FormatDisplayID renders a bare short ID in its user-facing form, "[@xxxxx]".
func FormatDisplayID(shortID string) string {
	return "[@" + strings.ToLower(strings.TrimPrefix(shortID, "@")) + "]"
}

// ParseDisplayID is the inverse of FormatDisplayID; it accepts any of the
// accepted short-ID spellings and returns the bare form.
func ParseDisplayID(display string) string {
	return Normalize(display)
}
