// Package fingerprint generates stable identifiers for normalized findings.
//
// Parsers keep the scanner's own fingerprint when it is usable and fall back
// to a SHA-256 over the finding's location otherwise. Fingerprints are
// informational: the deduplication engine groups by message similarity and
// never compares them.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode"
)

// maxSourceLen bounds fingerprints taken verbatim from a report.
const maxSourceLen = 256

// Input is what a generated fingerprint covers. A finding with a file and a
// start line is identified by its location alone; anything else also mixes
// in the message.
type Input struct {
	RuleID   string
	FilePath string
	Message  string

	StartLine int
	EndLine   int
}

// Located reports whether in carries a file and line.
func (in Input) Located() bool {
	return in.FilePath != "" && in.StartLine > 0
}

// key is the canonical text that gets hashed. Path and rule comparisons
// ignore case and separator style.
func (in Input) key() string {
	fields := []string{
		canonical(in.FilePath),
		canonical(in.RuleID),
		strconv.Itoa(in.StartLine),
		strconv.Itoa(in.EndLine),
	}
	if in.Located() {
		return "loc\x00" + strings.Join(fields, "\x00")
	}
	return "msg\x00" + strings.Join(append(fields, canonical(in.Message)), "\x00")
}

// Generate returns the hex SHA-256 of in.
func Generate(in Input) string {
	return Hash(in.key())
}

// Usable reports whether a scanner-provided fingerprint can be kept as is.
// Placeholders such as "requires login" are rejected.
func Usable(s string) bool {
	if s == "" || len(s) > maxSourceLen {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || !unicode.IsPrint(r)
	}) < 0
}

// Resolve returns source, trimmed, when it is usable and Generate(in)
// otherwise.
func Resolve(source string, in Input) string {
	if source = strings.TrimSpace(source); Usable(source) {
		return source
	}
	return Generate(in)
}

// Hash returns the hex SHA-256 of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func canonical(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), `\`, "/"))
}
