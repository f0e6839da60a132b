package dedup

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const minTokenRuneLen = 3

var (
	pathPattern    = regexp.MustCompile(`(?:[\w.\-]*[/\\])+[\w.\-]+\.\w+`)
	linePattern    = regexp.MustCompile(`(?i)line\s*\d+`)
	lineColPattern = regexp.MustCompile(`:\d+:\d+`)
	quotedPattern  = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	numberPattern  = regexp.MustCompile(`\b\d+\b`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// NormalizeMessage strips positional detail from a message so findings that
// differ only in paths, line numbers, quoted names or numbers compare equal.
func NormalizeMessage(msg string) string {
	s := strings.ToLower(msg)
	s = pathPattern.ReplaceAllString(s, "FILE_PATH")
	s = linePattern.ReplaceAllString(s, "line LINE_NUMBER")
	s = lineColPattern.ReplaceAllString(s, ":LINE:COL")
	s = quotedPattern.ReplaceAllString(s, "QUOTED_STRING")
	s = numberPattern.ReplaceAllString(s, "NUMBER")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens splits a normalized message on whitespace and drops tokens shorter
// than three characters.
func Tokens(normalized string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(normalized) {
		if utf8.RuneCountInString(tok) >= minTokenRuneLen {
			set[tok] = struct{}{}
		}
	}
	return set
}

// Similarity returns the Jaccard index of the token sets of two messages.
// Messages that normalize identically score 1.
func Similarity(a, b string) float64 {
	return similarityNormalized(NormalizeMessage(a), NormalizeMessage(b))
}

func similarityNormalized(a, b string) float64 {
	if a == b {
		return 1
	}
	return jaccard(Tokens(a), Tokens(b))
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
