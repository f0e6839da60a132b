// Package severity provides the unified severity scale for security findings
// and the mappings from scanner-specific vocabularies onto it.
//
// Every mapping in this package is total: unrecognized input degrades to Info
// instead of returning an error.
package severity

import (
	"cmp"
	"encoding/json"
	"slices"
	"strconv"
	"strings"
)

// Level is one of the five unified severities.
type Level string

const (
	Critical Level = "critical"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
	Info     Level = "info"
)

// ordered lists the levels from most to least severe.
var ordered = [...]Level{Critical, High, Medium, Low, Info}

// aliases maps lower-cased scanner vocabulary onto the unified scale.
var aliases = map[string]Level{
	"critical": Critical,
	"blocker":  Critical,
	"high":     High,
	"major":    High,
	"error":    High,
	"medium":   Medium,
	"moderate": Medium,
	"warning":  Medium,
	"low":      Low,
	"minor":    Low,
}

// scoreFloors are the inclusive lower bounds of the CVSS bands.
var scoreFloors = []struct {
	min   float64
	level Level
}{
	{9.0, Critical},
	{7.0, High},
	{4.0, Medium},
	{1.0, Low},
}

// AllLevels returns the levels from most to least severe.
func AllLevels() []Level {
	return ordered[:]
}

func (l Level) String() string {
	return string(l)
}

func (l Level) IsValid() bool {
	return slices.Contains(ordered[:], l)
}

// Rank is the display position: critical is 0, info is 4 and anything
// outside the scale is 5.
func (l Level) Rank() int {
	if i := slices.Index(ordered[:], l); i >= 0 {
		return i
	}
	return len(ordered)
}

// Priority grows with severity: info is 1, critical is 5 and anything
// outside the scale is 0.
func (l Level) Priority() int {
	return len(ordered) - l.Rank()
}

func (l Level) IsHigherThan(other Level) bool {
	return l.Priority() > other.Priority()
}

// Normalize maps a free-form severity string onto a Level, ignoring case
// and surrounding whitespace. Unknown words, "note" and "" become Info.
func Normalize(s string) Level {
	if l, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return Info
}

// FromScore maps a CVSS-style score onto a Level. Band floors are 9.0, 7.0,
// 4.0 and 1.0; anything lower is Info.
func FromScore(score float64) Level {
	for _, f := range scoreFloors {
		if score >= f.min {
			return f.level
		}
	}
	return Info
}

// ParseScore extracts a numeric score from a decoded JSON value. Scanners
// emit "security-severity" both as a number and as a numeric string.
func ParseScore(v any) (float64, bool) {
	switch s := v.(type) {
	case float64:
		return s, true
	case float32:
		return float64(s), true
	case int:
		return float64(s), true
	case int64:
		return float64(s), true
	case json.Number:
		f, err := s.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

// FromScoreValue maps a decoded "security-severity" value to a Level. The
// boolean is false when v does not hold a usable score.
func FromScoreValue(v any) (Level, bool) {
	score, ok := ParseScore(v)
	if !ok {
		return "", false
	}
	return FromScore(score), true
}

// Compare orders a and b by severity, returning -1, 0 or +1.
func Compare(a, b Level) int {
	return cmp.Compare(a.Priority(), b.Priority())
}

// Max returns the more severe of a and b.
func Max(a, b Level) Level {
	if a.IsHigherThan(b) {
		return a
	}
	return b
}

// CountBySeverity tallies findings per level.
type CountBySeverity struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

func (c *CountBySeverity) slot(l Level) *int {
	switch l {
	case Critical:
		return &c.Critical
	case High:
		return &c.High
	case Medium:
		return &c.Medium
	case Low:
		return &c.Low
	}
	return &c.Info
}

// Increment counts one finding. Values outside the scale count as Info.
func (c *CountBySeverity) Increment(l Level) {
	*c.slot(l)++
	c.Total++
}

// Map returns the counts keyed by level with all five levels present.
func (c *CountBySeverity) Map() map[Level]int {
	m := make(map[Level]int, len(ordered))
	for _, l := range ordered {
		m[l] = *c.slot(l)
	}
	return m
}
