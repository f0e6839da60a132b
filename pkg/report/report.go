// Package report defines the unified finding model shared by every parser,
// the deduplication engine and the output layers.
package report

import (
	"encoding/json"

	"github.com/exploopio/reportlens/pkg/shared/severity"
)

// Sentinels used when a source omits a required field.
const (
	UnknownRule = "unknown-rule"
	UnknownFile = "unknown-file"
)

// Format identifies the schema a report was detected as.
type Format string

const (
	FormatSARIF      Format = "sarif"
	FormatSemgrep    Format = "semgrep"
	FormatGitLabSAST Format = "gitlab-sast"
)

// AllFormats returns the supported formats in detection order.
func AllFormats() []Format {
	return []Format{FormatSARIF, FormatSemgrep, FormatGitLabSAST}
}

// String returns the format tag.
func (f Format) String() string {
	return string(f)
}

// Properties is an open bag for format-specific extras.
// The deduplication engine never interprets it.
type Properties map[string]any

// Result is a single normalized finding.
// Line and column fields are zero when the source has no location detail.
type Result struct {
	ID          string         `json:"id"`
	RuleID      string         `json:"ruleId"`
	RuleName    string         `json:"ruleName"`
	Message     string         `json:"message"`
	Severity    severity.Level `json:"severity"`
	Level       string         `json:"level"`
	File        string         `json:"file"`
	StartLine   int            `json:"startLine,omitempty"`
	EndLine     int            `json:"endLine,omitempty"`
	StartColumn int            `json:"startColumn,omitempty"`
	EndColumn   int            `json:"endColumn,omitempty"`
	Snippet     string         `json:"snippet,omitempty"`
	Description string         `json:"description,omitempty"`
	Tags        []string       `json:"tags"`
	Metadata    Properties     `json:"metadata,omitempty"`
}

// Fingerprint returns metadata["fingerprint"] when set.
func (r *Result) Fingerprint() string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata["fingerprint"].(string)
	return s
}

// Summary aggregates a result set.
type Summary struct {
	TotalFindings  int                    `json:"totalFindings"`
	CriticalCount  int                    `json:"criticalCount"`
	HighCount      int                    `json:"highCount"`
	MediumCount    int                    `json:"mediumCount"`
	LowCount       int                    `json:"lowCount"`
	InfoCount      int                    `json:"infoCount"`
	SeverityCounts map[severity.Level]int `json:"severityCounts,omitempty"`
	FilesAffected  int                    `json:"filesAffected"`
	ToolName       string                 `json:"toolName"`
	ToolVersion    string                 `json:"toolVersion,omitempty"`
	Format         Format                 `json:"format"`
}

// Counts returns the per-severity counts keyed by level.
// When SeverityCounts is missing it is derived from the flat fields.
func (s *Summary) Counts() map[severity.Level]int {
	if s.SeverityCounts != nil {
		return s.SeverityCounts
	}
	c := severity.CountBySeverity{
		Critical: s.CriticalCount,
		High:     s.HighCount,
		Medium:   s.MediumCount,
		Low:      s.LowCount,
		Info:     s.InfoCount,
	}
	return c.Map()
}

// Parsed is the outcome of detecting and parsing one report.
type Parsed struct {
	Format  Format   `json:"format"`
	Results []Result `json:"results"`
	Summary *Summary `json:"summary"`
	RawData any      `json:"-"`
}

// BuildSummary aggregates results into a Summary for the given tool and format.
func BuildSummary(results []Result, toolName, toolVersion string, format Format) *Summary {
	var counts severity.CountBySeverity
	files := make(map[string]struct{}, len(results))
	for i := range results {
		counts.Increment(results[i].Severity)
		files[results[i].File] = struct{}{}
	}

	return &Summary{
		TotalFindings:  counts.Total,
		CriticalCount:  counts.Critical,
		HighCount:      counts.High,
		MediumCount:    counts.Medium,
		LowCount:       counts.Low,
		InfoCount:      counts.Info,
		SeverityCounts: counts.Map(),
		FilesAffected:  len(files),
		ToolName:       toolName,
		ToolVersion:    toolVersion,
		Format:         format,
	}
}

// Decode converts an already-decoded JSON value into a typed structure.
func Decode(raw any, v any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// TagSet collects tags once each, in insertion order.
type TagSet struct {
	seen map[string]struct{}
	list []string
}

// Add appends non-empty tags not already present.
func (t *TagSet) Add(tags ...string) {
	if t.seen == nil {
		t.seen = make(map[string]struct{})
	}
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		if _, ok := t.seen[tag]; ok {
			continue
		}
		t.seen[tag] = struct{}{}
		t.list = append(t.list, tag)
	}
}

// Slice returns the collected tags. It is never nil.
func (t *TagSet) Slice() []string {
	if t.list == nil {
		return []string{}
	}
	return t.list
}
