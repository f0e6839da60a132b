// Package semgrep detects and normalizes Semgrep JSON output in both the
// legacy flat layout and the current start/end layout.
package semgrep

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/parsers/internal/rawjson"
	"github.com/exploopio/reportlens/pkg/report"
	"github.com/exploopio/reportlens/pkg/shared/fingerprint"
)

// snippetPlaceholder is what semgrep emits for lines when not logged in.
const snippetPlaceholder = "requires login"

// Detect reports whether raw is semgrep output.
//
// A non-empty results array qualifies when its first element has check_id,
// path, a legacy (line/column) or current (start.line/start.col) position,
// and a severity at severity or extra.severity. An empty results array
// qualifies when errors is an array and paths or skipped_rules is present.
func Detect(raw any) bool {
	obj, ok := rawjson.Object(raw)
	if !ok {
		return false
	}
	results, ok := rawjson.Array(obj["results"])
	if !ok {
		return false
	}

	if len(results) == 0 {
		if _, ok := rawjson.Array(obj["errors"]); !ok {
			return false
		}
		_, hasSkipped := obj["skipped_rules"]
		return rawjson.Has(obj, "paths") || hasSkipped
	}

	first, ok := rawjson.Object(results[0])
	if !ok {
		return false
	}
	if !rawjson.Has(first, "check_id") || !rawjson.Has(first, "path") {
		return false
	}
	if !hasLegacyPosition(first) && !hasNestedPosition(first, "start") {
		return false
	}
	if rawjson.Has(first, "severity") {
		return true
	}
	sev, ok := rawjson.Path(first, "extra", "severity")
	return ok && sev != nil
}

func hasLegacyPosition(result map[string]any) bool {
	_, line := rawjson.Number(result["line"])
	_, col := rawjson.Number(result["column"])
	return line && col
}

func hasNestedPosition(result map[string]any, key string) bool {
	line, _ := rawjson.Path(result, key, "line")
	col, _ := rawjson.Path(result, key, "col")
	_, okLine := rawjson.Number(line)
	_, okCol := rawjson.Number(col)
	return okLine && okCol
}

// IsNewFormat classifies the output layout. Any result with start/end
// positions, a skipped_rules key, or a version of at least 1.107.0 means the
// current layout. The classification only affects the tool label.
func IsNewFormat(raw any) bool {
	obj, ok := rawjson.Object(raw)
	if !ok {
		return false
	}
	results, _ := rawjson.Array(obj["results"])
	for _, r := range results {
		if res, ok := rawjson.Object(r); ok {
			if hasNestedPosition(res, "start") || hasNestedPosition(res, "end") {
				return true
			}
		}
	}
	if _, ok := obj["skipped_rules"]; ok {
		return true
	}
	version, _ := rawjson.String(obj["version"])
	major, minor, ok := parseVersion(version)
	if !ok {
		return false
	}
	return major > 1 || (major == 1 && minor >= 107)
}

// parseVersion reads the first two dotted integers of v.
func parseVersion(v string) (major, minor int, ok bool) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	if len(parts) < 2 {
		return 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

// ToolLabel renders the summary tool name for a semgrep run.
func ToolLabel(version string, newFormat bool) string {
	layout := "(legacy format)"
	if newFormat {
		layout = "(new format)"
	}
	if version == "" {
		return "Semgrep " + layout
	}
	return fmt.Sprintf("Semgrep v%s %s", version, layout)
}

// ParseBytes parses semgrep JSON from bytes.
func ParseBytes(data []byte) (*report.Parsed, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.E(errors.KindInvalidInput, "semgrep.ParseBytes", "invalid JSON", err)
	}
	return Parse(raw)
}

// Parse normalizes already-decoded semgrep output.
func Parse(raw any) (*report.Parsed, error) {
	const op = "semgrep.Parse"

	if _, ok := rawjson.Object(raw); !ok {
		return nil, errors.Wrap(errors.ErrNotObject, op)
	}

	var rep Report
	if err := report.Decode(raw, &rep); err != nil {
		return nil, errors.E(errors.KindMalformedReport, op, "decode semgrep output", err)
	}

	results := make([]report.Result, 0, len(rep.Results))
	for i := range rep.Results {
		results = append(results, convertResult(&rep.Results[i], i))
	}

	toolName := ToolLabel(rep.Version, IsNewFormat(raw))
	return &report.Parsed{
		Format:  report.FormatSemgrep,
		Results: results,
		Summary: report.BuildSummary(results, toolName, rep.Version, report.FormatSemgrep),
		RawData: raw,
	}, nil
}

// MergeMetadata overlays extra.metadata on the top-level metadata.
func MergeMetadata(r *Result) map[string]any {
	merged := make(map[string]any, len(r.Metadata)+len(r.Extra.Metadata))
	for k, v := range r.Metadata {
		merged[k] = v
	}
	for k, v := range r.Extra.Metadata {
		merged[k] = v
	}
	return merged
}

// decodeMetadata types the merged metadata. Metadata that does not fit the
// expected shape is dropped rather than failing the report.
func decodeMetadata(r *Result) Metadata {
	var md Metadata
	merged := MergeMetadata(r)
	if len(merged) == 0 {
		return md
	}
	if err := report.Decode(merged, &md); err != nil {
		return Metadata{}
	}
	return md
}

func convertResult(r *Result, index int) report.Result {
	md := decodeMetadata(r)

	ruleID := r.CheckID
	if ruleID == "" {
		ruleID = report.UnknownRule
	}
	file := r.Path
	if file == "" {
		file = report.UnknownFile
	}

	message := r.Extra.Message
	if message == "" {
		message = r.Message
	}
	if message == "" {
		message = ruleID
	}

	level := r.Extra.Severity
	if level == "" {
		level = r.Severity
	}

	out := report.Result{
		ID:       fmt.Sprintf("semgrep-%d", index),
		RuleID:   ruleID,
		RuleName: lastSegment(ruleID),
		Message:  message,
		Severity: ResolveSeverity(r, &md),
		Level:    strings.ToLower(level),
		File:     file,
		Tags:     ExtractTags(&md),
		Metadata: report.Properties{},
	}

	if r.Start != nil && (r.Start.Line > 0 || r.Start.Col > 0) {
		out.StartLine, out.StartColumn = r.Start.Line, r.Start.Col
	} else {
		out.StartLine, out.StartColumn = r.Line, r.Column
	}
	if r.End != nil && (r.End.Line > 0 || r.End.Col > 0) {
		out.EndLine, out.EndColumn = r.End.Line, r.End.Col
	} else {
		out.EndLine, out.EndColumn = r.EndLine, r.EndColumn
	}

	if lines := strings.TrimRight(r.Extra.Lines, "\n"); lines != "" && lines != snippetPlaceholder {
		out.Snippet = lines
	}

	out.Description = BuildDescription(message, r.Extra.Fix, &md)

	out.Metadata["fingerprint"] = fingerprint.Resolve(r.Extra.Fingerprint, fingerprint.Input{
		RuleID:    ruleID,
		FilePath:  file,
		StartLine: out.StartLine,
		EndLine:   out.EndLine,
	})
	if r.Extra.EngineKind != "" {
		out.Metadata["engineKind"] = r.Extra.EngineKind
	}
	if r.Extra.ValidationState != "" {
		out.Metadata["validationState"] = r.Extra.ValidationState
	}
	if r.Extra.IsIgnored {
		out.Metadata["ignored"] = true
	}
	if md.Impact != "" {
		out.Metadata["impact"] = md.Impact.String()
	}
	if md.Likelihood != "" {
		out.Metadata["likelihood"] = md.Likelihood.String()
	}

	return out
}

// lastSegment returns the part of a dotted check id after the last dot.
func lastSegment(checkID string) string {
	if i := strings.LastIndex(checkID, "."); i >= 0 && i < len(checkID)-1 {
		return checkID[i+1:]
	}
	return checkID
}
