// Package sarif detects and normalizes SARIF v2.1.0 logs.
package sarif

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/parsers/internal/rawjson"
	"github.com/exploopio/reportlens/pkg/report"
	"github.com/exploopio/reportlens/pkg/shared/fingerprint"
	"github.com/exploopio/reportlens/pkg/shared/severity"
)

// SecuritySeverityKey is the property GitHub code scanning reads CVSS-like scores from.
const SecuritySeverityKey = "security-severity"

const defaultToolName = "SARIF"

// Detect reports whether raw is a SARIF log: a string version and a runs
// array in which every run has tool.driver and a results array.
func Detect(raw any) bool {
	obj, ok := rawjson.Object(raw)
	if !ok {
		return false
	}
	if _, ok := rawjson.String(obj["version"]); !ok {
		return false
	}
	runs, ok := rawjson.Array(obj["runs"])
	if !ok {
		return false
	}
	for _, r := range runs {
		run, ok := rawjson.Object(r)
		if !ok {
			return false
		}
		if driver, ok := rawjson.Path(run, "tool", "driver"); !ok || driver == nil {
			return false
		}
		if _, ok := rawjson.Array(run["results"]); !ok {
			return false
		}
	}
	return true
}

// ParseBytes parses SARIF JSON from bytes.
func ParseBytes(data []byte) (*report.Parsed, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.E(errors.KindInvalidInput, "sarif.ParseBytes", "invalid JSON", err)
	}
	return Parse(raw)
}

// Parse normalizes an already-decoded SARIF log.
// A run without tool.driver is a malformed report.
func Parse(raw any) (*report.Parsed, error) {
	const op = "sarif.Parse"

	if _, ok := rawjson.Object(raw); !ok {
		return nil, errors.Wrap(errors.ErrNotObject, op)
	}

	var log Log
	if err := report.Decode(raw, &log); err != nil {
		return nil, errors.E(errors.KindMalformedReport, op, "decode SARIF log", err)
	}

	toolName, toolVersion := defaultToolName, ""
	results := make([]report.Result, 0)

	for runIdx := range log.Runs {
		run := &log.Runs[runIdx]
		if run.Tool == nil || run.Tool.Driver == nil {
			return nil, errors.E(errors.KindMalformedReport, op, fmt.Sprintf("run %d has no tool.driver", runIdx))
		}

		driver := run.Tool.Driver
		if driver.Name != "" {
			toolName = driver.Name
		}
		toolVersion = driver.Version
		if toolVersion == "" {
			toolVersion = driver.SemanticVersion
		}

		for resIdx := range run.Results {
			results = append(results, convertResult(run, &run.Results[resIdx], runIdx, resIdx))
		}
	}

	return &report.Parsed{
		Format:  report.FormatSARIF,
		Results: results,
		Summary: report.BuildSummary(results, toolName, toolVersion, report.FormatSARIF),
		RawData: raw,
	}, nil
}

// findRule looks the rule up in run.rules first, then tool.driver.rules.
func findRule(run *Run, id string) *Rule {
	for i := range run.Rules {
		if run.Rules[i].ID == id {
			return &run.Rules[i]
		}
	}
	if run.Tool != nil && run.Tool.Driver != nil {
		rules := run.Tool.Driver.Rules
		for i := range rules {
			if rules[i].ID == id {
				return &rules[i]
			}
		}
	}
	return nil
}

// ResolveSeverity tries the result score, the rule score, then the level.
func ResolveSeverity(result *Result, rule *Rule) severity.Level {
	if lvl, ok := severity.FromScoreValue(result.Properties[SecuritySeverityKey]); ok {
		return lvl
	}
	if rule != nil {
		if lvl, ok := severity.FromScoreValue(rule.Properties[SecuritySeverityKey]); ok {
			return lvl
		}
	}
	level := result.Level
	if level == "" {
		level = "info"
	}
	return severity.Normalize(level)
}

func convertResult(run *Run, r *Result, runIdx, resIdx int) report.Result {
	ruleID := r.RuleID
	if ruleID == "" {
		ruleID = report.UnknownRule
	}
	rule := findRule(run, ruleID)

	level := strings.ToLower(r.Level)
	if level == "" {
		level = "info"
	}

	out := report.Result{
		ID:       fmt.Sprintf("%d-%d", runIdx, resIdx),
		RuleID:   ruleID,
		RuleName: ruleName(rule, ruleID),
		Message:  resultMessage(r, rule, ruleID),
		Severity: ResolveSeverity(r, rule),
		Level:    level,
		File:     report.UnknownFile,
		Metadata: report.Properties{},
	}

	// Only the primary location is surfaced.
	var uriBase string
	if len(r.Locations) > 0 && r.Locations[0].PhysicalLocation != nil {
		pl := r.Locations[0].PhysicalLocation
		if pl.ArtifactLocation != nil && pl.ArtifactLocation.URI != "" {
			out.File = pl.ArtifactLocation.URI
			uriBase = pl.ArtifactLocation.URIBaseID
		}
		if reg := pl.Region; reg != nil {
			out.StartLine = reg.StartLine
			out.EndLine = reg.EndLine
			out.StartColumn = reg.StartColumn
			out.EndColumn = reg.EndColumn
			if reg.Snippet != nil {
				out.Snippet = reg.Snippet.Text
			}
		}
	}

	var tags report.TagSet
	if rule != nil {
		if rule.FullDescription != nil && rule.FullDescription.Text != "" {
			out.Description = rule.FullDescription.Text
		} else if rule.Help != nil && rule.Help.Text != "" {
			out.Description = rule.Help.Text
		}
		tags.Add(rawjson.Strings(rule.Properties["tags"])...)
		if rule.HelpURI != "" {
			out.Metadata["helpUri"] = rule.HelpURI
		}
	}
	out.Tags = tags.Slice()

	out.Metadata["fingerprint"] = fingerprint.Resolve(
		sourceFingerprint(r),
		fingerprint.Input{RuleID: ruleID, FilePath: out.File, StartLine: out.StartLine, EndLine: out.EndLine},
	)
	if r.Kind != "" {
		out.Metadata["kind"] = r.Kind
	}
	if r.BaselineState != "" {
		out.Metadata["baselineState"] = r.BaselineState
	}
	if len(r.Suppressions) > 0 {
		out.Metadata["suppressed"] = true
	}
	if uriBase != "" {
		out.Metadata["uriBaseId"] = uriBase
	}

	return out
}

func ruleName(rule *Rule, ruleID string) string {
	if rule != nil {
		if rule.Name != "" {
			return rule.Name
		}
		if rule.ShortDescription != nil && rule.ShortDescription.Text != "" {
			return rule.ShortDescription.Text
		}
	}
	return ruleID
}

func resultMessage(r *Result, rule *Rule, ruleID string) string {
	if r.Message.Text != "" {
		return r.Message.Text
	}
	if r.Message.Markdown != "" {
		return r.Message.Markdown
	}
	if rule != nil && rule.ShortDescription != nil && rule.ShortDescription.Text != "" {
		return rule.ShortDescription.Text
	}
	return ruleID
}

// sourceFingerprint picks the first fingerprint by key order, preferring
// full fingerprints over partial ones.
func sourceFingerprint(r *Result) string {
	for _, m := range []map[string]string{r.Fingerprints, r.PartialFingerprints} {
		if len(m) == 0 {
			continue
		}
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if fingerprint.Usable(m[k]) {
				return m[k]
			}
		}
	}
	return ""
}
