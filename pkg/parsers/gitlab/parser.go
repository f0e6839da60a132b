// Package gitlab detects and normalizes GitLab SAST security reports.
package gitlab

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/parsers/internal/rawjson"
	"github.com/exploopio/reportlens/pkg/report"
	"github.com/exploopio/reportlens/pkg/shared/fingerprint"
	"github.com/exploopio/reportlens/pkg/shared/severity"
)

const defaultToolName = "GitLab SAST"

// FalsePositiveFlag is the flag type GitLab analyzers set on likely false positives.
const FalsePositiveFlag = "flagged-as-likely-false-positive"

var semgrepIDMarker = regexp.MustCompile(`semgrep_id:([^:\s]+)`)

// nativeIdentifierTypes are scanner-specific identifier types echoed as tags by name.
var nativeIdentifierTypes = map[string]bool{
	"bandit_test_id":              true,
	"brakeman_warning_code":       true,
	"eslint_rule_id":              true,
	"find_sec_bugs_type":          true,
	"flawfinder_func_name":        true,
	"gosec_rule_id":               true,
	"njsscan_rule_type":           true,
	"phpcs_security_audit_source": true,
	"security_code_scan_rule_id":  true,
	"semgrep_type":                true,
}

// Detect reports whether raw is a GitLab SAST report: a string version and a
// vulnerabilities array. A non-empty array needs id, category, scanner,
// location and identifiers on its first entry; an empty one needs a scan object.
func Detect(raw any) bool {
	obj, ok := rawjson.Object(raw)
	if !ok {
		return false
	}
	if _, ok := rawjson.String(obj["version"]); !ok {
		return false
	}
	vulns, ok := rawjson.Array(obj["vulnerabilities"])
	if !ok {
		return false
	}
	if len(vulns) == 0 {
		_, ok := rawjson.Object(obj["scan"])
		return ok
	}

	first, ok := rawjson.Object(vulns[0])
	if !ok {
		return false
	}
	for _, key := range []string{"id", "category", "scanner", "location"} {
		if !rawjson.Has(first, key) {
			return false
		}
	}
	_, ok = rawjson.Array(first["identifiers"])
	return ok
}

// MapSeverity maps GitLab severities directly: critical, high, medium and low
// pass through case-insensitively, everything else is Info.
func MapSeverity(s string) severity.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return severity.Critical
	case "high":
		return severity.High
	case "medium":
		return severity.Medium
	case "low":
		return severity.Low
	default:
		return severity.Info
	}
}

// ResolveRuleID picks the rule id from, in order: a semgrep_id marker in cve,
// cve itself, a semgrep_id identifier, any identifier whose type mentions
// rule, check or id, and finally the vulnerability id.
func ResolveRuleID(v *Vulnerability) string {
	if v.CVE != "" {
		if m := semgrepIDMarker.FindStringSubmatch(v.CVE); m != nil {
			return m[1]
		}
		return v.CVE
	}
	for _, id := range v.Identifiers {
		if strings.EqualFold(id.Type, "semgrep_id") && id.Value != "" {
			return id.Value
		}
	}
	for _, id := range v.Identifiers {
		t := strings.ToLower(id.Type)
		if id.Value != "" && (strings.Contains(t, "rule") || strings.Contains(t, "check") || strings.Contains(t, "id")) {
			return id.Value
		}
	}
	if v.ID != "" {
		return v.ID
	}
	return report.UnknownRule
}

// ToolInfo resolves the summary tool name and version.
func ToolInfo(rep *Report) (name, version string) {
	if rep.Scan == nil || rep.Scan.Scanner == nil {
		return defaultToolName, rep.Version
	}
	sc := rep.Scan.Scanner
	label := sc.Name
	if label == "" {
		label = sc.ID
	}
	if label == "" {
		return defaultToolName, rep.Version
	}
	version = sc.Version
	if version == "" {
		version = rep.Version
	}
	return label + " (GitLab)", version
}

// ParseBytes parses a GitLab SAST report from bytes.
func ParseBytes(data []byte) (*report.Parsed, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.E(errors.KindInvalidInput, "gitlab.ParseBytes", "invalid JSON", err)
	}
	return Parse(raw)
}

// Parse normalizes an already-decoded GitLab SAST report.
func Parse(raw any) (*report.Parsed, error) {
	const op = "gitlab.Parse"

	if _, ok := rawjson.Object(raw); !ok {
		return nil, errors.Wrap(errors.ErrNotObject, op)
	}

	var rep Report
	if err := report.Decode(raw, &rep); err != nil {
		return nil, errors.E(errors.KindMalformedReport, op, "decode GitLab SAST report", err)
	}

	// Ids taken by the report itself are never handed out as replacements.
	reserved := make(map[string]struct{}, len(rep.Vulnerabilities))
	for i := range rep.Vulnerabilities {
		reserved[rep.Vulnerabilities[i].ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(rep.Vulnerabilities))
	results := make([]report.Result, 0, len(rep.Vulnerabilities))
	for i := range rep.Vulnerabilities {
		r := convertVulnerability(&rep.Vulnerabilities[i])
		if _, dup := seen[r.ID]; dup || r.ID == "" {
			r.ID = replacementID(i, seen, reserved)
		}
		seen[r.ID] = struct{}{}
		results = append(results, r)
	}

	toolName, toolVersion := ToolInfo(&rep)
	return &report.Parsed{
		Format:  report.FormatGitLabSAST,
		Results: results,
		Summary: report.BuildSummary(results, toolName, toolVersion, report.FormatGitLabSAST),
		RawData: raw,
	}, nil
}

// replacementID returns "gitlab-<i>", suffixed with a counter until it is
// neither assigned yet nor used by the report.
func replacementID(i int, seen, reserved map[string]struct{}) string {
	base := fmt.Sprintf("gitlab-%d", i)
	id := base
	for n := 1; ; n++ {
		_, taken := seen[id]
		_, used := reserved[id]
		if !taken && !used {
			return id
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

func convertVulnerability(v *Vulnerability) report.Result {
	ruleID := ResolveRuleID(v)

	file := v.Location.File
	if file == "" {
		file = report.UnknownFile
	}

	message := firstNonEmpty(v.Message, v.Name, v.Description, ruleID)
	ruleName := firstNonEmpty(v.Name, ruleID)

	out := report.Result{
		ID:          v.ID,
		RuleID:      ruleID,
		RuleName:    ruleName,
		Message:     message,
		Severity:    MapSeverity(v.Severity),
		Level:       strings.ToLower(v.Severity),
		File:        file,
		StartLine:   v.Location.StartLine,
		EndLine:     v.Location.EndLine,
		Snippet:     v.RawSourceCodeExtract,
		Description: BuildDescription(v),
		Tags:        ExtractTags(v),
		Metadata:    report.Properties{},
	}

	out.Metadata["fingerprint"] = fingerprint.Resolve(v.ID, fingerprint.Input{
		RuleID:    ruleID,
		FilePath:  file,
		StartLine: out.StartLine,
		EndLine:   out.EndLine,
	})
	if v.Scanner.Name != "" {
		out.Metadata["scanner"] = v.Scanner.Name
	}
	if v.CVE != "" {
		out.Metadata["cve"] = v.CVE
	}
	if v.Location.Class != "" {
		out.Metadata["class"] = v.Location.Class
	}
	if v.Location.Method != "" {
		out.Metadata["method"] = v.Location.Method
	}
	for _, f := range v.Flags {
		if f.Type == FalsePositiveFlag {
			out.Metadata["likelyFalsePositive"] = true
		}
	}

	return out
}

// ExtractTags builds the deduplicated tag list for a vulnerability.
func ExtractTags(v *Vulnerability) []string {
	var tags report.TagSet

	tags.Add(v.Category)
	if v.Scanner.ID != "" {
		tags.Add("scanner:" + v.Scanner.ID)
	}
	if v.Confidence != "" && !strings.EqualFold(v.Confidence, "unknown") {
		tags.Add("confidence:" + strings.ToLower(v.Confidence))
	}
	for _, id := range v.Identifiers {
		t := strings.ToLower(id.Type)
		switch {
		case t == "cwe":
			if id.Value != "" {
				tags.Add("CWE-" + strings.TrimPrefix(strings.ToUpper(id.Value), "CWE-"))
			}
		case t == "owasp":
			tags.Add(id.Value)
		case nativeIdentifierTypes[t]:
			tags.Add(id.Name)
		}
	}
	for _, f := range v.Flags {
		if f.Type != "" {
			tags.Add("flag:" + f.Type)
		}
	}

	return tags.Slice()
}

// BuildDescription assembles description, solution, evidence and references.
func BuildDescription(v *Vulnerability) string {
	var sections []string
	if d := strings.TrimSpace(v.Description); d != "" {
		sections = append(sections, d)
	}
	if s := strings.TrimSpace(v.Solution); s != "" {
		sections = append(sections, "Solution:\n"+s)
	}
	if v.Evidence != nil && strings.TrimSpace(v.Evidence.Summary) != "" {
		sections = append(sections, "Evidence:\n"+strings.TrimSpace(v.Evidence.Summary))
	}

	var refs []string
	for _, l := range v.Links {
		switch {
		case l.URL == "":
		case l.Name != "":
			refs = append(refs, fmt.Sprintf("- %s: %s", l.Name, l.URL))
		default:
			refs = append(refs, "- "+l.URL)
		}
	}
	for _, id := range v.Identifiers {
		if id.URL == "" {
			continue
		}
		if id.Name != "" {
			refs = append(refs, fmt.Sprintf("- %s: %s", id.Name, id.URL))
		} else {
			refs = append(refs, "- "+id.URL)
		}
	}
	// One header covers links and identifier URLs.
	if len(refs) > 0 {
		sections = append(sections, "References:\n"+strings.Join(refs, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
