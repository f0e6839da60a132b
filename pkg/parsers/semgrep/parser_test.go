package semgrep

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/exploopio/reportlens/pkg/report"
	"github.com/exploopio/reportlens/pkg/shared/severity"
)

const newFormatOutput = `{
  "version": "1.110.0",
  "results": [
    {
      "check_id": "python.lang.security.deserialization.pickle.avoid-pickle",
      "path": "app/loader.py",
      "start": {"line": 10, "col": 5, "offset": 120},
      "end": {"line": 10, "col": 30, "offset": 145},
      "extra": {
        "message": "Avoid using pickle, which is known to lead to code execution vulnerabilities.",
        "severity": "WARNING",
        "lines": "    obj = pickle.loads(data)\n",
        "fingerprint": "a1b2c3d4e5f60718",
        "engine_kind": "OSS",
        "validation_state": "NO_VALIDATOR",
        "fix": "obj = json.loads(data)",
        "metadata": {
          "cwe": "CWE-502: Deserialization of Untrusted Data",
          "owasp": ["A08:2017 - Insecure Deserialization", "A08:2021 - Software and Data Integrity Failures"],
          "category": "security",
          "technology": ["python"],
          "subcategory": ["audit"],
          "vulnerability_class": ["Insecure Deserialization "],
          "confidence": "LOW",
          "likelihood": "LOW",
          "impact": "MEDIUM",
          "cwe2022-top25": true,
          "references": ["https://docs.python.org/3/library/pickle.html"],
          "source": "https://semgrep.dev/r/python.lang.security.deserialization.pickle.avoid-pickle",
          "shortlink": "https://sg.run/OPwB"
        }
      }
    }
  ],
  "errors": [],
  "paths": {"scanned": ["app/loader.py"]},
  "skipped_rules": []
}`

const legacyFormatOutput = `{
  "results": [
    {
      "check_id": "javascript.express.security.audit.xss",
      "path": "web/server.js",
      "line": 42,
      "column": 3,
      "end_line": 44,
      "end_column": 9,
      "severity": "ERROR",
      "message": "User data flows into the response.",
      "metadata": {"cwe": ["CWE-79"], "confidence": "HIGH", "bandit-code": "B703"},
      "extra": {"lines": "requires login", "fingerprint": "requires login"}
    },
    {
      "check_id": "generic.secrets.gitleaks.generic-api-key",
      "path": "config.yml",
      "line": 1,
      "column": 1,
      "extra": {"severity": "INFO", "message": "Generic API key"}
    }
  ],
  "errors": [],
  "version": "1.50.0"
}`

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{"new format", newFormatOutput, true},
		{"legacy format", legacyFormatOutput, true},
		{"empty with paths", `{"results":[],"errors":[],"paths":{"scanned":[]}}`, true},
		{"empty with skipped_rules", `{"results":[],"errors":[],"skipped_rules":[]}`, true},
		{"empty without errors", `{"results":[],"paths":{}}`, false},
		{"empty without paths or skipped_rules", `{"results":[],"errors":[]}`, false},
		{"missing path", `{"results":[{"check_id":"x","start":{"line":1,"col":1},"extra":{"severity":"INFO"}}]}`, false},
		{"missing position", `{"results":[{"check_id":"x","path":"a","extra":{"severity":"INFO"}}]}`, false},
		{"missing severity", `{"results":[{"check_id":"x","path":"a","start":{"line":1,"col":1},"extra":{}}]}`, false},
		{"string positions", `{"results":[{"check_id":"x","path":"a","line":"1","column":"1","severity":"INFO"}]}`, false},
		{"sarif", `{"version":"2.1.0","runs":[]}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(decode(t, tt.json)); got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsNewFormat(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{"start positions", newFormatOutput, true},
		{"legacy", legacyFormatOutput, false},
		{"skipped_rules only", `{"results":[],"skipped_rules":[]}`, true},
		{"version 1.107.0", `{"results":[],"version":"1.107.0"}`, true},
		{"version 1.106.9", `{"results":[],"version":"1.106.9"}`, false},
		{"version 2.0", `{"results":[],"version":"2.0"}`, true},
		{"garbage version", `{"results":[],"version":"latest"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNewFormat(decode(t, tt.json)); got != tt.want {
				t.Errorf("IsNewFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParse_NewFormat(t *testing.T) {
	parsed, err := Parse(decode(t, newFormatOutput))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Format != report.FormatSemgrep {
		t.Errorf("Format = %v", parsed.Format)
	}
	if parsed.Summary.TotalFindings != 1 {
		t.Fatalf("TotalFindings = %d, want 1", parsed.Summary.TotalFindings)
	}
	if parsed.Summary.ToolName != "Semgrep v1.110.0 (new format)" {
		t.Errorf("ToolName = %q", parsed.Summary.ToolName)
	}

	r := parsed.Results[0]
	if r.RuleName != "avoid-pickle" {
		t.Errorf("RuleName = %q, want avoid-pickle", r.RuleName)
	}
	// impact MEDIUM x likelihood LOW wins over extra.severity WARNING
	if r.Severity != severity.Medium {
		t.Errorf("Severity = %v, want medium", r.Severity)
	}
	if r.Level != "warning" {
		t.Errorf("Level = %q, want warning", r.Level)
	}
	if r.StartLine != 10 || r.StartColumn != 5 || r.EndLine != 10 || r.EndColumn != 30 {
		t.Errorf("position = %d:%d-%d:%d", r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
	}
	if r.Snippet != "    obj = pickle.loads(data)" {
		t.Errorf("Snippet = %q", r.Snippet)
	}
	if r.Fingerprint() != "a1b2c3d4e5f60718" {
		t.Errorf("fingerprint = %q", r.Fingerprint())
	}
	if r.Metadata["engineKind"] != "OSS" || r.Metadata["validationState"] != "NO_VALIDATOR" {
		t.Errorf("Metadata = %v", r.Metadata)
	}

	for _, want := range []string{
		"security", "audit", "python", "Insecure Deserialization ",
		"CWE-502: Deserialization of Untrusted Data",
		"A08:2021 - Software and Data Integrity Failures",
		"cwe2022-top25", "confidence:low",
	} {
		if !contains(r.Tags, want) {
			t.Errorf("Tags = %v, missing %q", r.Tags, want)
		}
	}
	if contains(r.Tags, "cwe2021-top25") {
		t.Error("cwe2021-top25 should not be emitted when absent")
	}

	for _, want := range []string{
		"Suggested fix:\n```\nobj = json.loads(data)\n```",
		"References:\n- https://docs.python.org/3/library/pickle.html",
		"Semgrep rule: https://semgrep.dev/r/python.lang.security.deserialization.pickle.avoid-pickle",
		"Shortlink: https://sg.run/OPwB",
	} {
		if !strings.Contains(r.Description, want) {
			t.Errorf("Description missing %q:\n%s", want, r.Description)
		}
	}
	if !strings.HasPrefix(r.Description, r.Message) {
		t.Error("Description should start with the message")
	}
}

func TestParse_StringCWEIsOneTag(t *testing.T) {
	parsed, err := Parse(decode(t, newFormatOutput))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tags := parsed.Results[0].Tags
	if !contains(tags, "CWE-502: Deserialization of Untrusted Data") {
		t.Errorf("Tags = %v, want the full CWE string", tags)
	}
	for _, bad := range []string{"C", "W", "E", "-", "5", "0", "2"} {
		if contains(tags, bad) {
			t.Errorf("Tags = %v, contains split character %q", tags, bad)
		}
	}
}

func TestParse_LegacyFormat(t *testing.T) {
	parsed, err := Parse(decode(t, legacyFormatOutput))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Summary.TotalFindings != 2 {
		t.Fatalf("TotalFindings = %d, want 2", parsed.Summary.TotalFindings)
	}
	if parsed.Summary.ToolName != "Semgrep v1.50.0 (legacy format)" {
		t.Errorf("ToolName = %q", parsed.Summary.ToolName)
	}

	r := parsed.Results[0]
	if r.StartLine != 42 || r.StartColumn != 3 || r.EndLine != 44 || r.EndColumn != 9 {
		t.Errorf("position = %d:%d-%d:%d", r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
	}
	// confidence HIGH applies because impact/likelihood are absent
	if r.Severity != severity.High {
		t.Errorf("Severity = %v, want high", r.Severity)
	}
	if r.Level != "error" {
		t.Errorf("Level = %q, want error", r.Level)
	}
	if r.Message != "User data flows into the response." {
		t.Errorf("Message = %q", r.Message)
	}
	if r.Snippet != "" {
		t.Errorf("Snippet = %q, want placeholder dropped", r.Snippet)
	}
	if len(r.Fingerprint()) != 64 {
		t.Errorf("fingerprint = %q, want generated", r.Fingerprint())
	}
	if !contains(r.Tags, "CWE-79") || !contains(r.Tags, "bandit:B703") || !contains(r.Tags, "confidence:high") {
		t.Errorf("Tags = %v", r.Tags)
	}

	info := parsed.Results[1]
	if info.Severity != severity.Info || info.EndLine != 0 {
		t.Errorf("second result = %v end=%d", info.Severity, info.EndLine)
	}
	if info.Tags == nil {
		t.Error("Tags should be an empty slice, not nil")
	}
	if parsed.Results[0].ID == parsed.Results[1].ID {
		t.Error("IDs should be unique within a parse")
	}
}

func TestParse_EmptyResults(t *testing.T) {
	parsed, err := Parse(decode(t, `{"results":[],"errors":[],"paths":{"scanned":[]}}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parsed.Summary.TotalFindings != 0 {
		t.Errorf("TotalFindings = %d, want 0", parsed.Summary.TotalFindings)
	}
	if parsed.Summary.ToolName != "Semgrep (legacy format)" {
		t.Errorf("ToolName = %q", parsed.Summary.ToolName)
	}
}

func TestParse_ExtraMetadataOverridesTopLevel(t *testing.T) {
	raw := decode(t, `{"results":[{
		"check_id":"r","path":"a.go","line":1,"column":1,"severity":"INFO",
		"metadata":{"category":"old","confidence":"LOW"},
		"extra":{"metadata":{"category":"new"}}}]}`)

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tags := parsed.Results[0].Tags
	if !contains(tags, "new") || contains(tags, "old") {
		t.Errorf("Tags = %v, want extra.metadata category", tags)
	}
	if !contains(tags, "confidence:low") {
		t.Errorf("Tags = %v, top-level keys should survive the merge", tags)
	}
}

func TestResolveSeverity(t *testing.T) {
	tests := []struct {
		name string
		r    Result
		md   Metadata
		want severity.Level
	}{
		{"score wins", Result{Extra: Extra{Severity: "INFO"}}, Metadata{SecuritySeverity: "9.3", Impact: "LOW", Likelihood: "LOW"}, severity.Critical},
		{"numeric score", Result{}, Metadata{SecuritySeverity: 7.0}, severity.High},
		{"matrix before confidence", Result{}, Metadata{Impact: "HIGH", Likelihood: "HIGH", Confidence: "LOW"}, severity.Critical},
		{"impact alone is ignored", Result{Extra: Extra{Severity: "ERROR"}}, Metadata{Impact: "LOW"}, severity.High},
		{"confidence before extra.severity", Result{Extra: Extra{Severity: "ERROR"}}, Metadata{Confidence: "MEDIUM"}, severity.Medium},
		{"unknown confidence is info", Result{Extra: Extra{Severity: "ERROR"}}, Metadata{Confidence: "certain"}, severity.Info},
		{"extra.severity before severity", Result{Severity: "INFO", Extra: Extra{Severity: "WARNING"}}, Metadata{}, severity.Medium},
		{"result.severity", Result{Severity: "ERROR"}, Metadata{}, severity.High},
		{"no signal", Result{}, Metadata{}, severity.Info},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveSeverity(&tt.r, &tt.md); got != tt.want {
				t.Errorf("ResolveSeverity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFromImpactLikelihood(t *testing.T) {
	tests := []struct {
		impact, likelihood string
		want               severity.Level
	}{
		{"HIGH", "HIGH", severity.Critical},
		{"high", "high", severity.Critical},
		{"HIGH", "LOW", severity.High},
		{"LOW", "HIGH", severity.High},
		{"HIGH", "UNKNOWN", severity.High},
		{"MEDIUM", "MEDIUM", severity.Medium},
		{"MEDIUM", "LOW", severity.Medium},
		{"LOW", "MEDIUM", severity.Medium},
		{"LOW", "LOW", severity.Low},
		{"LOW", "NONE", severity.Low},
		{"NONE", "NONE", severity.Info},
	}

	for _, tt := range tests {
		t.Run(tt.impact+"_"+tt.likelihood, func(t *testing.T) {
			if got := FromImpactLikelihood(tt.impact, tt.likelihood); got != tt.want {
				t.Errorf("FromImpactLikelihood(%q, %q) = %v, want %v", tt.impact, tt.likelihood, got, tt.want)
			}
		})
	}
}

func TestFlexStringList(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{"string", `"A01:2021"`, []string{"A01:2021"}},
		{"array", `["A01:2021","A03:2021"]`, []string{"A01:2021", "A03:2021"}},
		{"mixed array", `["CWE-79", 79, null]`, []string{"CWE-79"}},
		{"number", `42`, nil},
		{"object", `{"a":1}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f FlexStringList
			if err := json.Unmarshal([]byte(tt.json), &f); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if len(f) != len(tt.want) {
				t.Fatalf("got %v, want %v", f, tt.want)
			}
			for i := range f {
				if f[i] != tt.want[i] {
					t.Errorf("[%d] = %q, want %q", i, f[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildDescription_SkipsDuplicateMetadataDescription(t *testing.T) {
	md := Metadata{Description: "Same text", SourceRuleURL: "https://example.com/rule.yml"}
	got := BuildDescription("Same text", "", &md)
	if strings.Count(got, "Same text") != 1 {
		t.Errorf("BuildDescription() = %q, message repeated", got)
	}
	if !strings.HasSuffix(got, "Rule source: https://example.com/rule.yml") {
		t.Errorf("BuildDescription() = %q", got)
	}
}

func TestToolLabel(t *testing.T) {
	if got := ToolLabel("", true); got != "Semgrep (new format)" {
		t.Errorf("ToolLabel() = %q", got)
	}
	if got := ToolLabel("1.2.3", false); got != "Semgrep v1.2.3 (legacy format)" {
		t.Errorf("ToolLabel() = %q", got)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
