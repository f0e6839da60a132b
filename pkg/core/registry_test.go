package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/report"
)

const (
	minimalSARIF = `{
  "version": "2.1.0",
  "runs": [{
    "tool": {"driver": {"name": "CodeQL", "version": "2.15.0"}},
    "results": [
      {"ruleId": "js/xss", "level": "error", "message": {"text": "XSS"},
       "locations": [{"physicalLocation": {"artifactLocation": {"uri": "app.js"}, "region": {"startLine": 3}}}]},
      {"ruleId": "js/unused", "level": "note", "message": {"text": "Unused variable"}}
    ]
  }]
}`

	minimalSemgrepNew = `{
  "version": "1.110.0",
  "results": [{
    "check_id": "python.lang.security.eval",
    "path": "app.py",
    "start": {"line": 4, "col": 1},
    "end": {"line": 4, "col": 12},
    "extra": {"message": "Avoid eval", "severity": "ERROR", "metadata": {}}
  }],
  "errors": [],
  "paths": {"scanned": ["app.py"]}
}`

	minimalSemgrepLegacy = `{
  "results": [
    {"check_id": "go.sql", "path": "db.go", "line": 10, "column": 2, "message": "SQL", "severity": "WARNING"},
    {"check_id": "go.sql", "path": "db.go", "line": 20, "column": 2, "message": "SQL", "severity": "WARNING"}
  ],
  "errors": []
}`

	emptySemgrep = `{"results": [], "errors": [], "paths": {"scanned": []}}`

	minimalGitLab = `{
  "version": "15.0.0",
  "vulnerabilities": [{
    "id": "v1",
    "category": "sast",
    "severity": "High",
    "scanner": {"id": "semgrep", "name": "Semgrep"},
    "location": {"file": "main.go", "start_line": 7},
    "identifiers": [{"type": "semgrep_id", "name": "gosec.G101", "value": "gosec.G101"}]
  }],
  "scan": {"scanner": {"id": "semgrep", "name": "Semgrep", "version": "1.0"}, "type": "sast", "status": "success"}
}`

	emptyGitLab = `{"version": "15.0.0", "vulnerabilities": [], "scan": {"type": "sast", "status": "success"}}`
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("invalid fixture: %v", err)
	}
	return v
}

func TestDetectAndParse_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format report.Format
		total  int
	}{
		{"sarif", minimalSARIF, report.FormatSARIF, 2},
		{"semgrep new", minimalSemgrepNew, report.FormatSemgrep, 1},
		{"semgrep legacy", minimalSemgrepLegacy, report.FormatSemgrep, 2},
		{"semgrep empty", emptySemgrep, report.FormatSemgrep, 0},
		{"gitlab", minimalGitLab, report.FormatGitLabSAST, 1},
		{"gitlab empty", emptyGitLab, report.FormatGitLabSAST, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := decode(t, tt.input)

			format, ok := DetectFormat(raw)
			if !ok || format != tt.format {
				t.Fatalf("DetectFormat() = %q, %v, want %q", format, ok, tt.format)
			}

			parsed, err := DetectAndParse(raw)
			if err != nil {
				t.Fatalf("DetectAndParse() error = %v", err)
			}
			if parsed.Format != tt.format {
				t.Errorf("Format = %q, want %q", parsed.Format, tt.format)
			}
			if parsed.Summary.Format != tt.format {
				t.Errorf("Summary.Format = %q, want %q", parsed.Summary.Format, tt.format)
			}
			if parsed.Summary.TotalFindings != tt.total {
				t.Errorf("TotalFindings = %d, want %d", parsed.Summary.TotalFindings, tt.total)
			}
			if len(parsed.Results) != tt.total {
				t.Errorf("len(Results) = %d, want %d", len(parsed.Results), tt.total)
			}
			for _, r := range parsed.Results {
				if !r.Severity.IsValid() {
					t.Errorf("result %s has invalid severity %q", r.ID, r.Severity)
				}
			}
			if parsed.RawData == nil {
				t.Error("RawData should be preserved")
			}
		})
	}
}

func TestDetectAndParse_Unsupported(t *testing.T) {
	inputs := []any{
		map[string]any{"foo": "bar"},
		[]any{1, 2},
		"text",
		nil,
	}

	for _, raw := range inputs {
		_, err := DetectAndParse(raw)
		if err == nil {
			t.Fatalf("DetectAndParse(%v) expected error", raw)
		}
		if !errors.IsUnsupportedFormat(err) {
			t.Errorf("error kind = %v, want unsupported format", errors.GetKind(err))
		}
		for _, name := range []string{"SARIF", "Semgrep", "GitLab SAST"} {
			if !strings.Contains(err.Error(), name) {
				t.Errorf("error %q does not mention %s", err.Error(), name)
			}
		}
	}
}

func TestDetectAndParseBytes(t *testing.T) {
	if _, err := DetectAndParseBytes([]byte(`{not json`)); !errors.IsInvalidInput(err) {
		t.Errorf("invalid JSON error kind = %v, want invalid_input", errors.GetKind(err))
	}

	parsed, err := DetectAndParseBytes([]byte(minimalSARIF))
	if err != nil {
		t.Fatalf("DetectAndParseBytes() error = %v", err)
	}
	if parsed.Summary.ToolName != "CodeQL" {
		t.Errorf("ToolName = %q, want CodeQL", parsed.Summary.ToolName)
	}
}

func TestDetectAndParse_MalformedSARIF(t *testing.T) {
	// Detection requires tool.driver, so a registered custom detector is the
	// only way to reach the parser with a run missing it.
	reg := NewParserRegistry()
	reg.Register(&FuncParser{
		Name:     report.FormatSARIF,
		DetectFn: func(raw any) bool { return true },
		ParseFn:  BuiltinParsers()[0].Parse,
	})

	_, err := reg.DetectAndParse(decode(t, `{"version": "2.1.0", "runs": [{"tool": {}, "results": []}]}`))
	if !errors.IsMalformedReport(err) {
		t.Errorf("error kind = %v, want malformed_report", errors.GetKind(err))
	}
}

func TestParserRegistry_Order(t *testing.T) {
	reg := NewParserRegistry()

	want := []report.Format{report.FormatSARIF, report.FormatSemgrep, report.FormatGitLabSAST}
	got := reg.List()
	if len(got) != len(want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if reg.Get(report.FormatSemgrep) == nil {
		t.Error("Get(semgrep) returned nil")
	}
	if reg.Get("trivy") != nil {
		t.Error("Get(trivy) should return nil")
	}
}

func TestParserRegistry_RegisterReplacesInPlace(t *testing.T) {
	reg := NewParserRegistry()
	called := false
	reg.Register(&FuncParser{
		Name:     report.FormatSemgrep,
		DetectFn: func(raw any) bool { called = true; return false },
		ParseFn:  func(raw any) (*report.Parsed, error) { return nil, nil },
	})

	if n := len(reg.List()); n != 3 {
		t.Errorf("len(List()) = %d, want 3", n)
	}
	if _, ok := reg.DetectFormat(decode(t, emptySemgrep)); ok {
		t.Error("replaced semgrep detector should not match")
	}
	if !called {
		t.Error("replacement detector was not consulted")
	}
}

func TestParserRegistry_Logging(t *testing.T) {
	rec := &recordingLogger{}
	reg := NewParserRegistry(WithLogger(rec))

	if _, err := reg.DetectAndParse(decode(t, minimalSARIF)); err != nil {
		t.Fatalf("DetectAndParse() error = %v", err)
	}
	if len(rec.debug) == 0 {
		t.Error("expected debug messages from the registry")
	}
}

type recordingLogger struct {
	NopLogger
	debug []string
}

func (l *recordingLogger) Debug(format string, args ...interface{}) {
	l.debug = append(l.debug, format)
}
