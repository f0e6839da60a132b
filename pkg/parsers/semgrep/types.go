package semgrep

import (
	"encoding/json"
	"strconv"
)

// =============================================================================
// Semgrep JSON Output Types
// =============================================================================

// Report represents the top-level semgrep JSON output.
// Both the legacy and the current CLI layouts decode into it.
type Report struct {
	Results []Result         `json:"results"`
	Errors  []map[string]any `json:"errors,omitempty"`
	Paths   *Paths           `json:"paths,omitempty"`
	Version string           `json:"version,omitempty"`
}

// Result represents a single semgrep finding.
type Result struct {
	CheckID string `json:"check_id"`
	Path    string `json:"path"`

	// Current layout
	Start *Position `json:"start,omitempty"`
	End   *Position `json:"end,omitempty"`

	// Legacy layout
	Line      int            `json:"line,omitempty"`
	Column    int            `json:"column,omitempty"`
	EndLine   int            `json:"end_line,omitempty"`
	EndColumn int            `json:"end_column,omitempty"`
	Severity  string         `json:"severity,omitempty"`
	Message   string         `json:"message,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Extra Extra `json:"extra"`
}

// Position represents a position in a file.
type Position struct {
	Line   int `json:"line"`
	Col    int `json:"col"`
	Offset int `json:"offset,omitempty"`
}

// Extra contains additional finding details.
type Extra struct {
	Fingerprint     string         `json:"fingerprint,omitempty"`
	Lines           string         `json:"lines,omitempty"`
	Message         string         `json:"message,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Severity        string         `json:"severity,omitempty"`
	Fix             string         `json:"fix,omitempty"`
	EngineKind      string         `json:"engine_kind,omitempty"`
	ValidationState string         `json:"validation_state,omitempty"`
	IsIgnored       bool           `json:"is_ignored,omitempty"`
}

// Paths contains scanned and skipped paths.
type Paths struct {
	Scanned []string      `json:"scanned,omitempty"`
	Skipped []SkippedPath `json:"skipped,omitempty"`
}

// SkippedPath represents a skipped file/directory.
type SkippedPath struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Metadata is rule metadata after merging result.metadata and extra.metadata.
// Every field tolerates the loose typing rule authors use.
type Metadata struct {
	// Severity indicators
	SecuritySeverity any        `json:"security-severity,omitempty"`
	Impact           FlexString `json:"impact,omitempty"`
	Likelihood       FlexString `json:"likelihood,omitempty"`
	Confidence       FlexString `json:"confidence,omitempty"`

	// Classification
	Category           FlexString     `json:"category,omitempty"`
	Subcategory        FlexStringList `json:"subcategory,omitempty"`
	Technology         FlexStringList `json:"technology,omitempty"`
	VulnerabilityClass FlexStringList `json:"vulnerability_class,omitempty"`
	CWE                FlexStringList `json:"cwe,omitempty"`
	OWASP              FlexStringList `json:"owasp,omitempty"`
	CWE2021Top25       any            `json:"cwe2021-top25,omitempty"`
	CWE2022Top25       any            `json:"cwe2022-top25,omitempty"`
	BanditCode         FlexString     `json:"bandit-code,omitempty"`
	BanditCodeAlt      FlexString     `json:"bandit_code,omitempty"`

	// Documentation
	Description   FlexString     `json:"description,omitempty"`
	References    FlexStringList `json:"references,omitempty"`
	ASVS          *ASVS          `json:"asvs,omitempty"`
	Source        FlexString     `json:"source,omitempty"`
	SourceRuleURL FlexString     `json:"source-rule-url,omitempty"`
	Shortlink     FlexString     `json:"shortlink,omitempty"`
	SemgrepDev    *SemgrepDev    `json:"semgrep.dev,omitempty"`
}

// ASVS contains ASVS compliance metadata.
type ASVS struct {
	ControlID  FlexString `json:"control_id,omitempty"`
	ControlURL FlexString `json:"control_url,omitempty"`
	Section    FlexString `json:"section,omitempty"`
	Version    FlexString `json:"version,omitempty"`
}

// SemgrepDev contains semgrep.dev specific metadata.
type SemgrepDev struct {
	Rule struct {
		URL    FlexString `json:"url,omitempty"`
		RuleID FlexString `json:"rule_id,omitempty"`
	} `json:"rule"`
}

// =============================================================================
// Flexible Types
// =============================================================================

// FlexString accepts a JSON string, number or boolean. Other values decode
// to the empty string instead of failing the whole report.
type FlexString string

// UnmarshalJSON handles string, number and boolean JSON values.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		*f = FlexString(t)
	case float64:
		*f = FlexString(strconv.FormatFloat(t, 'f', -1, 64))
	case bool:
		*f = FlexString(strconv.FormatBool(t))
	default:
		*f = ""
	}
	return nil
}

// String returns the plain string.
func (f FlexString) String() string {
	return string(f)
}

// FlexStringList handles JSON fields that can be either a string or []string.
// Semgrep metadata is inconsistent: some rules have "cwe": "CWE-502: ..." (string)
// while others have "cwe": ["CWE-502: ..."] (array). A bare string is one
// element, never split. Non-string array elements are skipped.
type FlexStringList []string

// UnmarshalJSON handles both string and []string JSON values.
func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			*f = nil
			return nil
		}
		*f = FlexStringList{t}
	case []any:
		out := make(FlexStringList, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		*f = out
	default:
		*f = nil
	}
	return nil
}
