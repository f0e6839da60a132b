package gitlab

// =============================================================================
// GitLab Security Report Types (SAST)
// =============================================================================

// Report is the gl-sast-report.json document.
type Report struct {
	Version         string          `json:"version"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Scan            *Scan           `json:"scan,omitempty"`
}

// Vulnerability is a single SAST finding.
type Vulnerability struct {
	ID                   string       `json:"id"`
	Category             string       `json:"category"`
	Name                 string       `json:"name,omitempty"`
	Message              string       `json:"message,omitempty"`
	Description          string       `json:"description,omitempty"`
	CVE                  string       `json:"cve,omitempty"`
	Severity             string       `json:"severity,omitempty"`
	Confidence           string       `json:"confidence,omitempty"`
	Solution             string       `json:"solution,omitempty"`
	RawSourceCodeExtract string       `json:"raw_source_code_extract,omitempty"`
	Scanner              Scanner      `json:"scanner"`
	Location             Location     `json:"location"`
	Identifiers          []Identifier `json:"identifiers"`
	Links                []Link       `json:"links,omitempty"`
	Flags                []Flag       `json:"flags,omitempty"`
	Evidence             *Evidence    `json:"evidence,omitempty"`
}

// Scanner identifies the analyzer that produced a finding or a scan.
type Scanner struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Vendor  *struct {
		Name string `json:"name"`
	} `json:"vendor,omitempty"`
}

// Location is the source location of a finding.
type Location struct {
	File      string `json:"file,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Class     string `json:"class,omitempty"`
	Method    string `json:"method,omitempty"`
}

// Identifier is a rule, CWE, OWASP or scanner-native identifier.
type Identifier struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
	URL   string `json:"url,omitempty"`
}

// Link is an external reference.
type Link struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url"`
}

// Flag marks analyzer-side treatment such as false-positive detection.
type Flag struct {
	Type        string `json:"type"`
	Origin      string `json:"origin,omitempty"`
	Description string `json:"description,omitempty"`
}

// Evidence carries analyzer evidence for a finding.
type Evidence struct {
	Summary string `json:"summary,omitempty"`
}

// Scan describes the scan that produced the report.
type Scan struct {
	Scanner   *Scanner `json:"scanner,omitempty"`
	Analyzer  *Scanner `json:"analyzer,omitempty"`
	Type      string   `json:"type,omitempty"`
	Status    string   `json:"status,omitempty"`
	StartTime string   `json:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty"`
}
