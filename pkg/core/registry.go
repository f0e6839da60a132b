package core

import (
	"encoding/json"
	"sync"

	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/parsers/gitlab"
	"github.com/exploopio/reportlens/pkg/parsers/sarif"
	"github.com/exploopio/reportlens/pkg/parsers/semgrep"
	"github.com/exploopio/reportlens/pkg/report"
)

// =============================================================================
// Parser Registry - format detection and dispatch
// =============================================================================

// Parser recognizes and normalizes one report format.
type Parser interface {
	// Format returns the format tag this parser produces.
	Format() report.Format

	// Detect inspects already-decoded JSON without side effects.
	Detect(raw any) bool

	// Parse normalizes already-decoded JSON.
	Parse(raw any) (*report.Parsed, error)
}

// FuncParser adapts a pair of detect/parse functions to Parser.
type FuncParser struct {
	Name     report.Format
	DetectFn func(raw any) bool
	ParseFn  func(raw any) (*report.Parsed, error)
}

// Format returns the format tag.
func (p *FuncParser) Format() report.Format { return p.Name }

// Detect calls DetectFn.
func (p *FuncParser) Detect(raw any) bool { return p.DetectFn(raw) }

// Parse calls ParseFn.
func (p *FuncParser) Parse(raw any) (*report.Parsed, error) { return p.ParseFn(raw) }

// BuiltinParsers returns the SARIF, Semgrep and GitLab SAST parsers in
// detection order.
func BuiltinParsers() []Parser {
	return []Parser{
		&FuncParser{Name: report.FormatSARIF, DetectFn: sarif.Detect, ParseFn: sarif.Parse},
		&FuncParser{Name: report.FormatSemgrep, DetectFn: semgrep.Detect, ParseFn: semgrep.Parse},
		&FuncParser{Name: report.FormatGitLabSAST, DetectFn: gitlab.Detect, ParseFn: gitlab.Parse},
	}
}

// ParserRegistry holds parsers in detection order. The first parser whose
// Detect matches wins.
type ParserRegistry struct {
	parsers []Parser
	logger  Logger
	mu      sync.RWMutex
}

// RegistryOption configures a ParserRegistry.
type RegistryOption func(*ParserRegistry)

// WithLogger sets the logger used for detection diagnostics.
func WithLogger(l Logger) RegistryOption {
	return func(r *ParserRegistry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewParserRegistry creates a registry with the built-in parsers.
func NewParserRegistry(opts ...RegistryOption) *ParserRegistry {
	r := &ParserRegistry{logger: &NopLogger{}}
	for _, opt := range opts {
		opt(r)
	}
	for _, p := range BuiltinParsers() {
		r.Register(p)
	}
	return r
}

// Register appends a parser. A parser for an already registered format
// replaces it in place and keeps its detection position.
func (r *ParserRegistry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.parsers {
		if existing.Format() == p.Format() {
			r.parsers[i] = p
			return
		}
	}
	r.parsers = append(r.parsers, p)
}

// Get returns the parser for a format, or nil.
func (r *ParserRegistry) Get(format report.Format) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.parsers {
		if p.Format() == format {
			return p
		}
	}
	return nil
}

// List returns the registered formats in detection order.
func (r *ParserRegistry) List() []report.Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]report.Format, 0, len(r.parsers))
	for _, p := range r.parsers {
		formats = append(formats, p.Format())
	}
	return formats
}

// FindParser returns the first parser that recognizes raw, or nil.
func (r *ParserRegistry) FindParser(raw any) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.parsers {
		if p.Detect(raw) {
			return p
		}
	}
	return nil
}

// DetectFormat returns the detected format. The boolean is false when no
// parser recognizes raw.
func (r *ParserRegistry) DetectFormat(raw any) (report.Format, bool) {
	p := r.FindParser(raw)
	if p == nil {
		return "", false
	}
	return p.Format(), true
}

// DetectAndParse detects the format of raw and parses it. The returned
// report and its summary carry the detected format.
func (r *ParserRegistry) DetectAndParse(raw any) (*report.Parsed, error) {
	const op = "core.DetectAndParse"

	p := r.FindParser(raw)
	if p == nil {
		r.logger.Debug("no parser recognized the input")
		return nil, errors.Wrap(errors.ErrUnsupportedFormat, op)
	}
	r.logger.Debug("detected format %s", p.Format())

	parsed, err := p.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	parsed.Format = p.Format()
	if parsed.Summary != nil {
		parsed.Summary.Format = p.Format()
	}
	if parsed.RawData == nil {
		parsed.RawData = raw
	}
	r.logger.Debug("parsed %d findings from %s", len(parsed.Results), p.Format())
	return parsed, nil
}

// DetectAndParseBytes decodes JSON and dispatches it. Syntax errors are
// invalid input, not an unsupported format.
func (r *ParserRegistry) DetectAndParseBytes(data []byte) (*report.Parsed, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.E(errors.KindInvalidInput, "core.DetectAndParseBytes", "invalid JSON", err)
	}
	return r.DetectAndParse(raw)
}

// =============================================================================
// Package-level helpers using the built-in parsers
// =============================================================================

var defaultRegistry = NewParserRegistry()

// DetectFormat runs format detection with the built-in parsers.
func DetectFormat(raw any) (report.Format, bool) {
	return defaultRegistry.DetectFormat(raw)
}

// DetectAndParse detects and parses raw with the built-in parsers.
func DetectAndParse(raw any) (*report.Parsed, error) {
	return defaultRegistry.DetectAndParse(raw)
}

// DetectAndParseBytes decodes data and parses it with the built-in parsers.
func DetectAndParseBytes(data []byte) (*report.Parsed, error) {
	return defaultRegistry.DetectAndParseBytes(data)
}
