// Package pipeline runs the full analysis of a report: format detection,
// parsing, deduplication and metric recording. The CLI and the HTTP API
// share it so both produce identical output for the same input.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/dedup"
	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/intake"
	"github.com/exploopio/reportlens/pkg/metrics"
	"github.com/exploopio/reportlens/pkg/report"
)

// Metric status label values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// GroupView is a duplicate group with its rendered summary and locations.
type GroupView struct {
	*dedup.Group
	Summary   string   `json:"summary"`
	Locations []string `json:"locations"`
}

// Analysis is the outcome of analyzing one report.
type Analysis struct {
	Source  string          `json:"source,omitempty"`
	Format  report.Format   `json:"format"`
	Summary *report.Summary `json:"summary"`
	Results []report.Result `json:"results"`
	Groups  []GroupView     `json:"groups"`
}

// Config configures an Analyzer. Zero fields get defaults.
type Config struct {
	// Registry detects and parses reports. Default: built-in parsers.
	Registry *core.ParserRegistry

	// Metrics receives parse and dedup metrics. Default: no-op.
	Metrics metrics.Collector

	// Logger reports per-file progress. Default: no-op.
	Logger core.Logger

	// Dedup is used when a call passes nil options. Default:
	// dedup.DefaultOptions.
	Dedup dedup.Options

	// Workers bounds concurrent files in AnalyzeFiles. Default: GOMAXPROCS.
	Workers int
}

// Analyzer runs the analysis pipeline. It is safe for concurrent use.
type Analyzer struct {
	registry *core.ParserRegistry
	metrics  metrics.Collector
	logger   core.Logger
	dedup    dedup.Options
	workers  int
}

// New creates an Analyzer. A nil cfg uses the defaults.
func New(cfg *Config) *Analyzer {
	if cfg == nil {
		cfg = &Config{}
	}
	a := &Analyzer{
		registry: cfg.Registry,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		dedup:    cfg.Dedup,
		workers:  cfg.Workers,
	}
	if a.registry == nil {
		a.registry = core.NewParserRegistry(core.WithLogger(a.logger))
	}
	if a.metrics == nil {
		a.metrics = &metrics.NopCollector{}
	}
	if a.dedup == (dedup.Options{}) {
		a.dedup = dedup.DefaultOptions()
	}
	if a.logger == nil {
		a.logger = &core.NopLogger{}
	}
	if a.workers <= 0 {
		a.workers = runtime.GOMAXPROCS(0)
	}
	return a
}

// Registry returns the parser registry in use.
func (a *Analyzer) Registry() *core.ParserRegistry {
	return a.registry
}

// DedupOptions returns the options used when a call passes nil.
func (a *Analyzer) DedupOptions() dedup.Options {
	return a.dedup
}

// Analyze detects, parses and deduplicates an already-decoded report.
func (a *Analyzer) Analyze(raw any, opts *dedup.Options) (*Analysis, error) {
	if opts == nil {
		o := a.dedup
		opts = &o
	}

	timer := metrics.NewTimer(a.metrics, metrics.ParseDuration.Name)
	parsed, err := a.registry.DetectAndParse(raw)
	if err != nil {
		metrics.RecordReport(a.metrics, "", StatusError, nil)
		return nil, err
	}
	format := parsed.Format.String()
	timer.ObserveDurationWith("format", format)
	metrics.RecordReport(a.metrics, format, StatusOK, severityCounts(parsed.Summary))

	timer = metrics.NewTimer(a.metrics, metrics.DedupDuration.Name, "format", format)
	groups := dedup.Deduplicate(parsed.Results, opts)
	timer.ObserveDuration()
	metrics.RecordGroups(a.metrics, format, len(groups))

	views := make([]GroupView, len(groups))
	for i, g := range groups {
		views[i] = GroupView{
			Group:     g,
			Summary:   dedup.GroupSummary(g),
			Locations: dedup.GroupLocations(g),
		}
	}

	return &Analysis{
		Format:  parsed.Format,
		Summary: parsed.Summary,
		Results: parsed.Results,
		Groups:  views,
	}, nil
}

// AnalyzeBytes decodes JSON and analyzes it.
func (a *Analyzer) AnalyzeBytes(data []byte, opts *dedup.Options) (*Analysis, error) {
	raw, err := intake.Unmarshal(data)
	if err != nil {
		metrics.RecordReport(a.metrics, "", StatusError, nil)
		return nil, err
	}
	return a.Analyze(raw, opts)
}

// AnalyzeFile reads a report file through intake and analyzes it.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, opts *dedup.Options) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := intake.ReadFile(path)
	if err != nil {
		metrics.RecordReport(a.metrics, "", StatusError, nil)
		return nil, err
	}
	analysis, err := a.Analyze(raw, opts)
	if err != nil {
		return nil, err
	}
	analysis.Source = path
	a.logger.Info("%s: %s, %d findings in %d groups",
		path, analysis.Format, len(analysis.Results), len(analysis.Groups))
	return analysis, nil
}

// AnalyzeFiles analyzes paths concurrently, at most Workers at a time.
// Results keep the order of paths. The first failure cancels the rest and
// is returned annotated with its path.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, paths []string, opts *dedup.Options) ([]*Analysis, error) {
	out := make([]*Analysis, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			analysis, err := a.AnalyzeFile(ctx, path, opts)
			if err != nil {
				return errors.WrapWithMessage(err, path)
			}
			out[i] = analysis
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SplitPaths splits a comma separated list, dropping blanks.
func SplitPaths(list string) []string {
	var paths []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func severityCounts(s *report.Summary) map[string]int {
	if s == nil {
		return nil
	}
	counts := s.Counts()
	out := make(map[string]int, len(counts))
	for level, n := range counts {
		out[level.String()] = n
	}
	return out
}

// String renders a one-line description of the analysis.
func (a *Analysis) String() string {
	return fmt.Sprintf("%s (%s): %d findings, %d groups", a.Source, a.Format, len(a.Results), len(a.Groups))
}

// Parsed returns the report the analysis was built from, without groups.
func (a *Analysis) Parsed() *report.Parsed {
	return &report.Parsed{Format: a.Format, Results: a.Results, Summary: a.Summary}
}
