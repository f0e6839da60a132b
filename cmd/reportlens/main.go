// reportlens - security report normalizer and deduplicator
//
// Reads SARIF v2.1.0, Semgrep JSON and GitLab SAST JSON reports, normalizes
// their findings and groups duplicates.
//
//  1. ANALYZE (CI/CD):
//     reportlens -input codeql.sarif,semgrep.json
//     reportlens -input gl-sast-report.json -json -output result.json -compress zstd
//     reportlens -input semgrep.json -sarif-out merged.sarif
//
//  2. SERVE (HTTP API):
//     reportlens -serve -addr :8080 -config reportlens.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/exploopio/reportlens/pkg/compress"
	"github.com/exploopio/reportlens/pkg/core"
	"github.com/exploopio/reportlens/pkg/export"
	"github.com/exploopio/reportlens/pkg/metrics"
	"github.com/exploopio/reportlens/pkg/pipeline"
	"github.com/exploopio/reportlens/pkg/report"
	"github.com/exploopio/reportlens/pkg/server"
)

const (
	appName    = "reportlens"
	appVersion = "0.3.0"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	configPath string
	input      string
	jsonOut    bool
	allGroups  bool
	top        int
	output     string
	compress   string
	sarifOut   string
	threshold  float64
	noRule     bool
	noFuzzy    bool
	workers    int
	serve      bool
	addr       string
	verbose    bool
	version    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var f flags
	fs.StringVar(&f.configPath, "config", "", "Path to config file")
	fs.StringVar(&f.input, "input", "", "Comma-separated report files (.json, .sarif, optionally .gz/.zst)")
	fs.BoolVar(&f.jsonOut, "json", false, "Output results as JSON")
	fs.BoolVar(&f.allGroups, "groups", false, "Print every duplicate group in text mode")
	fs.IntVar(&f.top, "top", 10, "Groups printed in text mode")
	fs.StringVar(&f.output, "output", "", "Output file path (instead of stdout)")
	fs.StringVar(&f.compress, "compress", "", "Compress output files: none, gzip, zstd (or REPORTLENS_COMPRESS env)")
	fs.StringVar(&f.sarifOut, "sarif-out", "", "Also write normalized findings as SARIF to this path")
	fs.Float64Var(&f.threshold, "threshold", 0, "Similarity threshold for fuzzy grouping (or REPORTLENS_THRESHOLD env)")
	fs.BoolVar(&f.noRule, "no-rule-grouping", false, "Do not bucket findings by rule id and severity")
	fs.BoolVar(&f.noFuzzy, "no-fuzzy", false, "Disable fuzzy message matching")
	fs.IntVar(&f.workers, "workers", 0, "Files analyzed concurrently (0 = GOMAXPROCS)")
	fs.BoolVar(&f.serve, "serve", false, "Run the HTTP API")
	fs.StringVar(&f.addr, "addr", "", "Listen address for -serve (or REPORTLENS_ADDR env)")
	fs.BoolVar(&f.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&f.version, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	if f.version {
		fmt.Fprintf(stdout, "%s version %s\n", appName, appVersion)
		return exitOK
	}

	cfg := defaultConfig()
	if f.configPath != "" {
		if err := loadConfig(f.configPath, cfg); err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return exitError
		}
	}
	if err := applyEnv(cfg, os.Getenv); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	applyFlags(fs, &f, cfg)

	inputs := append(pipeline.SplitPaths(f.input), fs.Args()...)
	if err := cfg.validate(f.serve, inputs); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger := cfg.logger()
	if l, ok := logger.(interface{ SetOutput(io.Writer) }); ok {
		l.SetOutput(stderr)
	}

	if f.serve {
		return serve(ctx, cfg, logger, stderr)
	}
	return analyze(ctx, cfg, logger, inputs, &f, stdout, stderr)
}

// applyFlags overlays the flags that were set explicitly.
func applyFlags(fs *flag.FlagSet, f *flags, cfg *Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "json":
			if f.jsonOut {
				cfg.Output.Format = formatJSON
			} else {
				cfg.Output.Format = formatText
			}
		case "top":
			cfg.Output.TopGroups = f.top
		case "compress":
			cfg.Output.Compress = f.compress
		case "threshold":
			cfg.Dedup.SimilarityThreshold = f.threshold
		case "no-rule-grouping":
			cfg.Dedup.GroupByRuleID = !f.noRule
		case "no-fuzzy":
			cfg.Dedup.GroupBySimilarMessage = !f.noFuzzy
		case "workers":
			cfg.Workers = f.workers
		case "addr":
			cfg.Server.Addr = f.addr
		case "verbose":
			cfg.Verbose = f.verbose
		}
	})
	if f.allGroups {
		cfg.Output.TopGroups = 0
	}
}

func serve(ctx context.Context, cfg *Config, logger core.Logger, stderr io.Writer) int {
	collector := metrics.NewPrometheusCollector(&metrics.PrometheusConfig{RegisterDefaultMetrics: true})
	analyzer := pipeline.New(&pipeline.Config{
		Metrics: collector,
		Logger:  logger,
		Dedup:   cfg.Dedup,
		Workers: cfg.Workers,
	})
	srv := server.New(cfg.Server, server.Options{
		Analyzer: analyzer,
		Metrics:  collector,
		Logger:   logger,
		Version:  appVersion,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func analyze(ctx context.Context, cfg *Config, logger core.Logger, inputs []string, f *flags, stdout, stderr io.Writer) int {
	alg, err := compress.ParseAlgorithm(cfg.Output.Compress)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	analyzer := pipeline.New(&pipeline.Config{
		Logger:  logger,
		Dedup:   cfg.Dedup,
		Workers: cfg.Workers,
	})
	analyses, err := analyzer.AnalyzeFiles(ctx, inputs, &cfg.Dedup)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if f.sarifOut != "" {
		reports := make([]*report.Parsed, len(analyses))
		for i, a := range analyses {
			reports[i] = a.Parsed()
		}
		path, err := writeOutput(f.sarifOut, alg, nil, func(w io.Writer) error {
			return export.WriteSARIF(w, reports...)
		})
		if err != nil {
			fmt.Fprintf(stderr, "Error writing SARIF: %v\n", err)
			return exitError
		}
		logger.Info("SARIF written to %s", path)
	}

	render := func(w io.Writer) error {
		if cfg.Output.Format == formatJSON {
			return writeJSON(w, analyses)
		}
		return printText(w, analyses, cfg.Output.TopGroups)
	}
	path, err := writeOutput(f.output, alg, stdout, render)
	if err != nil {
		fmt.Fprintf(stderr, "Error writing output: %v\n", err)
		return exitError
	}
	if path != "" {
		logger.Info("results written to %s", path)
	}
	return exitOK
}
