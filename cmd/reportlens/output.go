package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/exploopio/reportlens/pkg/compress"
	"github.com/exploopio/reportlens/pkg/pipeline"
	"github.com/exploopio/reportlens/pkg/shared/severity"
)

// writeOutput renders to stdout when path is empty. Otherwise it renders to
// path, compressed with alg, adding the algorithm's extension when missing.
// It returns the path written.
func writeOutput(path string, alg compress.Algorithm, stdout io.Writer, render func(io.Writer) error) (string, error) {
	if path == "" {
		if stdout == nil {
			return "", fmt.Errorf("no output path")
		}
		bw := bufio.NewWriter(stdout)
		if err := render(bw); err != nil {
			return "", err
		}
		return "", bw.Flush()
	}

	if ext := alg.Extension(); ext != "" && !strings.HasSuffix(path, ext) {
		path += ext
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	zw, err := compress.NewWriter(bw, alg, compress.LevelDefault)
	if err != nil {
		return "", err
	}
	if err := render(zw); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress output: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}

// writeJSON writes a single analysis as an object and several as an array.
func writeJSON(w io.Writer, analyses []*pipeline.Analysis) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(analyses) == 1 {
		return enc.Encode(analyses[0])
	}
	return enc.Encode(analyses)
}

// printText writes a human readable summary per analysis followed by the
// first top groups, or all of them when top is 0.
func printText(w io.Writer, analyses []*pipeline.Analysis, top int) error {
	for i, a := range analyses {
		if i > 0 {
			fmt.Fprintln(w)
		}
		printAnalysis(w, a, top)
	}
	return nil
}

func printAnalysis(w io.Writer, a *pipeline.Analysis, top int) {
	tool := a.Summary.ToolName
	if v := a.Summary.ToolVersion; v != "" && !strings.Contains(tool, v) {
		tool += " " + a.Summary.ToolVersion
	}
	fmt.Fprintf(w, "[%s] %s report from %s\n", a.Source, a.Format, tool)
	fmt.Fprintf(w, "Found %d findings in %d files\n", a.Summary.TotalFindings, a.Summary.FilesAffected)

	counts := a.Summary.Counts()
	if a.Summary.TotalFindings > 0 {
		fmt.Fprintf(w, "  Severity breakdown:\n")
		for _, sev := range severity.AllLevels() {
			if n := counts[sev]; n > 0 {
				fmt.Fprintf(w, "    %-10s: %d\n", sev, n)
			}
		}
	}

	if len(a.Groups) == 0 {
		return
	}
	fmt.Fprintf(w, "Duplicate groups: %d\n", len(a.Groups))

	shown := a.Groups
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}
	for i, g := range shown {
		r := g.Representative
		fmt.Fprintf(w, "  %d. [%s] %s: %s\n", i+1, r.Severity, r.RuleID, r.Message)
		fmt.Fprintf(w, "     %s\n", g.Summary)
		for _, loc := range g.Locations {
			fmt.Fprintf(w, "       %s\n", loc)
		}
	}
	if rest := len(a.Groups) - len(shown); rest > 0 {
		fmt.Fprintf(w, "  ... %d more (use -groups to show all)\n", rest)
	}
}
