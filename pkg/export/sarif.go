// Package export writes normalized findings back out as SARIF 2.1.0 so any
// supported input can feed SARIF consumers such as code scanning dashboards.
package export

import (
	"io"
	"sort"
	"strconv"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/exploopio/reportlens/pkg/errors"
	"github.com/exploopio/reportlens/pkg/report"
	"github.com/exploopio/reportlens/pkg/shared/severity"
)

const (
	// InformationURI identifies reportlens as the converter.
	InformationURI = "https://github.com/exploopio/reportlens"

	// FingerprintKey is the partialFingerprints key carrying finding fingerprints.
	FingerprintKey = "reportlens/v1"

	securitySeverityKey = "security-severity"
)

// Level maps a unified severity to a SARIF result level.
func Level(l severity.Level) string {
	switch l {
	case severity.Critical, severity.High:
		return "error"
	case severity.Medium:
		return "warning"
	case severity.Low:
		return "note"
	default:
		return "none"
	}
}

// Score returns the security-severity score that maps back to l.
func Score(l severity.Level) float64 {
	switch l {
	case severity.Critical:
		return 9.5
	case severity.High:
		return 8.0
	case severity.Medium:
		return 5.5
	case severity.Low:
		return 2.0
	default:
		return 0
	}
}

func scoreString(l severity.Level) string {
	return strconv.FormatFloat(Score(l), 'f', 1, 64)
}

// ToSARIF converts parsed reports into a SARIF log with one run per report.
// Each run's driver carries the original tool name and version.
func ToSARIF(reports ...*report.Parsed) (*sarif.Report, error) {
	const op = "export.ToSARIF"

	if len(reports) == 0 {
		return nil, errors.E(errors.KindInvalidInput, op, "no reports")
	}

	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, errors.E(errors.KindInternal, op, "create SARIF log", err)
	}
	for _, parsed := range reports {
		if parsed == nil {
			return nil, errors.E(errors.KindInvalidInput, op, "nil report")
		}
		log.AddRun(toRun(parsed))
	}
	return log, nil
}

func toRun(parsed *report.Parsed) *sarif.Run {
	toolName, toolVersion := "reportlens", ""
	if parsed.Summary != nil {
		if parsed.Summary.ToolName != "" {
			toolName = parsed.Summary.ToolName
		}
		toolVersion = parsed.Summary.ToolVersion
	}

	run := sarif.NewRunWithInformationURI(toolName, InformationURI)
	if toolVersion != "" {
		run.Tool.Driver.WithVersion(toolVersion)
	}
	run.PropertyBag = *sarif.NewPropertyBag()
	run.Add("sourceFormat", string(parsed.Format))

	addRules(run, parsed.Results)
	for i := range parsed.Results {
		run.AddResult(toResult(&parsed.Results[i]))
	}
	return run
}

// WriteSARIF converts reports and writes indented SARIF JSON to w.
func WriteSARIF(w io.Writer, reports ...*report.Parsed) error {
	log, err := ToSARIF(reports...)
	if err != nil {
		return err
	}
	if err := log.PrettyWrite(w); err != nil {
		return errors.E(errors.KindInternal, "export.WriteSARIF", "write SARIF", err)
	}
	return nil
}

type ruleInfo struct {
	first   *report.Result
	highest severity.Level
	tags    report.TagSet
}

// addRules registers one rule per distinct rule id in first-seen order.
func addRules(run *sarif.Run, results []report.Result) {
	var order []string
	rules := make(map[string]*ruleInfo)
	for i := range results {
		r := &results[i]
		info, ok := rules[r.RuleID]
		if !ok {
			info = &ruleInfo{first: r, highest: r.Severity}
			rules[r.RuleID] = info
			order = append(order, r.RuleID)
		}
		info.highest = severity.Max(info.highest, r.Severity)
		info.tags.Add(r.Tags...)
	}

	for _, id := range order {
		info := rules[id]
		rule := run.AddRule(id).
			WithName(info.first.RuleName).
			WithShortDescription(sarif.NewMultiformatMessageString(info.first.Message)).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: Level(info.highest)}).
			WithProperties(sarif.Properties{
				"tags":              info.tags.Slice(),
				securitySeverityKey: scoreString(info.highest),
			})
		if info.first.Description != "" {
			rule.WithFullDescription(sarif.NewMultiformatMessageString(info.first.Description))
		}
		if helpURI, ok := info.first.Metadata["helpUri"].(string); ok && helpURI != "" {
			rule.WithHelpURI(helpURI)
		}
	}
}

func toResult(r *report.Result) *sarif.Result {
	res := sarif.NewRuleResult(r.RuleID).
		WithMessage(sarif.NewTextMessage(r.Message)).
		WithLevel(Level(r.Severity))

	if loc := toLocation(r); loc != nil {
		res.WithLocations([]*sarif.Location{loc})
	}
	if fp := r.Fingerprint(); fp != "" {
		res.WithPartialFingerPrints(map[string]interface{}{FingerprintKey: fp})
	}

	res.PropertyBag = *sarif.NewPropertyBag()
	res.Add(securitySeverityKey, scoreString(r.Severity))
	res.Add("severity", string(r.Severity))
	if r.Level != "" {
		res.Add("originalLevel", r.Level)
	}
	for _, k := range sortedKeys(r.Metadata) {
		if k == "fingerprint" {
			continue
		}
		res.Add("metadata."+k, r.Metadata[k])
	}
	return res
}

func toLocation(r *report.Result) *sarif.Location {
	if r.File == "" || r.File == report.UnknownFile {
		return nil
	}
	phys := sarif.NewPhysicalLocation().
		WithArtifactLocation(sarif.NewArtifactLocation().WithUri(r.File))

	if r.StartLine > 0 {
		region := sarif.NewRegion().WithStartLine(r.StartLine)
		if r.EndLine >= r.StartLine {
			region.WithEndLine(r.EndLine)
		}
		if r.StartColumn > 0 {
			region.WithStartColumn(r.StartColumn)
		}
		if r.EndColumn > 0 {
			region.WithEndColumn(r.EndColumn)
		}
		if r.Snippet != "" {
			region.WithSnippet(sarif.NewArtifactContent().WithText(r.Snippet))
		}
		phys.WithRegion(region)
	}
	return sarif.NewLocation().WithPhysicalLocation(phys)
}

func sortedKeys(m report.Properties) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
