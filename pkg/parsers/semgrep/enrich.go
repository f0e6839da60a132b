package semgrep

import (
	"strings"

	"github.com/exploopio/reportlens/pkg/parsers/internal/rawjson"
	"github.com/exploopio/reportlens/pkg/report"
	"github.com/exploopio/reportlens/pkg/shared/severity"
)

// =============================================================================
// Severity Mapping
// =============================================================================

const (
	levelHigh   = "HIGH"
	levelMedium = "MEDIUM"
	levelLow    = "LOW"
)

// ResolveSeverity picks the first available signal, in order:
// security-severity score, impact x likelihood, confidence, extra.severity,
// result.severity. Without any signal the result is Info.
func ResolveSeverity(r *Result, md *Metadata) severity.Level {
	if lvl, ok := severity.FromScoreValue(md.SecuritySeverity); ok {
		return lvl
	}
	if md.Impact != "" && md.Likelihood != "" {
		return FromImpactLikelihood(md.Impact.String(), md.Likelihood.String())
	}
	if md.Confidence != "" {
		return FromConfidence(md.Confidence.String())
	}
	if r.Extra.Severity != "" {
		return severity.Normalize(r.Extra.Severity)
	}
	if r.Severity != "" {
		return severity.Normalize(r.Severity)
	}
	return severity.Info
}

// FromImpactLikelihood maps the semgrep risk matrix. HIGH is checked before
// MEDIUM, which is checked before LOW, on either axis.
func FromImpactLikelihood(impact, likelihood string) severity.Level {
	i := strings.ToUpper(strings.TrimSpace(impact))
	l := strings.ToUpper(strings.TrimSpace(likelihood))
	switch {
	case i == levelHigh && l == levelHigh:
		return severity.Critical
	case i == levelHigh || l == levelHigh:
		return severity.High
	case i == levelMedium || l == levelMedium:
		return severity.Medium
	case i == levelLow || l == levelLow:
		return severity.Low
	default:
		return severity.Info
	}
}

// FromConfidence maps rule confidence when impact or likelihood is missing.
func FromConfidence(confidence string) severity.Level {
	switch strings.ToUpper(strings.TrimSpace(confidence)) {
	case levelHigh:
		return severity.High
	case levelMedium:
		return severity.Medium
	case levelLow:
		return severity.Low
	default:
		return severity.Info
	}
}

// =============================================================================
// Tags
// =============================================================================

// ExtractTags merges classification metadata into a deduplicated tag list.
// String-typed cwe/owasp values stay a single tag.
func ExtractTags(md *Metadata) []string {
	var tags report.TagSet

	tags.Add(md.Category.String())
	tags.Add(md.Subcategory...)
	tags.Add(md.Technology...)
	tags.Add(md.VulnerabilityClass...)
	tags.Add(md.CWE...)
	tags.Add(md.OWASP...)
	if rawjson.Truthy(md.CWE2021Top25) {
		tags.Add("cwe2021-top25")
	}
	if rawjson.Truthy(md.CWE2022Top25) {
		tags.Add("cwe2022-top25")
	}
	if md.Confidence != "" {
		tags.Add("confidence:" + strings.ToLower(md.Confidence.String()))
	}
	if code := md.banditCode(); code != "" {
		tags.Add("bandit:" + code)
	}

	return tags.Slice()
}

func (md *Metadata) banditCode() string {
	if md.BanditCode != "" {
		return md.BanditCode.String()
	}
	return md.BanditCodeAlt.String()
}

// =============================================================================
// Description
// =============================================================================

// BuildDescription assembles the long-form description. Each section is
// added only when its source data exists.
func BuildDescription(message, fix string, md *Metadata) string {
	var sections []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			sections = append(sections, s)
		}
	}

	add(message)
	if d := md.Description.String(); strings.TrimSpace(d) != strings.TrimSpace(message) {
		add(d)
	}
	if strings.TrimSpace(fix) != "" {
		add("Suggested fix:\n```\n" + strings.TrimRight(fix, "\n") + "\n```")
	}
	if md.ASVS != nil {
		var lines []string
		if md.ASVS.ControlID != "" {
			lines = append(lines, "ASVS control: "+md.ASVS.ControlID.String())
		}
		if md.ASVS.Section != "" {
			lines = append(lines, "ASVS section: "+md.ASVS.Section.String())
		}
		if md.ASVS.ControlURL != "" {
			lines = append(lines, "ASVS reference: "+md.ASVS.ControlURL.String())
		}
		add(strings.Join(lines, "\n"))
	}
	if len(md.References) > 0 {
		var b strings.Builder
		b.WriteString("References:")
		for _, ref := range md.References {
			b.WriteString("\n- ")
			b.WriteString(ref)
		}
		add(b.String())
	}
	if md.SourceRuleURL != "" {
		add("Rule source: " + md.SourceRuleURL.String())
	}
	if u := md.ruleURL(); u != "" {
		add("Semgrep rule: " + u)
	}
	if md.Shortlink != "" {
		add("Shortlink: " + md.Shortlink.String())
	}

	return strings.Join(sections, "\n\n")
}

// ruleURL prefers the semgrep.dev registry URL over the plain source field.
func (md *Metadata) ruleURL() string {
	if md.SemgrepDev != nil && md.SemgrepDev.Rule.URL != "" {
		return md.SemgrepDev.Rule.URL.String()
	}
	return md.Source.String()
}
