// Package dedup groups duplicate and near-duplicate findings.
//
// Findings are processed in input order. With rule grouping on, findings of
// the same rule and severity share one group; turning fuzzy matching off
// splits that group by normalized message. Without rule grouping, a finding
// joins the first group whose normalized message is identical or, with fuzzy
// matching on, at least SimilarityThreshold similar by token Jaccard index.
// Fuzzy matching is first-match and costs O(n*g) for g groups.
package dedup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/exploopio/reportlens/pkg/report"
)

// DefaultSimilarityThreshold is the minimum Jaccard similarity for fuzzy grouping.
const DefaultSimilarityThreshold = 0.85

// Options controls grouping.
type Options struct {
	// GroupByRuleID buckets findings by rule id and severity.
	GroupByRuleID bool `json:"groupByRuleId" yaml:"group_by_rule_id"`

	// GroupBySimilarMessage enables fuzzy matching. With rule grouping on it
	// keeps differently worded findings of one rule together; off, they split
	// by normalized message.
	GroupBySimilarMessage bool `json:"groupBySimilarMessage" yaml:"group_by_similar_message"`

	// SimilarityThreshold is in [0, 1].
	SimilarityThreshold float64 `json:"similarityThreshold" yaml:"similarity_threshold"`
}

// DefaultOptions returns rule grouping and fuzzy matching at 0.85.
func DefaultOptions() Options {
	return Options{
		GroupByRuleID:         true,
		GroupBySimilarMessage: true,
		SimilarityThreshold:   DefaultSimilarityThreshold,
	}
}

// LineRange is one occurrence location.
type LineRange struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine,omitempty"`
	EndLine   int    `json:"endLine,omitempty"`
}

// Group is a set of findings considered the same issue. The representative
// is the first finding seen; Duplicates holds the rest in input order.
type Group struct {
	ID             string          `json:"id"`
	Representative report.Result   `json:"representativeResult"`
	Duplicates     []report.Result `json:"duplicates"`
	Occurrences    int             `json:"occurrences"`
	AffectedFiles  []string        `json:"affectedFiles"`
	LineRanges     []LineRange     `json:"lineRanges"`

	normalized string
	tokens     map[string]struct{}
}

func newGroup(r report.Result, normalized string) *Group {
	return &Group{
		ID:             newGroupID(),
		Representative: r,
		Duplicates:     []report.Result{},
		Occurrences:    1,
		AffectedFiles:  []string{r.File},
		LineRanges:     []LineRange{rangeOf(r)},
		normalized:     normalized,
	}
}

func (g *Group) add(r report.Result) {
	g.Duplicates = append(g.Duplicates, r)
	g.Occurrences++
	found := false
	for _, f := range g.AffectedFiles {
		if f == r.File {
			found = true
			break
		}
	}
	if !found {
		g.AffectedFiles = append(g.AffectedFiles, r.File)
	}
	g.LineRanges = append(g.LineRanges, rangeOf(r))
}

func (g *Group) tokenSet() map[string]struct{} {
	if g.tokens == nil {
		g.tokens = Tokens(g.normalized)
	}
	return g.tokens
}

func rangeOf(r report.Result) LineRange {
	return LineRange{File: r.File, StartLine: r.StartLine, EndLine: r.EndLine}
}

func newGroupID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func bucketKey(r report.Result, opts Options) string {
	if !opts.GroupByRuleID {
		return ""
	}
	return r.RuleID + ":" + string(r.Severity)
}

// groupKey is the exact-match key. With rule grouping and fuzzy matching on,
// every finding of one rule and severity shares a key; the normalized message
// only splits a bucket when fuzzy matching is off. Without rule grouping the
// message alone is the key.
func groupKey(bucket, normalized string, opts Options) string {
	if !opts.GroupByRuleID {
		return normalized
	}
	if opts.GroupBySimilarMessage {
		return bucket
	}
	return bucket + ":" + normalized
}

// Deduplicate groups results. A nil opts uses DefaultOptions. The returned
// groups are ordered by severity rank, then by occurrences descending.
func Deduplicate(results []report.Result, opts *Options) []*Group {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}

	groups := make([]*Group, 0)
	exact := make(map[string]*Group)
	buckets := make(map[string][]*Group)

	for _, r := range results {
		bucket := bucketKey(r, o)
		normalized := NormalizeMessage(r.Message)
		key := groupKey(bucket, normalized, o)

		g := exact[key]
		if g == nil && o.GroupBySimilarMessage {
			g = firstSimilar(buckets[bucket], normalized, o.SimilarityThreshold)
		}
		if g != nil {
			g.add(r)
			continue
		}

		g = newGroup(r, normalized)
		groups = append(groups, g)
		exact[key] = g
		buckets[bucket] = append(buckets[bucket], g)
	}

	SortGroups(groups)
	return groups
}

func firstSimilar(candidates []*Group, normalized string, threshold float64) *Group {
	var tokens map[string]struct{}
	for _, g := range candidates {
		if g.normalized == normalized {
			return g
		}
		if tokens == nil {
			tokens = Tokens(normalized)
		}
		if jaccard(tokens, g.tokenSet()) >= threshold {
			return g
		}
	}
	return nil
}

// SortGroups orders groups by representative severity rank ascending, then
// by occurrences descending. Equal groups keep their relative order.
func SortGroups(groups []*Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		ri, rj := groups[i].Representative.Severity.Rank(), groups[j].Representative.Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return groups[i].Occurrences > groups[j].Occurrences
	})
}

// GroupSummary describes how often and where a group occurs.
func GroupSummary(g *Group) string {
	if len(g.AffectedFiles) <= 1 {
		file := g.Representative.File
		if len(g.AffectedFiles) == 1 {
			file = g.AffectedFiles[0]
		}
		return fmt.Sprintf("Found %d %s in %s", g.Occurrences, pluralTimes(g.Occurrences), file)
	}
	return fmt.Sprintf("Found %d times across %d files", g.Occurrences, len(g.AffectedFiles))
}

func pluralTimes(n int) string {
	if n == 1 {
		return "time"
	}
	return "times"
}

// GroupLocations renders one entry per affected file with its distinct
// start lines in ascending order.
func GroupLocations(g *Group) []string {
	members := append([]report.Result{g.Representative}, g.Duplicates...)

	out := make([]string, 0, len(g.AffectedFiles))
	for _, file := range g.AffectedFiles {
		seen := make(map[int]struct{})
		var lines []int
		for _, r := range members {
			if r.File != file || r.StartLine <= 0 {
				continue
			}
			if _, dup := seen[r.StartLine]; dup {
				continue
			}
			seen[r.StartLine] = struct{}{}
			lines = append(lines, r.StartLine)
		}
		sort.Ints(lines)

		switch len(lines) {
		case 0:
			out = append(out, file)
		case 1:
			out = append(out, fmt.Sprintf("%s:%d", file, lines[0]))
		default:
			strs := make([]string, len(lines))
			for i, l := range lines {
				strs[i] = fmt.Sprint(l)
			}
			out = append(out, fmt.Sprintf("%s: lines %s", file, strings.Join(strs, ", ")))
		}
	}
	return out
}
