// Package metrics collects counters, gauges and histograms for report
// ingestion, deduplication and the HTTP API.
package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Collector records metrics by name. Labels are passed as alternating key,
// value pairs, e.g. CounterInc(name, "format", "sarif", "status", "ok").
type Collector interface {
	CounterInc(name string, labels ...string)
	CounterAdd(name string, value float64, labels ...string)

	GaugeSet(name string, value float64, labels ...string)
	GaugeInc(name string, labels ...string)
	GaugeDec(name string, labels ...string)

	HistogramObserve(name string, value float64, labels ...string)

	// Handler serves the collected metrics, if the backend can expose them.
	Handler() http.Handler
}

type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeGauge     MetricType = "gauge"
	MetricTypeHistogram MetricType = "histogram"
)

// MetricDefinition describes one metric family. Buckets only apply to
// histograms.
type MetricDefinition struct {
	Name    string     `json:"name"`
	Type    MetricType `json:"type"`
	Help    string     `json:"help"`
	Labels  []string   `json:"labels,omitempty"`
	Buckets []float64  `json:"buckets,omitempty"`
}

var (
	parseBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}
	httpBuckets  = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
)

var (
	ReportsParsedTotal = MetricDefinition{
		Name:   "reportlens_reports_parsed_total",
		Type:   MetricTypeCounter,
		Help:   "Reports processed, by detected format and outcome",
		Labels: []string{"format", "status"},
	}
	FindingsTotal = MetricDefinition{
		Name:   "reportlens_findings_total",
		Type:   MetricTypeCounter,
		Help:   "Normalized findings, by format and unified severity",
		Labels: []string{"format", "severity"},
	}
	ParseDuration = MetricDefinition{
		Name:    "reportlens_parse_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Time spent detecting and parsing a report",
		Labels:  []string{"format"},
		Buckets: parseBuckets,
	}
	DedupGroupsTotal = MetricDefinition{
		Name:   "reportlens_dedup_groups_total",
		Type:   MetricTypeCounter,
		Help:   "Duplicate groups produced",
		Labels: []string{"format"},
	}
	DedupDuration = MetricDefinition{
		Name:    "reportlens_dedup_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "Time spent grouping the findings of one report",
		Labels:  []string{"format"},
		Buckets: append(parseBuckets[:len(parseBuckets):len(parseBuckets)], 30),
	}
	HTTPRequestsTotal = MetricDefinition{
		Name:   "reportlens_http_requests_total",
		Type:   MetricTypeCounter,
		Help:   "HTTP requests served, by method, route pattern and status",
		Labels: []string{"method", "route", "status"},
	}
	HTTPRequestDuration = MetricDefinition{
		Name:    "reportlens_http_request_duration_seconds",
		Type:    MetricTypeHistogram,
		Help:    "HTTP request latency",
		Labels:  []string{"method", "route"},
		Buckets: httpBuckets,
	}
	HTTPInFlight = MetricDefinition{
		Name: "reportlens_http_in_flight_requests",
		Type: MetricTypeGauge,
		Help: "HTTP requests currently being served",
	}
)

// DefaultMetrics lists every metric reportlens records.
func DefaultMetrics() []MetricDefinition {
	return []MetricDefinition{
		ReportsParsedTotal,
		FindingsTotal,
		ParseDuration,
		DedupGroupsTotal,
		DedupDuration,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPInFlight,
	}
}

// NopCollector discards everything.
type NopCollector struct{}

func (*NopCollector) CounterInc(string, ...string)                {}
func (*NopCollector) CounterAdd(string, float64, ...string)       {}
func (*NopCollector) GaugeSet(string, float64, ...string)         {}
func (*NopCollector) GaugeInc(string, ...string)                  {}
func (*NopCollector) GaugeDec(string, ...string)                  {}
func (*NopCollector) HistogramObserve(string, float64, ...string) {}
func (*NopCollector) Handler() http.Handler                       { return http.NotFoundHandler() }

// InMemoryCollector keeps every series in maps keyed by
// "name,key=value,...". Tests read them back with the Get methods.
type InMemoryCollector struct {
	mu           sync.RWMutex
	values       map[string]float64
	observations map[string][]float64
}

func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		values:       make(map[string]float64),
		observations: make(map[string][]float64),
	}
}

func seriesKey(name string, labels []string) string {
	var b strings.Builder
	b.WriteString(name)
	for i := 0; i+1 < len(labels); i += 2 {
		b.WriteString("," + labels[i] + "=" + labels[i+1])
	}
	return b.String()
}

func (c *InMemoryCollector) apply(name string, labels []string, f func(float64) float64) {
	k := seriesKey(name, labels)
	c.mu.Lock()
	c.values[k] = f(c.values[k])
	c.mu.Unlock()
}

func (c *InMemoryCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *InMemoryCollector) CounterAdd(name string, value float64, labels ...string) {
	c.apply(name, labels, func(v float64) float64 { return v + value })
}

func (c *InMemoryCollector) GaugeSet(name string, value float64, labels ...string) {
	c.apply(name, labels, func(float64) float64 { return value })
}

func (c *InMemoryCollector) GaugeInc(name string, labels ...string) {
	c.apply(name, labels, func(v float64) float64 { return v + 1 })
}

func (c *InMemoryCollector) GaugeDec(name string, labels ...string) {
	c.apply(name, labels, func(v float64) float64 { return v - 1 })
}

func (c *InMemoryCollector) HistogramObserve(name string, value float64, labels ...string) {
	k := seriesKey(name, labels)
	c.mu.Lock()
	c.observations[k] = append(c.observations[k], value)
	c.mu.Unlock()
}

func (c *InMemoryCollector) Handler() http.Handler { return http.NotFoundHandler() }

func (c *InMemoryCollector) value(name string, labels []string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[seriesKey(name, labels)]
}

func (c *InMemoryCollector) GetCounter(name string, labels ...string) float64 {
	return c.value(name, labels)
}

func (c *InMemoryCollector) GetGauge(name string, labels ...string) float64 {
	return c.value(name, labels)
}

// GetHistogram returns a copy of the observations of one series.
func (c *InMemoryCollector) GetHistogram(name string, labels ...string) []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]float64(nil), c.observations[seriesKey(name, labels)]...)
}

// Timer measures one operation into a histogram.
type Timer struct {
	start     time.Time
	collector Collector
	name      string
	labels    []string
}

func NewTimer(c Collector, name string, labels ...string) *Timer {
	return &Timer{start: time.Now(), collector: c, name: name, labels: labels}
}

// ObserveDuration records the time since NewTimer and returns it.
func (t *Timer) ObserveDuration() time.Duration {
	return t.ObserveDurationWith()
}

// ObserveDurationWith is ObserveDuration with extra labels that were only
// known once the operation finished.
func (t *Timer) ObserveDurationWith(labels ...string) time.Duration {
	d := time.Since(t.start)
	all := make([]string, 0, len(t.labels)+len(labels))
	all = append(append(all, t.labels...), labels...)
	t.collector.HistogramObserve(t.name, d.Seconds(), all...)
	return d
}

// RecordReport counts one processed report and its findings per severity.
// An empty format is recorded as "unknown".
func RecordReport(c Collector, format, status string, bySeverity map[string]int) {
	if format == "" {
		format = "unknown"
	}
	c.CounterInc(ReportsParsedTotal.Name, "format", format, "status", status)
	for sev, n := range bySeverity {
		if n > 0 {
			c.CounterAdd(FindingsTotal.Name, float64(n), "format", format, "severity", sev)
		}
	}
}

// RecordGroups counts the duplicate groups produced for one report.
func RecordGroups(c Collector, format string, groups int) {
	c.CounterAdd(DedupGroupsTotal.Name, float64(groups), "format", format)
}

var (
	_ Collector = (*NopCollector)(nil)
	_ Collector = (*InMemoryCollector)(nil)
)
