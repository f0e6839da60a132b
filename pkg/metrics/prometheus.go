package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector is a Collector backed by a Prometheus registry.
// Metrics must be registered before use; updates to unknown names or names
// registered under a different type are dropped.
type PrometheusCollector struct {
	registry *prometheus.Registry

	mu   sync.RWMutex
	vecs map[string]prometheus.Collector
}

// PrometheusConfig configures NewPrometheusCollector.
type PrometheusConfig struct {
	// Registry to register into. When nil a fresh registry is created with
	// the Go runtime and process collectors attached.
	Registry *prometheus.Registry

	// RegisterDefaultMetrics registers everything in DefaultMetrics.
	RegisterDefaultMetrics bool
}

func NewPrometheusCollector(cfg *PrometheusConfig) *PrometheusCollector {
	if cfg == nil {
		cfg = &PrometheusConfig{}
	}

	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &PrometheusCollector{registry: reg, vecs: make(map[string]prometheus.Collector)}
	if cfg.RegisterDefaultMetrics {
		for _, def := range DefaultMetrics() {
			_ = c.Register(def)
		}
	}
	return c
}

// Register creates the vector described by def. Registering a name twice is
// a no-op.
func (c *PrometheusCollector) Register(def MetricDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.vecs[def.Name]; ok {
		return nil
	}

	var vec prometheus.Collector
	switch def.Type {
	case MetricTypeCounter:
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: def.Name, Help: def.Help}, def.Labels)
	case MetricTypeGauge:
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: def.Name, Help: def.Help}, def.Labels)
	case MetricTypeHistogram:
		buckets := def.Buckets
		if len(buckets) == 0 {
			buckets = prometheus.DefBuckets
		}
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: def.Name, Help: def.Help, Buckets: buckets}, def.Labels)
	default:
		return fmt.Errorf("unknown metric type %q for %s", def.Type, def.Name)
	}

	if err := c.registry.Register(vec); err != nil {
		return fmt.Errorf("register %s: %w", def.Name, err)
	}
	c.vecs[def.Name] = vec
	return nil
}

// lookup returns the registered vector for name if it has type V.
func lookup[V prometheus.Collector](c *PrometheusCollector, name string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vecs[name].(V)
	return v, ok
}

func (c *PrometheusCollector) CounterInc(name string, labels ...string) {
	c.CounterAdd(name, 1, labels...)
}

func (c *PrometheusCollector) CounterAdd(name string, value float64, labels ...string) {
	if vec, ok := lookup[*prometheus.CounterVec](c, name); ok {
		vec.WithLabelValues(labelsToValues(labels)...).Add(value)
	}
}

func (c *PrometheusCollector) GaugeSet(name string, value float64, labels ...string) {
	if vec, ok := lookup[*prometheus.GaugeVec](c, name); ok {
		vec.WithLabelValues(labelsToValues(labels)...).Set(value)
	}
}

func (c *PrometheusCollector) GaugeInc(name string, labels ...string) {
	c.gaugeAdd(name, 1, labels)
}

func (c *PrometheusCollector) GaugeDec(name string, labels ...string) {
	c.gaugeAdd(name, -1, labels)
}

func (c *PrometheusCollector) gaugeAdd(name string, delta float64, labels []string) {
	if vec, ok := lookup[*prometheus.GaugeVec](c, name); ok {
		vec.WithLabelValues(labelsToValues(labels)...).Add(delta)
	}
}

func (c *PrometheusCollector) HistogramObserve(name string, value float64, labels ...string) {
	if vec, ok := lookup[*prometheus.HistogramVec](c, name); ok {
		vec.WithLabelValues(labelsToValues(labels)...).Observe(value)
	}
}

// Handler serves the registry in the Prometheus exposition format,
// negotiating OpenMetrics when the scraper asks for it.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// labelsToValues keeps the values of alternating key, value pairs. A
// trailing key without a value is ignored.
func labelsToValues(labels []string) []string {
	if len(labels) < 2 {
		return nil
	}
	values := make([]string, len(labels)/2)
	for i := range values {
		values[i] = labels[2*i+1]
	}
	return values
}

var _ Collector = (*PrometheusCollector)(nil)
