// Package monitoring exposes Prometheus metrics for the page engine.
//
// Metrics:
//   - <ns>_compiles_total{result}: compiler invocations by outcome (valid, failed)
//   - <ns>_compile_duration_seconds: compiler latency
//   - <ns>_cache_lookups_total{path}: EnsureCompiled calls by path taken
//     (fast = lock-free hit, cached = terminal state found under the lock,
//     compiled = this caller ran the compiler)
//   - <ns>_invalidations_total: entries reset to Unbuilt
//   - <ns>_renders_total{result}: layout-composed renders by outcome
//   - <ns>_precompile_pages: pages submitted in the last precompile batch
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Lookup paths recorded by ObserveLookup.
const (
	LookupFast     = "fast"
	LookupCached   = "cached"
	LookupCompiled = "compiled"
)

// Collector records engine metrics into its own Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	compilesTotal      *prometheus.CounterVec
	compileDuration    prometheus.Histogram
	lookupsTotal       *prometheus.CounterVec
	invalidationsTotal prometheus.Counter
	rendersTotal       *prometheus.CounterVec
	precompilePages    prometheus.Gauge
}

// NewCollector creates and registers the engine metrics. If registry is nil
// a fresh one is created.
func NewCollector(namespace string, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if namespace == "" {
		namespace = "pageforge"
	}

	c := &Collector{
		registry: registry,
		compilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of page compiler invocations",
			},
			[]string{"result"},
		),
		compileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compile_duration_seconds",
				Help:      "Page compilation latency",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Compilation cache lookups by path taken",
			},
			[]string{"path"},
		),
		invalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invalidations_total",
				Help:      "Total number of page invalidations",
			},
		),
		rendersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of page renders",
			},
			[]string{"result"},
		),
		precompilePages: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "precompile_pages",
				Help:      "Pages submitted in the most recent precompile batch",
			},
		),
	}

	registry.MustRegister(
		c.compilesTotal,
		c.compileDuration,
		c.lookupsTotal,
		c.invalidationsTotal,
		c.rendersTotal,
		c.precompilePages,
	)

	return c
}

// ObserveCompile records one compiler invocation.
func (c *Collector) ObserveCompile(duration time.Duration, err error) {
	if c == nil {
		return
	}
	result := "valid"
	if err != nil {
		result = "failed"
	}
	c.compilesTotal.WithLabelValues(result).Inc()
	c.compileDuration.Observe(duration.Seconds())
}

// ObserveLookup records which path an EnsureCompiled call took.
func (c *Collector) ObserveLookup(path string) {
	if c == nil {
		return
	}
	c.lookupsTotal.WithLabelValues(path).Inc()
}

// ObserveInvalidation records an entry reset.
func (c *Collector) ObserveInvalidation() {
	if c == nil {
		return
	}
	c.invalidationsTotal.Inc()
}

// ObserveRender records a render outcome.
func (c *Collector) ObserveRender(err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.rendersTotal.WithLabelValues(result).Inc()
}

// SetPrecompilePages records the size of a precompile batch.
func (c *Collector) SetPrecompilePages(n int) {
	if c == nil {
		return
	}
	c.precompilePages.Set(float64(n))
}

// Registry returns the underlying Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler exposing the metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
