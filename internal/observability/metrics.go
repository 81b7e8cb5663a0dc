package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsClient is the pluggable metrics surface used by the service layers.
// It intentionally mirrors the Logger interface's "small, swappable
// implementation behind a stable shape" convention.
type MetricsClient interface {
	IncrCounter(name string, labels map[string]string)
	ObserveLatency(name string, labels map[string]string, seconds float64)
	SetGauge(name string, labels map[string]string, value float64)
}

// PrometheusMetrics is the concrete, process-wide MetricsClient implementation.
type PrometheusMetrics struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewPrometheusMetrics registers the fixed set of memoryd metrics against a
// fresh registry and returns a client bound to it.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &PrometheusMetrics{
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}

	m.counters["ingest_total"] = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryd_ingest_total", Help: "Total ingest calls by mode.",
	}, []string{"mode"})
	m.counters["retrieve_total"] = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryd_retrieve_total", Help: "Total retrieve calls by cache outcome.",
	}, []string{"cache"})
	m.counters["job_processed_total"] = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryd_job_processed_total", Help: "Embedding jobs processed by outcome.",
	}, []string{"outcome"})
	m.counters["circuit_transitions_total"] = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryd_circuit_transitions_total", Help: "Circuit breaker state transitions.",
	}, []string{"name", "to_state"})
	m.counters["rate_limited_total"] = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "memoryd_rate_limited_total", Help: "Requests rejected by the rate limiter.",
	}, []string{"limiter"})

	m.histograms["ingest_duration_seconds"] = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name: "memoryd_ingest_duration_seconds", Help: "Ingest handler latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})
	m.histograms["retrieve_duration_seconds"] = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name: "memoryd_retrieve_duration_seconds", Help: "Retrieve handler latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{})
	m.histograms["job_duration_seconds"] = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name: "memoryd_job_duration_seconds", Help: "Embedding job processing latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	m.histograms["retention_apply_duration_seconds"] = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name: "memoryd_retention_apply_duration_seconds", Help: "Retention rule evaluation latency per tenant run.",
		Buckets: prometheus.DefBuckets,
	}, []string{})

	m.gauges["job_queue_depth"] = factory.NewGaugeVec(prometheus.GaugeOpts{
		Name: "memoryd_job_queue_depth", Help: "Pending or running embedding jobs observed at last poll.",
	}, []string{})

	return m
}

// Registry exposes the underlying Prometheus registry for the /metrics handler.
func (m *PrometheusMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *PrometheusMetrics) IncrCounter(name string, labels map[string]string) {
	c, ok := m.counters[name]
	if !ok {
		return
	}
	c.With(toLabels(labels)).Inc()
}

func (m *PrometheusMetrics) ObserveLatency(name string, labels map[string]string, seconds float64) {
	h, ok := m.histograms[name]
	if !ok {
		return
	}
	h.With(toLabels(labels)).Observe(seconds)
}

func (m *PrometheusMetrics) SetGauge(name string, labels map[string]string, value float64) {
	g, ok := m.gauges[name]
	if !ok {
		return
	}
	g.With(toLabels(labels)).Set(value)
}

func toLabels(labels map[string]string) prometheus.Labels {
	out := make(prometheus.Labels, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// NoopMetrics discards every call; used in tests and when metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) IncrCounter(string, map[string]string)            {}
func (NoopMetrics) ObserveLatency(string, map[string]string, float64) {}
func (NoopMetrics) SetGauge(string, map[string]string, float64)      {}

// NewNoopMetrics returns a MetricsClient that discards everything.
func NewNoopMetrics() MetricsClient { return NoopMetrics{} }
