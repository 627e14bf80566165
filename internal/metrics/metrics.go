// Package metrics holds the Prometheus collectors for a pbench run. Each run
// owns its registry; the result can be dumped in the node_exporter textfile
// format.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pbench"

// Metrics is a per-run set of collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMRetriesTotal    *prometheus.CounterVec
	LLMTokensTotal     *prometheus.CounterVec

	EmbeddedUnitsTotal *prometheus.CounterVec

	RetrievalDuration    *prometheus.HistogramVec
	RetrievalErrorsTotal *prometheus.CounterVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		LLMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_requests_total",
				Help:      "Total number of query synthesis requests by final status",
			},
			[]string{"model", "status"}, // "succeeded" / "failed"
		),

		LLMRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "llm_request_duration_seconds",
				Help:      "Duration of a single model call attempt",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"model"},
		),

		LLMRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_retries_total",
				Help:      "Total number of retried model calls",
			},
			[]string{"model"},
		),

		LLMTokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Total tokens consumed by query synthesis",
			},
			[]string{"model", "type"}, // "input" / "output"
		),

		EmbeddedUnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedded_units_total",
				Help:      "Total retrieval units embedded into the dense index",
			},
			[]string{"model"},
		),

		RetrievalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_duration_seconds",
				Help:      "Per-query retrieval duration",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"backend"},
		),

		RetrievalErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retrieval_errors_total",
				Help:      "Total queries whose result record carries an error",
			},
			[]string{"backend"},
		),
	}

	m.registry.MustRegister(
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.LLMRetriesTotal,
		m.LLMTokensTotal,
		m.EmbeddedUnitsTotal,
		m.RetrievalDuration,
		m.RetrievalErrorsTotal,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveLLMAttempt records one model call attempt.
func (m *Metrics) ObserveLLMAttempt(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.LLMRequestDuration.WithLabelValues(model).Observe(d.Seconds())
}

// IncLLMRetry records a retry.
func (m *Metrics) IncLLMRetry(model string) {
	if m == nil {
		return
	}
	m.LLMRetriesTotal.WithLabelValues(model).Inc()
}

// ObserveLLMResult records the terminal status and token usage of a request.
func (m *Metrics) ObserveLLMResult(model string, ok bool, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	status := "succeeded"
	if !ok {
		status = "failed"
	}
	m.LLMRequestsTotal.WithLabelValues(model, status).Inc()
	m.LLMTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.LLMTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
}

// AddEmbeddedUnits records units embedded at build time.
func (m *Metrics) AddEmbeddedUnits(model string, n int) {
	if m == nil {
		return
	}
	m.EmbeddedUnitsTotal.WithLabelValues(model).Add(float64(n))
}

// ObserveRetrieval records one query's retrieval.
func (m *Metrics) ObserveRetrieval(backend string, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.RetrievalDuration.WithLabelValues(backend).Observe(d.Seconds())
	if failed {
		m.RetrievalErrorsTotal.WithLabelValues(backend).Inc()
	}
}

// WriteTextfile writes the current values in the textfile collector format.
// A nil receiver or empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
