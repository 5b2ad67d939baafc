// Package metrics exposes Prometheus collectors for the question and
// indexing paths. All collectors live in a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// LLM call stages.
const (
	StageRewrite = "rewrite"
	StageAnswer  = "answer"
)

// Metrics holds the registry and its collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	questions     *prometheus.CounterVec
	indexBuilds   *prometheus.CounterVec
	llmDuration   *prometheus.HistogramVec
	indexedChunks prometheus.Gauge
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askpdf_questions_total",
			Help: "Questions handled, by outcome.",
		}, []string{"outcome"}),
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "askpdf_index_builds_total",
			Help: "Upload batches processed, by outcome.",
		}, []string{"outcome"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "askpdf_llm_call_duration_seconds",
			Help:    "Latency of the rewrite and answer stages, by stage.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"stage"}),
		indexedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "askpdf_indexed_chunks",
			Help: "Chunks in the current index.",
		}),
	}
	reg.MustRegister(
		m.questions,
		m.indexBuilds,
		m.llmDuration,
		m.indexedChunks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Question counts one handled question.
func (m *Metrics) Question(outcome string) {
	if m == nil {
		return
	}
	m.questions.WithLabelValues(outcome).Inc()
}

// IndexBuild counts one upload batch and records the resulting chunk count.
func (m *Metrics) IndexBuild(outcome string, chunks int) {
	if m == nil {
		return
	}
	m.indexBuilds.WithLabelValues(outcome).Inc()
	m.indexedChunks.Set(float64(chunks))
}

// ObserveLLM records the latency of one LLM call.
func (m *Metrics) ObserveLLM(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmDuration.WithLabelValues(stage).Observe(d.Seconds())
}
