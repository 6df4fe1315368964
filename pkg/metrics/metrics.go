// Package metrics defines the Prometheus collectors used by the ingestion and
// query pipelines and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the service.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	DocumentsIngested    *prometheus.CounterVec
	ChunksCreated        prometheus.Counter
	IngestDuration       *prometheus.HistogramVec
	EnrichmentCalls      *prometheus.CounterVec
	QueriesTotal         *prometheus.CounterVec
	QueryLatency         prometheus.Histogram
	QueryResultsCount    prometheus.Histogram
	QueryExpansions      *prometheus.CounterVec
	ExpansionCacheHits   prometheus.Counter
	ExpansionCacheMisses prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg. A nil registerer
// uses the process-wide default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		DocumentsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "documents_ingested_total",
				Help: "Documents ingested by outcome (success, rejected, failed).",
			},
			[]string{"status"},
		),
		ChunksCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chunks_created_total",
				Help: "Total chunks written to the store.",
			},
		),
		IngestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_duration_seconds",
				Help:    "Time spent in each ingestion stage.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),
		EnrichmentCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "enrichment_calls_total",
				Help: "Image analysis calls by modality (ocr, caption) and outcome.",
			},
			[]string{"modality", "outcome"},
		),
		QueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queries_total",
				Help: "Total queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		QueryLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_latency_seconds",
				Help:    "End-to-end query latency in seconds.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		QueryResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "query_results_count",
				Help:    "Number of snippets returned per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50},
			},
		),
		QueryExpansions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "query_expansion_total",
				Help: "Query expansion attempts by outcome (expanded, cached, empty, fallback, disabled).",
			},
			[]string{"outcome"},
		),
		ExpansionCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expansion_cache_hits_total",
				Help: "Total query expansion cache hits.",
			},
		),
		ExpansionCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expansion_cache_misses_total",
				Help: "Total query expansion cache misses.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.DocumentsIngested,
		m.ChunksCreated,
		m.IngestDuration,
		m.EnrichmentCalls,
		m.QueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.QueryExpansions,
		m.ExpansionCacheHits,
		m.ExpansionCacheMisses,
		m.CircuitBreakerState,
	)

	return m
}

// NewNop returns collectors registered on a throwaway registry, for tests and
// for components constructed without a metrics sink.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
