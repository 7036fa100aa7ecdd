package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "finrag"

// Metrics owns a private registry with pipeline and HTTP collectors.
type Metrics struct {
	registry *prometheus.Registry
	service  string

	questionsTotal     *prometheus.CounterVec
	questionDuration   *prometheus.HistogramVec
	fusedCandidates    *prometheus.HistogramVec
	contextChunks      *prometheus.HistogramVec
	noContextTotal     *prometheus.CounterVec
	contractViolations *prometheus.CounterVec
	indexBatchesTotal  *prometheus.CounterVec
	indexItemRetries   *prometheus.CounterVec

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		service:  service,
		questionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "questions_total",
				Help:      "Answered questions by outcome.",
			},
			[]string{"service", "status"},
		),
		questionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "question_duration_seconds",
				Help:      "End-to-end time to answer one question.",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80, 160},
			},
			[]string{"service", "status"},
		),
		fusedCandidates: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "fused_candidates",
				Help:      "Candidates produced by hybrid fusion per question.",
				Buckets:   []float64{0, 5, 10, 25, 50, 75, 100},
			},
			[]string{"service"},
		),
		contextChunks: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "context_chunks",
				Help:      "Chunks passed to answer extraction per question.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
			},
			[]string{"service"},
		),
		noContextTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "no_context_total",
				Help:      "Questions answered without any retrieved context.",
			},
			[]string{"service"},
		),
		contractViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "contract_violations_total",
				Help:      "Model responses that did not match the requested schema.",
			},
			[]string{"service", "operation"},
		),
		indexBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "batches_total",
				Help:      "Embedding batches added to the vector index by outcome.",
			},
			[]string{"service", "status"},
		),
		indexItemRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "item_retries_total",
				Help:      "Single-chunk retries after a failed batch.",
			},
			[]string{"service"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed.",
			},
			[]string{"service", "method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service", "method", "path"},
		),
		requestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "http",
				Name:        "in_flight_requests",
				Help:        "Number of in-flight HTTP requests.",
				ConstLabels: prometheus.Labels{"service": service},
			},
		),
	}

	registry.MustRegister(
		m.questionsTotal,
		m.questionDuration,
		m.fusedCandidates,
		m.contextChunks,
		m.noContextTotal,
		m.contractViolations,
		m.indexBatchesTotal,
		m.indexItemRetries,
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
