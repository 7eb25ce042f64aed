// Package metrics provides a Prometheus implementation of driven.MetricsRecorder.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/docusearch/internal/core/domain"
	"github.com/custodia-labs/docusearch/internal/core/ports/driven"
)

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

const namespace = "docusearch"

// Recorder records indexing, embedding and answer metrics on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	buildTotal       *prometheus.CounterVec
	buildDuration    prometheus.Histogram
	buildDocuments   *prometheus.CounterVec
	collectionChunks prometheus.Gauge
	embedRequests    *prometheus.CounterVec
	embedTexts       prometheus.Counter
	embedDuration    prometheus.Histogram
	answerTotal      *prometheus.CounterVec
	answerSources    prometheus.Histogram
	answerDuration   *prometheus.HistogramVec
}

// NewRecorder creates a recorder with every collector registered.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	m := &Recorder{
		registry: registry,
		buildTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "builds_total",
				Help:      "Indexing runs by outcome.",
			},
			[]string{"outcome"},
		),
		buildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "build_duration_seconds",
				Help:      "Wall time of indexing runs that wrote a collection.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
			},
		),
		buildDocuments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "documents_total",
				Help:      "Documents seen by indexing runs by result.",
			},
			[]string{"result"},
		),
		collectionChunks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "collection_chunks",
				Help:      "Chunks in the collection after the last indexing run.",
			},
		),
		embedRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "embedding",
				Name:      "requests_total",
				Help:      "Embedding requests by status.",
			},
			[]string{"status"},
		),
		embedTexts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "embedding",
				Name:      "texts_total",
				Help:      "Texts sent for embedding.",
			},
		),
		embedDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "embedding",
				Name:      "request_duration_seconds",
				Help:      "Embedding request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		answerTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "answer",
				Name:      "total",
				Help:      "Answered questions by terminal status.",
			},
			[]string{"status"},
		),
		answerSources: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "answer",
				Name:      "sources",
				Help:      "Chunks returned as sources per answer.",
				Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
			},
		),
		answerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "answer",
				Name:      "duration_seconds",
				Help:      "Question answering duration in seconds by status.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.buildTotal, m.buildDuration, m.buildDocuments, m.collectionChunks,
		m.embedRequests, m.embedTexts, m.embedDuration,
		m.answerTotal, m.answerSources, m.answerDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Recorder) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveBuild records a finished indexing run.
func (m *Recorder) ObserveBuild(result *domain.BuildResult, err error) {
	switch {
	case err != nil || result == nil:
		m.buildTotal.WithLabelValues("error").Inc()
		return
	case result.ShortCircuited:
		m.buildTotal.WithLabelValues("reused").Inc()
	default:
		m.buildTotal.WithLabelValues("built").Inc()
		m.buildDuration.Observe(result.Duration.Seconds())
		m.buildDocuments.WithLabelValues("indexed").Add(float64(result.DocumentsIndexed))
		m.buildDocuments.WithLabelValues("skipped").Add(float64(result.DocumentsSkipped))
		m.buildDocuments.WithLabelValues("ignored").Add(float64(result.DocumentsIgnored))
	}
	m.collectionChunks.Set(float64(result.ChunksWritten))
}

// ObserveEmbedding records one embedding request.
func (m *Recorder) ObserveEmbedding(texts int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.embedRequests.WithLabelValues(status).Inc()
	m.embedTexts.Add(float64(texts))
	m.embedDuration.Observe(duration.Seconds())
}

// ObserveAnswer records a finished question.
func (m *Recorder) ObserveAnswer(status domain.AnswerStatus, sources int, duration time.Duration) {
	m.answerTotal.WithLabelValues(status.String()).Inc()
	m.answerSources.Observe(float64(sources))
	m.answerDuration.WithLabelValues(status.String()).Observe(duration.Seconds())
}

// Server exposes Handler on addr until Shutdown.
type Server struct {
	srv *http.Server
}

// NewServer creates a metrics server for addr, such as ":9090".
func NewServer(addr string, m *Recorder) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
