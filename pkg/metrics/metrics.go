// Package metrics defines the Prometheus metric collectors used across the
// document pipeline and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the pipeline.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	UploadsTotal         *prometheus.CounterVec
	UploadBytes          prometheus.Histogram
	OCRProcessedTotal    *prometheus.CounterVec
	OCRDuration          prometheus.Histogram
	OCRPagesPerDocument  prometheus.Histogram
	SummariesTotal       *prometheus.CounterVec
	IndexUpsertsTotal    *prometheus.CounterVec
	EventsPublishedTotal *prometheus.CounterVec
	SearchQueriesTotal   *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_uploads_total",
				Help: "Total upload attempts by outcome (accepted, rejected, error).",
			},
			[]string{"outcome"},
		),
		UploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "document_upload_bytes",
				Help:    "Size of accepted uploads in bytes.",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
		OCRProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ocr_documents_processed_total",
				Help: "Documents handled by the extraction stage by outcome (ok, dropped).",
			},
			[]string{"outcome"},
		),
		OCRDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ocr_duration_seconds",
				Help:    "Per-document extraction latency in seconds.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
		),
		OCRPagesPerDocument: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ocr_pages_per_document",
				Help:    "Number of pages extracted per document.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		SummariesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "summaries_total",
				Help: "Summarization attempts by outcome (ok, fallback, dropped).",
			},
			[]string{"outcome"},
		),
		IndexUpsertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_index_upserts_total",
				Help: "Search index upserts by status (ok, error).",
			},
			[]string{"status"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Pipeline events published by routing key and status.",
			},
			[]string{"routing_key", "status"},
		),
		SearchQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Search queries by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.UploadsTotal,
		m.UploadBytes,
		m.OCRProcessedTotal,
		m.OCRDuration,
		m.OCRPagesPerDocument,
		m.SummariesTotal,
		m.IndexUpsertsTotal,
		m.EventsPublishedTotal,
		m.SearchQueriesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
