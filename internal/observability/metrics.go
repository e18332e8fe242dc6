// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Generation metrics
	GenerationRuns     *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	SubjectsGenerated  *prometheus.CounterVec
	RandomDraws        prometheus.Counter

	// Export metrics
	FilesWritten prometheus.Counter

	// Upload metrics
	DocumentsUploaded *prometheus.CounterVec
	UploadErrors      *prometheus.CounterVec
	UploadLatency     *prometheus.HistogramVec
	RPCCallLatency    *prometheus.HistogramVec

	// Analytics metrics
	RowsStored prometheus.Counter
}

// NewMetrics creates a Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "synth_cohort"
	}
	f := promauto.With(reg)

	return &Metrics{
		GenerationRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "runs_total",
			Help:      "Total number of cohort generation runs by status",
		}, []string{"status"}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Cohort generation duration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		SubjectsGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "subjects_total",
			Help:      "Total number of subjects generated by cycle phase",
		}, []string{"phase"}),
		RandomDraws: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "random_draws_total",
			Help:      "Total number of draws taken from the seeded stream",
		}),

		FilesWritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "export",
			Name:      "files_written_total",
			Help:      "Total number of files written by the exporter",
		}),

		DocumentsUploaded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "documents_total",
			Help:      "Total number of documents uploaded by schema",
		}, []string{"schema"}),
		UploadErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "errors_total",
			Help:      "Total number of failed subject uploads by destination",
		}, []string{"destination"}),
		UploadLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upload",
			Name:      "latency_seconds",
			Help:      "Per-subject upload latency by destination",
			Buckets:   prometheus.DefBuckets,
		}, []string{"destination"}),
		RPCCallLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vault",
			Name:      "rpc_latency_seconds",
			Help:      "Vault JSON-RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		RowsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "rows_stored_total",
			Help:      "Total number of subject rows written to the analytics store",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint of gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// RecordGeneration records a finished generation run.
func (m *Metrics) RecordGeneration(status string, seconds float64, draws uint64) {
	if m == nil {
		return
	}
	m.GenerationRuns.WithLabelValues(status).Inc()
	m.GenerationDuration.Observe(seconds)
	m.RandomDraws.Add(float64(draws))
}

// RecordSubject increments the subjects counter for phase.
func (m *Metrics) RecordSubject(phase string) {
	if m == nil {
		return
	}
	m.SubjectsGenerated.WithLabelValues(phase).Inc()
}

// RecordFilesWritten adds n to the files written counter.
func (m *Metrics) RecordFilesWritten(n int) {
	if m == nil {
		return
	}
	m.FilesWritten.Add(float64(n))
}

// RecordDocumentUploaded increments the uploaded documents counter.
func (m *Metrics) RecordDocumentUploaded(schema string) {
	if m == nil {
		return
	}
	m.DocumentsUploaded.WithLabelValues(schema).Inc()
}

// RecordUpload records a subject upload attempt.
func (m *Metrics) RecordUpload(destination string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.UploadLatency.WithLabelValues(destination).Observe(seconds)
	if err != nil {
		m.UploadErrors.WithLabelValues(destination).Inc()
	}
}

// RecordRPCLatency records vault RPC call latency.
func (m *Metrics) RecordRPCLatency(method string, seconds float64) {
	if m == nil {
		return
	}
	m.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordRowsStored adds n to the analytics rows counter.
func (m *Metrics) RecordRowsStored(n int) {
	if m == nil {
		return
	}
	m.RowsStored.Add(float64(n))
}
