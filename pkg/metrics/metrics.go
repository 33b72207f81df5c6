// Package metrics exposes mirror progress as Prometheus collectors. A run
// writes them to a node-exporter style textfile when it finishes.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a mirror run. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry            *prometheus.Registry
	PagesScanned        *prometheus.CounterVec
	DocumentsDiscovered *prometheus.CounterVec
	DownloadAttempts    *prometheus.CounterVec
	DownloadBytes       *prometheus.CounterVec
	DownloadDuration    prometheus.Histogram
	Errors              *prometheus.CounterVec
	SessionRecoveries   *prometheus.CounterVec
	RecordsDemoted      *prometheus.CounterVec
	Records             *prometheus.GaugeVec
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmirror_pages_scanned_total",
			Help: "Listing pages scanned.",
		},
		[]string{"dataset"},
	)
	discovered := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmirror_documents_discovered_total",
			Help: "Documents added to the index for the first time.",
		},
		[]string{"dataset"},
	)
	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmirror_download_attempts_total",
			Help: "Download attempts by outcome.",
		},
		[]string{"dataset", "outcome"},
	)
	bytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmirror_download_bytes_total",
			Help: "Bytes of completed documents.",
		},
		[]string{"dataset"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docmirror_download_duration_seconds",
			Help:    "Time from request to stored document.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmirror_errors_total",
			Help: "Errors by classification.",
		},
		[]string{"error_type"},
	)
	recoveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmirror_session_recoveries_total",
			Help: "Reauthorizations and human verifications performed.",
		},
		[]string{"reason"},
	)
	demoted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docmirror_records_demoted_total",
			Help: "Complete records whose local file was missing.",
		},
		[]string{"dataset"},
	)
	records := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "docmirror_records",
			Help: "Records in the index by status at the end of the run.",
		},
		[]string{"dataset", "status"},
	)

	registry.MustRegister(pages, discovered, attempts, bytes, duration, errorsTotal, recoveries, demoted, records)

	return &Metrics{
		Registry:            registry,
		PagesScanned:        pages,
		DocumentsDiscovered: discovered,
		DownloadAttempts:    attempts,
		DownloadBytes:       bytes,
		DownloadDuration:    duration,
		Errors:              errorsTotal,
		SessionRecoveries:   recoveries,
		RecordsDemoted:      demoted,
		Records:             records,
	}
}

func label(dataset int) string {
	return strconv.Itoa(dataset)
}

// IncPage counts a scanned listing page
func (m *Metrics) IncPage(dataset int) {
	if m == nil {
		return
	}
	m.PagesScanned.WithLabelValues(label(dataset)).Inc()
}

// AddDiscovered counts newly indexed documents
func (m *Metrics) AddDiscovered(dataset, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DocumentsDiscovered.WithLabelValues(label(dataset)).Add(float64(n))
}

// ObserveDownload records one attempt. bytes is only counted on success.
func (m *Metrics) ObserveDownload(dataset int, ok bool, bytes int64, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "complete"
		m.DownloadBytes.WithLabelValues(label(dataset)).Add(float64(bytes))
		m.DownloadDuration.Observe(d.Seconds())
	}
	m.DownloadAttempts.WithLabelValues(label(dataset), outcome).Inc()
}

// IncError counts an error by classification
func (m *Metrics) IncError(errorType string) {
	if m == nil || errorType == "" {
		return
	}
	m.Errors.WithLabelValues(errorType).Inc()
}

// IncRecovery counts a reauthorization or human verification
func (m *Metrics) IncRecovery(reason string) {
	if m == nil {
		return
	}
	m.SessionRecoveries.WithLabelValues(reason).Inc()
}

// AddDemoted counts records returned to discovered by reconciliation
func (m *Metrics) AddDemoted(dataset, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsDemoted.WithLabelValues(label(dataset)).Add(float64(n))
}

// SetRecords publishes the per-status record counts of a dataset
func (m *Metrics) SetRecords(dataset int, counts map[string]int) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.Records.WithLabelValues(label(dataset), status).Set(float64(n))
	}
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
