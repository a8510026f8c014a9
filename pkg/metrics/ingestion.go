// Package metrics provides Prometheus metrics for the upload queue and report ingestion.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IngestionMetrics contains Prometheus metrics for upload intake and report ingestion.
type IngestionMetrics struct {
	uploadsQueuedTotal   prometheus.Counter
	uploadsFinishedTotal *prometheus.CounterVec
	claimConflictsTotal  prometheus.Counter
	ingestDuration       *prometheus.HistogramVec
	rowsWrittenTotal     *prometheus.CounterVec
	skippedEntriesTotal  prometheus.Counter
	tickDuration         prometheus.Histogram
	queueDepth           prometheus.Gauge

	collectors []prometheus.Collector
}

// NewIngestionMetrics creates ingestion metrics and registers them with registry.
func NewIngestionMetrics(registry prometheus.Registerer) (*IngestionMetrics, error) {
	m := newIngestionMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func newIngestionMetrics() *IngestionMetrics {
	m := &IngestionMetrics{}

	m.uploadsQueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ultraqc_uploads_queued_total",
		Help: "Total number of uploads accepted into the queue",
	})

	m.uploadsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultraqc_uploads_finished_total",
			Help: "Total number of uploads that reached a terminal state",
		},
		[]string{"status", "reason"},
	)

	m.claimConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ultraqc_upload_claim_conflicts_total",
		Help: "Total number of queued uploads already claimed by another worker",
	})

	m.ingestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ultraqc_ingest_duration_seconds",
			Help:    "Time taken to ingest one report document",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"result"},
	)

	m.rowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ultraqc_ingest_rows_written_total",
			Help: "Total number of rows written by ingestion",
		},
		[]string{"table"},
	)

	m.skippedEntriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ultraqc_ingest_skipped_entries_total",
		Help: "Total number of malformed document entries skipped during ingestion",
	})

	m.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ultraqc_scheduler_tick_duration_seconds",
		Help:    "Time taken by one scheduler pass over the queue",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
	})

	m.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ultraqc_upload_queue_depth",
		Help: "Number of QUEUED uploads seen at the start of the last scheduler pass",
	})

	m.collectors = []prometheus.Collector{
		m.uploadsQueuedTotal,
		m.uploadsFinishedTotal,
		m.claimConflictsTotal,
		m.ingestDuration,
		m.rowsWrittenTotal,
		m.skippedEntriesTotal,
		m.tickDuration,
		m.queueDepth,
	}
	return m
}

// Describe implements the Collector interface
func (m *IngestionMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *IngestionMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordQueued counts an accepted upload.
func (m *IngestionMetrics) RecordQueued() {
	if m == nil {
		return
	}
	m.uploadsQueuedTotal.Inc()
}

// RecordFinished counts an upload reaching status for the given reason (ok, duplicate, error).
func (m *IngestionMetrics) RecordFinished(status, reason string) {
	if m == nil {
		return
	}
	m.uploadsFinishedTotal.WithLabelValues(status, reason).Inc()
}

// RecordClaimConflict counts a lost claim race.
func (m *IngestionMetrics) RecordClaimConflict() {
	if m == nil {
		return
	}
	m.claimConflictsTotal.Inc()
}

// RecordIngest observes one ingestion call.
func (m *IngestionMetrics) RecordIngest(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ingestDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordRows adds n rows written to table.
func (m *IngestionMetrics) RecordRows(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsWrittenTotal.WithLabelValues(table).Add(float64(n))
}

// RecordSkipped adds n skipped document entries.
func (m *IngestionMetrics) RecordSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedEntriesTotal.Add(float64(n))
}

// RecordTick observes one scheduler pass and the queue depth it started with.
func (m *IngestionMetrics) RecordTick(queued int, duration time.Duration) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(queued))
	m.tickDuration.Observe(duration.Seconds())
}
