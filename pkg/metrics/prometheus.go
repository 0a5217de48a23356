package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics
type Metrics struct {
	RostersUploaded prometheus.Counter
	DaysWritten     prometheus.Counter
	SectorsWritten  prometheus.Counter
	SectorsSkipped  prometheus.Counter
	ConflictRetries prometheus.Counter
	UploadDuration  prometheus.Histogram
	ErrorsCount     *prometheus.CounterVec
	ActivePeriods   prometheus.Gauge
	ActiveDays      prometheus.Gauge
}

// NewMetrics creates new prometheus metrics
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		RostersUploaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rosters_uploaded_total",
			Help:      "The total number of committed roster uploads",
		}),
		DaysWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_written_total",
			Help:      "The total number of materialized day rows",
		}),
		SectorsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sectors_written_total",
			Help:      "The total number of persisted flight sectors",
		}),
		SectorsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sectors_skipped_total",
			Help:      "The total number of sectors dropped by validation",
		}),
		ConflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflict_retries_total",
			Help:      "The total number of upload transactions retried after a conflict",
		}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Time taken to process roster uploads",
			Buckets:   prometheus.DefBuckets,
		}),
		ErrorsCount: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "The total number of errors",
		}, []string{"operation"}),
		ActivePeriods: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "periods_total",
			Help:      "Number of roster periods currently stored",
		}),
		ActiveDays: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_days_total",
			Help:      "Number of day rows currently active for their date",
		}),
	}
}
