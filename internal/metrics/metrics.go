package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Query outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeCancelled = "cancelled"
	OutcomeStore     = "store_unavailable"
)

var (
	KPIQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpi_query_duration_seconds",
			Help:    "Duration of KPI queries by metric",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"metric"},
	)

	KPIQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kpi_queries_total",
			Help: "Total number of KPI queries by metric and outcome",
		},
		[]string{"metric", "outcome"},
	)

	KPIResultRows = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kpi_result_rows",
			Help:    "Number of rows returned by KPI queries",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"metric"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	ProducerFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "producer_flushes_total",
			Help: "Producer batch flushes by stream and outcome",
		},
		[]string{"stream", "outcome"},
	)

	ProducerBufferedRecords = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "producer_buffered_records",
			Help: "Records waiting in a producer buffer",
		},
		[]string{"stream"},
	)
)

var registerOnce sync.Once

// Register registers all collectors with the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			KPIQueryDuration,
			KPIQueriesTotal,
			KPIResultRows,
			HTTPRequestsTotal,
			HTTPRequestDuration,
			ProducerFlushesTotal,
			ProducerBufferedRecords,
		)
	})
}

func ObserveQuery(metric, outcome string, started time.Time, rows int) {
	KPIQueryDuration.WithLabelValues(metric).Observe(time.Since(started).Seconds())
	KPIQueriesTotal.WithLabelValues(metric, outcome).Inc()
	if outcome == OutcomeOK {
		KPIResultRows.WithLabelValues(metric).Observe(float64(rows))
	}
}
