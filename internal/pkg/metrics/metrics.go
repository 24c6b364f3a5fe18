package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "leadgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	LogRecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadgate_log_records_written_total",
		Help: "Log records persisted, by record kind",
	}, []string{"kind"})

	LogWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadgate_log_write_failures_total",
		Help: "Log writes swallowed by the fail-soft writer, by record kind",
	}, []string{"kind"})

	AuthDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadgate_auth_denials_total",
		Help: "Rejected requests at the auth boundary",
	}, []string{"reason"})

	LogsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "leadgate_logs_deleted_total",
		Help: "Log records removed by retention cleanup, by record kind",
	}, []string{"kind"})
)
