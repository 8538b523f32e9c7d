package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbesTotal tracks connectivity probes by outcome
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_probes_total",
			Help: "Total number of connectivity probes",
		},
		[]string{"prober", "outcome"},
	)

	// ProbeLatency tracks connectivity probe round-trip time
	ProbeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shield_probe_latency_seconds",
			Help:    "Connectivity probe latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"prober"},
	)

	// ConnectionQuality exposes the current quality bucket as a gauge
	// (0=offline, 1=poor, 2=good, 3=excellent)
	ConnectionQuality = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shield_connection_quality",
			Help: "Current connection quality bucket",
		},
	)

	// ReconnectAttempts tracks the current reconnection attempt counter
	ReconnectAttempts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shield_reconnect_attempts",
			Help: "Consecutive failed reconnection attempts",
		},
	)

	// RecoveryOutcomes tracks recovery results by operation type and method
	RecoveryOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_recovery_outcomes_total",
			Help: "Total recovery outcomes by resolving layer",
		},
		[]string{"operation_type", "method", "success"},
	)

	// RetryAttempts tracks attempts spent inside the retry layer
	RetryAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shield_retry_attempts",
			Help:    "Attempts used per recovered operation",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 10},
		},
		[]string{"operation_type"},
	)

	// OperationsAborted tracks cooperative cancellations
	OperationsAborted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shield_operations_aborted_total",
			Help: "Operations cancelled via AbortOperation",
		},
	)

	// RoleVerifications tracks role resolutions by outcome
	RoleVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_role_verifications_total",
			Help: "Role verifications by outcome",
		},
		[]string{"outcome"},
	)

	// SpanDuration tracks finalized performance spans per category
	SpanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shield_span_duration_seconds",
			Help:    "Finalized measurement span duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"category"},
	)

	// BottlenecksTotal tracks detected bottlenecks by category and severity
	BottlenecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shield_bottlenecks_total",
			Help: "Detected bottlenecks by severity",
		},
		[]string{"category", "severity"},
	)

	// StoreErrorsTotal tracks logged data-store errors
	StoreErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shield_store_errors_total",
			Help: "Data store errors recorded by the performance monitor",
		},
	)
)
