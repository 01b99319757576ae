package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoreline_ws_active_connections",
			Help: "Number of WebSocket connections currently registered",
		},
	)

	ActiveTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "scoreline_ws_active_topics",
			Help: "Number of matches with at least one subscriber",
		},
	)

	AdmissionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreline_admission_decisions_total",
			Help: "Admission decisions by profile and outcome",
		},
		[]string{"profile", "decision"},
	)

	AdmissionBackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreline_admission_backend_errors_total",
			Help: "Errors raised by rate window backends",
		},
		[]string{"backend", "operation"},
	)

	InboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreline_ws_inbound_messages_total",
			Help: "Inbound control frames by outcome",
		},
		[]string{"type"},
	)

	Broadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreline_ws_broadcasts_total",
			Help: "Broadcast invocations by scope",
		},
		[]string{"scope"},
	)

	Deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoreline_ws_deliveries_total",
			Help: "Frames queued for delivery to a connection",
		},
	)

	DroppedDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoreline_ws_dropped_deliveries_total",
			Help: "Frames skipped because the connection was not writable",
		},
	)

	LivenessTerminations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scoreline_ws_liveness_terminations_total",
			Help: "Connections terminated after missing a heartbeat",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scoreline_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoreline_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scoreline_storage_query_duration_seconds",
			Help:    "SQLite query latency by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)
