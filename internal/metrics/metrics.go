// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - WebSocket connections by role
// - Reading ingest (HTTP and WebSocket)
// - Fan-out delivery and failures
// - Append-only reading log
// - HTTP API latency and throughput

// Label values shared by the relay components.
const (
	SourceHTTP      = "http"
	SourceWebSocket = "websocket"

	KindReading     = "sensor_data"
	KindCommand     = "command"
	KindPassthrough = "passthrough"
	KindDirect      = "direct"
)

var (
	// Connection Metrics
	ConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "relay_connections_active",
			Help: "Current number of open WebSocket connections by role",
		},
		[]string{"role"}, // "unknown", "producer", "consumer"
	)

	ConnectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_connections_total",
			Help: "Total number of WebSocket connections accepted",
		},
	)

	RoleDeclarations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_role_declarations_total",
			Help: "Total number of connections classified by role",
		},
		[]string{"role"},
	)

	LivenessSignals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_liveness_signals_total",
			Help: "Total number of pong replies and ping frames received",
		},
	)

	// Ingest Metrics
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total number of WebSocket frames received",
		},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_readings_ingested_total",
			Help: "Total number of sensor readings accepted into the cache",
		},
		[]string{"source"},
	)

	IngestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ingest_errors_total",
			Help: "Total number of malformed payloads rejected",
		},
		[]string{"source"},
	)

	RateLimitedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_rate_limited_frames_total",
			Help: "Total number of inbound frames dropped by the per-connection rate limit",
		},
	)

	// Fan-out Metrics
	FanoutSends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fanout_sends_total",
			Help: "Total number of messages queued to a connection",
		},
		[]string{"kind"},
	)

	FanoutFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fanout_failures_total",
			Help: "Total number of per-connection send failures",
		},
		[]string{"kind"},
	)

	CommandsRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_commands_relayed_total",
			Help: "Total number of commands relayed to producers",
		},
	)

	// Reading Log Metrics
	ReadingLogWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reading_log_writes_total",
			Help: "Total number of readings appended to the log file",
		},
	)

	ReadingLogFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reading_log_failures_total",
			Help: "Total number of failed log appends",
		},
	)

	ReadingLogDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reading_log_dropped_total",
			Help: "Total number of readings dropped because the queue was full or the breaker open",
		},
	)

	ReadingLogBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reading_log_breaker_state",
			Help: "Reading log circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// SetConnectionGauges publishes the registry partition sizes.
func SetConnectionGauges(unknown, producers, consumers int) {
	ConnectionsActive.WithLabelValues("unknown").Set(float64(unknown))
	ConnectionsActive.WithLabelValues("producer").Set(float64(producers))
	ConnectionsActive.WithLabelValues("consumer").Set(float64(consumers))
}

// RecordAPIRequest records metrics for one HTTP request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
