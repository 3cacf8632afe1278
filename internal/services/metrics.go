package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application.
// All Record methods are safe on a nil receiver so callers never need to
// care whether InitMetrics has run.
type Metrics struct {
	// WebSocket metrics
	WebSocketConnections prometheus.Gauge
	WebSocketMessages    *prometheus.CounterVec

	// Session metrics
	SessionsCreated      *prometheus.CounterVec // outcome: "created", "reactivated", "reused"
	EventsAppended       prometheus.Counter
	AppendFailures       prometheus.Counter
	AppendLatency        prometheus.Histogram
	ReconstructionSkips  prometheus.Counter

	// Message metrics
	MessagesSaved        *prometheus.CounterVec // sender label
	MessagesDeduplicated prometheus.Counter

	// Connection manager reference for dynamic metrics
	connManager *ConnectionManager
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(connManager *ConnectionManager) *Metrics {
	metrics := &Metrics{
		connManager: connManager,

		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "taskpilot_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		}),

		WebSocketMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taskpilot_websocket_messages_total",
			Help: "Total number of WebSocket messages by type",
		}, []string{"type", "direction"}), // direction: "inbound" or "outbound"

		SessionsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taskpilot_sessions_created_total",
			Help: "Total number of session create calls by outcome",
		}, []string{"outcome"}),

		EventsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taskpilot_session_events_appended_total",
			Help: "Total number of events appended to sessions",
		}),

		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taskpilot_session_event_append_failures_total",
			Help: "Total number of event appends that failed to persist",
		}),

		AppendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskpilot_session_event_append_duration_seconds",
			Help:    "Event append persistence latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		ReconstructionSkips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taskpilot_session_event_reconstruction_skips_total",
			Help: "Total number of stored events skipped during reconstruction",
		}),

		MessagesSaved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "taskpilot_messages_saved_total",
			Help: "Total number of chat messages persisted by sender",
		}, []string{"sender"}),

		MessagesDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "taskpilot_messages_deduplicated_total",
			Help: "Total number of duplicate message deliveries absorbed",
		}),
	}

	// Register a collector that reports connections from the ConnectionManager
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "taskpilot_websocket_connections_current",
			Help: "Current number of active WebSocket connections (from connection manager)",
		},
		func() float64 {
			if connManager != nil {
				return float64(connManager.Count())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordWebSocketConnect records a new WebSocket connection
func (m *Metrics) RecordWebSocketConnect() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Inc()
}

// RecordWebSocketDisconnect records a WebSocket disconnection
func (m *Metrics) RecordWebSocketDisconnect() {
	if m == nil {
		return
	}
	m.WebSocketConnections.Dec()
}

// RecordWebSocketMessage records a WebSocket message
func (m *Metrics) RecordWebSocketMessage(msgType, direction string) {
	if m == nil {
		return
	}
	m.WebSocketMessages.WithLabelValues(msgType, direction).Inc()
}

// RecordSessionCreated records a session create call outcome
func (m *Metrics) RecordSessionCreated(outcome string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(outcome).Inc()
}

// RecordEventAppended records a persisted event append
func (m *Metrics) RecordEventAppended(seconds float64) {
	if m == nil {
		return
	}
	m.EventsAppended.Inc()
	m.AppendLatency.Observe(seconds)
}

// RecordAppendFailure records an append whose persistence failed
func (m *Metrics) RecordAppendFailure() {
	if m == nil {
		return
	}
	m.AppendFailures.Inc()
}

// RecordReconstructionSkips records stored events skipped during a session load
func (m *Metrics) RecordReconstructionSkips(n int) {
	if m == nil {
		return
	}
	if n > 0 {
		m.ReconstructionSkips.Add(float64(n))
	}
}

// RecordMessageSaved records a persisted chat message
func (m *Metrics) RecordMessageSaved(sender string) {
	if m == nil {
		return
	}
	m.MessagesSaved.WithLabelValues(sender).Inc()
}

// RecordMessageDeduplicated records an absorbed duplicate delivery
func (m *Metrics) RecordMessageDeduplicated() {
	if m == nil {
		return
	}
	m.MessagesDeduplicated.Inc()
}
