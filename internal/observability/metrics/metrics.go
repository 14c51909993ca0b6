// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_compliance_copilot"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Session metrics
	SessionsTotal   prometheus.Counter
	SessionsActive  prometheus.Gauge
	SessionDuration prometheus.Histogram

	// Segment metrics
	SegmentsCommitted *prometheus.CounterVec
	SegmentsRejected  prometheus.Counter

	// Matcher metrics
	ViolationsDetected *prometheus.CounterVec
	MatchDuration      prometheus.Histogram
	MatchBudgetHits    prometheus.Counter

	// Alert metrics
	AlertsDelivered     *prometheus.CounterVec
	AlertsDeduplicated  prometheus.Counter
	AlertsDropped       prometheus.Counter
	AlertDeliveryFailed prometheus.Counter

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// STT metrics
	STTErrors *prometheus.CounterVec

	// Upstream liveness
	LivenessTimeouts prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of copilot sessions started",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active copilot sessions",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of copilot sessions in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}),

		SegmentsCommitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_committed_total",
			Help:      "Total number of transcript segments committed",
		}, []string{"speaker"}),
		SegmentsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_rejected_total",
			Help:      "Total number of segments rejected after session stop",
		}),

		ViolationsDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "violations_detected_total",
			Help:      "Total number of compliance violations detected",
		}, []string{"severity", "category"}),
		MatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Rule matcher evaluation time per segment",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25},
		}),
		MatchBudgetHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_budget_exceeded_total",
			Help:      "Total number of segments whose evaluation hit the match time budget",
		}),

		AlertsDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_delivered_total",
			Help:      "Total number of alerts delivered to clients",
		}, []string{"severity"}),
		AlertsDeduplicated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_deduplicated_total",
			Help:      "Total number of alerts suppressed by fingerprint dedup",
		}),
		AlertsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_dropped_total",
			Help:      "Total number of alerts dropped from full outbound queues",
		}),
		AlertDeliveryFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_delivery_failed_total",
			Help:      "Total number of alerts lost to closed outbound channels",
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		STTErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),

		LivenessTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_timeouts_total",
			Help:      "Total number of sessions stopped by the upstream liveness timeout",
		}),
	}
}

// RecordSessionStart records a new session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session ending.
func (m *Metrics) RecordSessionEnd(durationSeconds float64) {
	m.SessionsActive.Dec()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSegmentCommitted records a committed transcript segment.
func (m *Metrics) RecordSegmentCommitted(speaker string) {
	m.SegmentsCommitted.WithLabelValues(speaker).Inc()
}

// RecordSegmentRejected records a late segment rejected after session stop.
func (m *Metrics) RecordSegmentRejected() {
	m.SegmentsRejected.Inc()
}

// RecordViolation records a detected violation.
func (m *Metrics) RecordViolation(severity, category string) {
	m.ViolationsDetected.WithLabelValues(severity, category).Inc()
}

// RecordMatch records one matcher evaluation.
func (m *Metrics) RecordMatch(durationSeconds float64, budgetHit bool) {
	m.MatchDuration.Observe(durationSeconds)
	if budgetHit {
		m.MatchBudgetHits.Inc()
	}
}

// RecordAlertDelivered records an alert handed to the outbound channel.
func (m *Metrics) RecordAlertDelivered(severity string, droppedForRoom int) {
	m.AlertsDelivered.WithLabelValues(severity).Inc()
	if droppedForRoom > 0 {
		m.AlertsDropped.Add(float64(droppedForRoom))
	}
}

// RecordAlertDeduplicated records an alert suppressed by the dedup set.
func (m *Metrics) RecordAlertDeduplicated() {
	m.AlertsDeduplicated.Inc()
}

// RecordAlertDeliveryFailed records an alert lost to a closed channel.
func (m *Metrics) RecordAlertDeliveryFailed() {
	m.AlertDeliveryFailed.Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordLivenessTimeout records a session stopped by the liveness timeout.
func (m *Metrics) RecordLivenessTimeout() {
	m.LivenessTimeouts.Inc()
}
