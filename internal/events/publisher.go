// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"ai-compliance-copilot-service/internal/observability/metrics"
)

// Publisher publishes copilot events to separate Kafka topics: one for
// alerts, one for session lifecycle events. Payloads carry aggregate data
// and bounded alert context only, never full transcripts.
type Publisher struct {
	writerAlerts   *kafka.Writer
	writerSessions *kafka.Writer
	principal      string
	topicAlerts    string
	topicSessions  string
	enabled        bool
	metrics        *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers       []string
	TopicAlerts   string
	TopicSessions string
	Principal     string
	Enabled       bool
}

// SessionEvent is the payload published on session lifecycle transitions.
type SessionEvent struct {
	EventType      string `json:"eventType"`
	SessionID      string `json:"sessionId"`
	Timestamp      int64  `json:"timestamp"`
	SegmentCount   int    `json:"segmentCount,omitempty"`
	ViolationCount int    `json:"violationCount,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// New creates a new Kafka event publisher with separate topics for alert
// and session events.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:     cfg.Principal,
			topicAlerts:   cfg.TopicAlerts,
			topicSessions: cfg.TopicSessions,
			enabled:       false,
			metrics:       m,
		}
	}

	// Custom dialer with longer timeouts for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}

	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	writerAlerts := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicAlerts,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	writerSessions := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.TopicSessions,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicAlerts", cfg.TopicAlerts).
		Str("topicSessions", cfg.TopicSessions).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerAlerts:   writerAlerts,
		writerSessions: writerSessions,
		principal:      cfg.Principal,
		topicAlerts:    cfg.TopicAlerts,
		topicSessions:  cfg.TopicSessions,
		enabled:        true,
		metrics:        m,
	}
}

// PublishAlert publishes a delivered alert to the alerts topic, keyed by
// session ID.
func (p *Publisher) PublishAlert(ctx context.Context, sessionID string, event any) error {
	return p.publish(ctx, p.writerAlerts, p.topicAlerts, "alert", sessionID, event)
}

// PublishSessionEvent publishes a session lifecycle event to the sessions
// topic, keyed by session ID.
func (p *Publisher) PublishSessionEvent(ctx context.Context, sessionID string, event SessionEvent) error {
	return p.publish(ctx, p.writerSessions, p.topicSessions, event.EventType, sessionID, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// If Kafka is disabled, just log
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerAlerts != nil {
		if e := p.writerAlerts.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing alerts writer")
			err = e
		}
	}
	if p.writerSessions != nil {
		if e := p.writerSessions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing sessions writer")
			err = e
		}
	}
	return err
}
