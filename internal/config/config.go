// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration is the full service configuration.
type Configuration struct {
	Service       ServiceConfig
	Copilot       CopilotConfig
	Rules         RulesConfig
	STT           STTConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the service and its listen ports.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsPort string
}

// CopilotConfig holds the per-session detection defaults.
type CopilotConfig struct {
	WindowCapacity    int
	AlertQueueSize    int
	LivenessTimeout   time.Duration
	MonitoredSpeaker  string
	DedupContextChars int
	MatchBudget       time.Duration
}

// RulesConfig points at an optional YAML file of additional rules.
type RulesConfig struct {
	File string
}

// STTConfig selects and tunes the speech-to-text provider.
type STTConfig struct {
	Provider     string // mock, google
	LanguageCode string
	SampleRateHz int
}

// KafkaConfig configures the downstream event publisher.
type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicAlerts   string
	TopicSessions string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment, applying defaults for
// anything unset.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:   envOrDefault("SERVICE_PRINCIPAL", "svc-compliance-copilot"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Copilot: CopilotConfig{
			WindowCapacity:    envIntOrDefault("WINDOW_CAPACITY", 10),
			AlertQueueSize:    envIntOrDefault("ALERT_QUEUE_SIZE", 16),
			LivenessTimeout:   envDurationOrDefault("LIVENESS_TIMEOUT", 45*time.Second),
			MonitoredSpeaker:  envOrDefault("MONITORED_SPEAKER", "rep"),
			DedupContextChars: envIntOrDefault("DEDUP_CONTEXT_CHARS", 30),
			MatchBudget:       envDurationOrDefault("MATCH_BUDGET", 250*time.Millisecond),
		},
		Rules: RulesConfig{
			File: os.Getenv("RULES_FILE"),
		},
		STT: STTConfig{
			Provider:     envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode: envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz: envIntOrDefault("STT_SAMPLE_RATE_HZ", 8000),
		},
		Kafka: KafkaConfig{
			Enabled:       envBoolOrDefault("KAFKA_ENABLED", false),
			Brokers:       envListOrDefault("KAFKA_BROKERS", nil),
			TopicAlerts:   envOrDefault("KAFKA_TOPIC_ALERTS", "copilot.alerts"),
			TopicSessions: envOrDefault("KAFKA_TOPIC_SESSIONS", "copilot.sessions"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envListOrDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
