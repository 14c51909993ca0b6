package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"ai-compliance-copilot-service/internal/config"
	"ai-compliance-copilot-service/internal/events"
	"ai-compliance-copilot-service/internal/observability"
	"ai-compliance-copilot-service/internal/observability/logging"
	"ai-compliance-copilot-service/internal/rules"
	"ai-compliance-copilot-service/internal/service/alert"
	"ai-compliance-copilot-service/internal/service/stt"
	"ai-compliance-copilot-service/internal/service/stt/google"
	"ai-compliance-copilot-service/internal/service/stt/mock"
	"ai-compliance-copilot-service/internal/session"
	"ai-compliance-copilot-service/internal/supervisor"
	"ai-compliance-copilot-service/internal/transport"
)

func main() {
	cfg := config.Load()

	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	// A bad rule pattern is fatal: the service must not monitor with a
	// partial catalog.
	catalog, err := rules.Load(cfg.Rules.File)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load compliance rule catalog")
	}
	matcher := rules.NewMatcher(catalog, cfg.Copilot.MatchBudget)

	publisher := events.New(&events.Config{
		Enabled:       cfg.Kafka.Enabled,
		Brokers:       cfg.Kafka.Brokers,
		TopicAlerts:   cfg.Kafka.TopicAlerts,
		TopicSessions: cfg.Kafka.TopicSessions,
		Principal:     cfg.Service.Principal,
	})
	defer publisher.Close()

	dispatcher := alert.NewDispatcher(cfg.Copilot.DedupContextChars, publisher)
	store := session.NewStore()

	var factory supervisor.AdapterFactory
	switch cfg.STT.Provider {
	case "google":
		factory = func(ctx context.Context) (stt.Adapter, error) {
			return google.New(ctx, cfg.STT.SampleRateHz, cfg.STT.LanguageCode)
		}
	case "mock":
		factory = func(ctx context.Context) (stt.Adapter, error) {
			return mock.New(), nil
		}
	default:
		log.Fatal().Str("provider", cfg.STT.Provider).Msg("Unknown STT provider")
	}

	sup := supervisor.New(context.Background(), supervisor.Config{
		WindowCapacity: cfg.Copilot.WindowCapacity,
		AlertQueueSize: cfg.Copilot.AlertQueueSize,
		Liveness:       cfg.Copilot.LivenessTimeout,
		MonitoredRole:  cfg.Copilot.MonitoredSpeaker,
		Provider:       cfg.STT.Provider,
		AdapterFactory: factory,
	}, store, matcher, dispatcher, publisher)

	obs := observability.NewServer(":" + cfg.Service.MetricsPort)
	obs.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Service.HTTPPort,
		Handler:      transport.NewRouter(sup),
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Int("rules", catalog.Len()).
			Str("sttProvider", cfg.STT.Provider).
			Msg("Compliance copilot service started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown error")
	}
	sup.Shutdown()
	if err := obs.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability shutdown error")
	}
}
