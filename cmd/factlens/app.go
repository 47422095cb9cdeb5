package main

import (
	"os"

	"factlens/internal/common"
	"factlens/internal/interfaces"
	"factlens/internal/services"

	"github.com/ternarybob/arbor"
)

// app holds the services shared by the server and the scan command. Only
// the tab host and the UI notifiers differ between the two.
type app struct {
	storage     interfaces.Storage
	publisher   *services.EventPublisher
	ready       *services.ReadySignals
	coordinator *services.Coordinator
	dispatcher  *services.Dispatcher
	logger      arbor.ILogger
}

func newApp(cfg *common.Config, logger arbor.ILogger, host interfaces.TabHost, notifiers ...interfaces.Notifier) (*app, error) {
	storage, err := services.NewStorage(&cfg.Storage)
	if err != nil {
		return nil, err
	}

	persisted, found, err := storage.LoadSettings()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load persisted settings, using configuration")
	}
	if !found {
		persisted = nil
	}
	settings := services.ResolveSettings(cfg.Settings, persisted, os.Getenv)

	publisher := services.NewEventPublisher(&cfg.Kafka, logger)
	notifier := services.MultiNotifier(notifiers)
	if publisher != nil {
		notifier = append(notifier, publisher)
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("Publishing analysis events to Kafka")
	}

	ready := services.NewReadySignals()
	handshake := services.NewHandshake(host, ready, &cfg.Scan, logger)
	pipeline := services.NewAnalysisPipeline(
		services.NewGoogleFactCheck(&cfg.Google, logger),
		services.NewClaimBuster(&cfg.ClaimBuster, logger),
		services.NewGeminiAnalyzer(&cfg.Gemini, logger),
		logger,
	)
	errorLog := services.NewErrorLogger(storage, logger)

	coordinator := services.NewCoordinator(host, handshake, pipeline, storage, notifier, errorLog, &cfg.Scan, settings, logger)

	return &app{
		storage:     storage,
		publisher:   publisher,
		ready:       ready,
		coordinator: coordinator,
		dispatcher:  services.NewDispatcher(coordinator, ready, logger),
		logger:      logger,
	}, nil
}

// Close waits for running analyses before releasing storage.
func (a *app) Close() {
	a.coordinator.Close()
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close event publisher")
	}
	if err := a.storage.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close storage")
	}
}
