package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"factlens/internal/common"
	"factlens/internal/handlers"
	"factlens/internal/services"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server (default)",
	Long:  `Start the HTTP API, the UI websocket and the extension bridge, and run until interrupted.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Log startup information first to ensure log file is created
	logger.Info().
		Str("version", common.GetVersion()).
		Str("build", common.GetBuild()).
		Str("environment", cfg.Server.Environment).
		Msg("Starting FactLens service")

	logger.Info().
		Str("config_path", configPath).
		Msg("Configuration loaded")

	if !quiet {
		common.PrintBanner(cfg, "Server", common.GetLogFilePath())
	}

	logger.Info().Msg("Initializing services...")

	bridge := services.NewBridge(cfg.Server.MinExtensionVersion, logger)
	wsHub := handlers.NewWebSocketHub(logger)

	a, err := newApp(cfg, logger, bridge, wsHub, bridge)
	if err != nil {
		wsHub.Close()
		logger.Error().Err(err).Msg("Failed to initialize services")
		return err
	}
	defer a.Close()

	webServer, err := services.NewWebServer(cfg, a.storage, a.coordinator, a.dispatcher, bridge, wsHub, logger)
	if err != nil {
		wsHub.Close()
		logger.Error().Err(err).Msg("Failed to create web server")
		return err
	}

	logger.Info().Msg("Services initialized successfully")

	if err := webServer.Start(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Failed to start web server")
		return err
	}

	logger.Info().
		Int("port", cfg.Server.Port).
		Msg("Web server started successfully")

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info().Msg("Server running - press Ctrl+C to stop")

	<-sigChan
	logger.Info().Msg("Shutdown signal received")

	if err := webServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping web server")
	}

	if !quiet {
		common.PrintShutdownBanner(serviceName)
	}
	logger.Info().Msg("FactLens service shutdown complete")
	return nil
}
