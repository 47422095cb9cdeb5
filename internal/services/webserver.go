package services

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"factlens/internal/common"
	"factlens/internal/handlers"
	"factlens/internal/interfaces"
	"factlens/internal/middleware"

	"github.com/ternarybob/arbor"
)

// webServer serves the API, the UI websocket and the extension bridge
type webServer struct {
	config      *common.Config
	server      *http.Server
	logger      arbor.ILogger
	apiHandlers *handlers.APIHandlers
	uiHandlers  *handlers.UIHandlers
	wsHub       *handlers.WebSocketHub
	bridge      *Bridge

	mu        sync.Mutex
	running   bool
	startTime time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(
	cfg *common.Config,
	storage interfaces.Storage,
	coordinator interfaces.AnalysisCoordinator,
	dispatcher interfaces.MessageDispatcher,
	bridge *Bridge,
	wsHub *handlers.WebSocketHub,
	logger arbor.ILogger,
) (interfaces.WebService, error) {
	mux := http.NewServeMux()

	wsHub.SetDispatcher(dispatcher)
	bridge.SetDispatcher(dispatcher.Dispatch)

	apiHandlers := handlers.NewAPIHandlers(cfg, storage, coordinator, bridge, MultiNotifier{wsHub, bridge}, logger)

	uiHandlers, err := handlers.NewUIHandlers(cfg, storage, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize UI handlers, only API endpoints will be available")
	}

	ws := &webServer{
		config:      cfg,
		logger:      logger,
		apiHandlers: apiHandlers,
		uiHandlers:  uiHandlers,
		wsHub:       wsHub,
		bridge:      bridge,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: mux,
		},
	}

	// Create middleware chain
	logMiddleware := middleware.Logging(logger)
	corsMiddleware := middleware.CORS
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, logger)

	api := func(h http.HandlerFunc) http.HandlerFunc {
		return logMiddleware(corsMiddleware(limiter.Limit(h)))
	}

	// Register API endpoints with middleware
	mux.HandleFunc("/health", api(apiHandlers.HealthHandler))
	mux.HandleFunc("/version", api(apiHandlers.VersionHandler))
	mux.HandleFunc("/history", api(apiHandlers.HistoryHandler))
	mux.HandleFunc("/api/details", api(apiHandlers.DetailsDataHandler))
	mux.HandleFunc("/analyze", api(apiHandlers.AnalyzeHandler))
	mux.HandleFunc("/settings", api(apiHandlers.SettingsHandler))
	mux.HandleFunc("/errors", api(apiHandlers.ErrorsHandler))

	// Register WebSocket endpoints
	mux.HandleFunc("/ws", corsMiddleware(wsHub.WebSocketHandler))
	mux.Handle("/bridge", bridge)

	// Register UI endpoints if available
	if uiHandlers != nil {
		mux.HandleFunc("/", logMiddleware(uiHandlers.IndexHandler))
		mux.HandleFunc("/details", logMiddleware(uiHandlers.DetailsHandler))
	}

	return ws, nil
}

// Start starts the web server
func (ws *webServer) Start(ctx context.Context) error {
	ws.mu.Lock()
	ws.running = true
	ws.startTime = time.Now()
	ws.mu.Unlock()

	go func() {
		ws.logger.Info().Int("port", ws.config.Server.Port).Msg("Starting web server")
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error().Err(err).Msg("Web server error")
		}
	}()
	return nil
}

// Stop stops the web server
func (ws *webServer) Stop() error {
	ws.mu.Lock()
	ws.running = false
	ws.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws.logger.Info().Msg("Shutting down web server")
	err := ws.server.Shutdown(ctx)
	ws.wsHub.Close()
	return err
}

// IsRunning returns true if the web server is running
func (ws *webServer) IsRunning() bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.running
}
