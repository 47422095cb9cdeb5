// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 10:12:00 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"factlens/internal/common"
	"factlens/internal/details"
	"factlens/internal/interfaces"
	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/ternarybob/arbor"
)

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config      *common.Config
	storage     interfaces.Storage
	coordinator interfaces.AnalysisCoordinator
	extension   interfaces.ExtensionLink
	notifier    interfaces.Notifier
	logger      arbor.ILogger
	startTime   time.Time
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
	Services  struct {
		Database  bool `json:"database"`
		Extension bool `json:"extension"`
	} `json:"services"`
}

// VersionResponse represents version information for both server and extension
type VersionResponse struct {
	Server struct {
		Version string `json:"version"`
		Build   string `json:"build"`
		Commit  string `json:"commit"`
	} `json:"server"`
	Extension struct {
		Version        string `json:"version"`
		MinVersion     string `json:"min_version"`
		UpdateRequired bool   `json:"update_required"`
	} `json:"extension"`
}

// HistoryItem is a history entry with its details view link
type HistoryItem struct {
	models.HistoryEntry
	Band        models.ScoreBand `json:"band"`
	DetailsLink string           `json:"details_link,omitempty"`
}

// HistoryResponse lists the scan history, newest first
type HistoryResponse struct {
	Entries []HistoryItem `json:"entries"`
	Count   int           `json:"count"`
}

// SettingsResponse reports configured credentials without exposing them
type SettingsResponse struct {
	APIStatus       models.APIStatus `json:"apiStatus"`
	AutoScanEnabled bool             `json:"autoScanEnabled"`
}

// AnalyzeResponse acknowledges an accepted analysis request
type AnalyzeResponse struct {
	Accepted bool `json:"accepted"`
	TabID    int  `json:"tabId"`
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(
	config *common.Config,
	storage interfaces.Storage,
	coordinator interfaces.AnalysisCoordinator,
	extension interfaces.ExtensionLink,
	notifier interfaces.Notifier,
	logger arbor.ILogger,
) *APIHandlers {
	return &APIHandlers{
		config:      config,
		storage:     storage,
		coordinator: coordinator,
		extension:   extension,
		notifier:    notifier,
		logger:      logger,
		startTime:   time.Now(),
	}
}

// HealthHandler returns system health status
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	health.Services.Database = h.testDatabaseConnection()
	if h.extension != nil {
		health.Services.Extension = h.extension.Connected()
	}

	// If database is down, mark as degraded
	if !health.Services.Database {
		health.Status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, health)
}

// VersionHandler returns version information and checks whether the calling
// extension must update
func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	clientExtVersion := r.URL.Query().Get("extension_version")

	versionResp := VersionResponse{}
	versionResp.Server.Version = common.GetVersion()
	versionResp.Server.Build = common.GetBuild()
	versionResp.Server.Commit = common.GetGitCommit()
	versionResp.Extension.MinVersion = h.config.Server.MinExtensionVersion

	if clientExtVersion == "" && h.extension != nil {
		clientExtVersion = h.extension.ExtensionVersion()
	}

	if clientExtVersion != "" {
		updateRequired, err := common.ExtensionUpdateRequired(clientExtVersion, h.config.Server.MinExtensionVersion)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid extension version", err)
			return
		}
		versionResp.Extension.Version = clientExtVersion
		versionResp.Extension.UpdateRequired = updateRequired
	} else {
		versionResp.Extension.Version = "unknown"
	}

	h.writeJSON(w, http.StatusOK, versionResp)
}

// HistoryHandler lists (GET) or clears (DELETE) the scan history
func (h *APIHandlers) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGetHistory(w, r)
	case http.MethodDelete:
		h.handleClearHistory(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandlers) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.storage.LoadHistory()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to load history")
		h.writeError(w, http.StatusInternalServerError, "Failed to load history", err)
		return
	}

	response := HistoryResponse{
		Entries: make([]HistoryItem, 0, len(entries)),
		Count:   len(entries),
	}
	for _, entry := range entries {
		item := HistoryItem{
			HistoryEntry: entry,
			Band:         models.BandFor(entry.Results.CredibilityScore),
		}
		link, err := details.Link("/details", entry)
		if err != nil {
			h.logger.Warn().Err(err).Str("url", entry.URL).Msg("Failed to build details link")
		} else {
			item.DetailsLink = link
		}
		response.Entries = append(response.Entries, item)
	}

	h.writeJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.ClearHistory(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to clear history")
		h.writeError(w, http.StatusInternalServerError, "Failed to clear history", err)
		return
	}
	h.logger.Info().Msg("History cleared")
	w.WriteHeader(http.StatusNoContent)
}

// DetailsDataHandler decodes a details view payload and returns the entry
// as JSON
func (h *APIHandlers) DetailsDataHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entry, err := details.Decode(r.URL.Query().Get(details.QueryParam))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Error processing history data", err)
		return
	}
	h.writeJSON(w, http.StatusOK, entry)
}

// AnalyzeHandler starts an analysis of a tab
func (h *APIHandlers) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.AnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid analysis request", err)
		return
	}
	if req.TabID <= 0 {
		h.writeError(w, http.StatusBadRequest, "Invalid analysis request", errors.New("tabId must be positive"))
		return
	}

	h.coordinator.RequestAnalysisAsync(req.TabID)
	h.writeJSON(w, http.StatusAccepted, AnalyzeResponse{Accepted: true, TabID: req.TabID})
}

// SettingsHandler reports (GET) or updates (PUT) the user settings
func (h *APIHandlers) SettingsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.writeJSON(w, http.StatusOK, settingsResponse(h.coordinator.Settings()))
	case http.MethodPut, http.MethodPost:
		h.handleUpdateSettings(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *APIHandlers) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var update models.Settings
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid settings", err)
		return
	}

	settings := h.coordinator.Settings().Merge(update)
	if err := h.coordinator.UpdateSettings(settings); err != nil {
		h.writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}

	if h.notifier != nil {
		// Keys never leave the service.
		broadcast := messages.SettingsChanged{Settings: models.Settings{AutoScanEnabled: settings.AutoScanEnabled}}
		if err := h.notifier.Notify(r.Context(), broadcast); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to broadcast settings change")
		}
	}

	h.writeJSON(w, http.StatusOK, settingsResponse(settings))
}

func settingsResponse(settings models.Settings) SettingsResponse {
	return SettingsResponse{
		APIStatus:       settings.APIStatus(),
		AutoScanEnabled: settings.AutoScanEnabled,
	}
}

// ErrorsHandler exports (GET) or clears (DELETE) the diagnostic error log
func (h *APIHandlers) ErrorsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		export, err := h.storage.ExportErrorLog()
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to export error log", err)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="factlens-errors.log"`)
		w.Write([]byte(export))
	case http.MethodDelete:
		if err := h.storage.ClearErrorLog(); err != nil {
			h.writeError(w, http.StatusInternalServerError, "Failed to clear error log", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// testDatabaseConnection checks if the database is accessible
func (h *APIHandlers) testDatabaseConnection() bool {
	if h.storage == nil {
		return false
	}
	_, err := h.storage.LoadHistory()
	return err == nil
}

func (h *APIHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		var se *common.ScanError
		if errors.As(err, &se) {
			resp.Details = se.Message
		} else {
			resp.Details = err.Error()
		}
	}
	h.writeJSON(w, status, resp)
}
