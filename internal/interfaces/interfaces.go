package interfaces

import (
	"context"
	"encoding/json"

	"factlens/internal/messages"
	"factlens/internal/models"
)

type Storage interface {
	HistoryStore
	ResultCache
	SettingsStore
	ErrorLogStore
	Close() error
}

type HistoryStore interface {
	AppendHistory(entry models.HistoryEntry) error
	LoadHistory() ([]models.HistoryEntry, error)
	ClearHistory() error
}

type ResultCache interface {
	PutCache(url string, results models.AnalysisResult) error
	// GetCache returns false for missing and expired entries.
	GetCache(url string) (*models.AnalysisResult, bool, error)
}

type SettingsStore interface {
	SaveSettings(settings models.Settings) error
	LoadSettings() (*models.Settings, bool, error)
}

type ErrorLogStore interface {
	AppendErrorLog(record models.ErrorRecord) error
	ExportErrorLog() (string, error)
	ClearErrorLog() error
}

// TabHost is the browser-side runtime that owns tabs: it reaches the page
// agent, injects it and shows per-tab status.
type TabHost interface {
	// Connect opens a channel to the tab. It fails when no agent listens.
	Connect(ctx context.Context, tabID int) error
	// Send delivers msg to the agent in the tab and returns its raw reply.
	Send(ctx context.Context, tabID int, msg messages.Message) (json.RawMessage, error)
	// Inject loads the agent into the tab.
	Inject(ctx context.Context, tabID int) error
	Tab(ctx context.Context, tabID int) (*models.TabInfo, error)
	SetStatus(ctx context.Context, tabID int, status models.Status) error
}

// Notifier delivers UI-bound messages. Delivery failures are returned so
// callers can log them.
type Notifier interface {
	Notify(ctx context.Context, msg messages.Message) error
}

type FactChecker interface {
	Name() string
	CheckClaims(ctx context.Context, text, apiKey string) ([]models.Claim, error)
}

type AIAnalyzer interface {
	Analyze(ctx context.Context, text, apiKey string) (*models.AIAssessment, error)
}

type AnalysisPipeline interface {
	Analyze(ctx context.Context, content *models.PageContent, settings models.Settings) (*models.AnalysisResult, error)
}

type AgentHandshake interface {
	EnsureAgent(ctx context.Context, tabID int) error
}

type ErrorLogger interface {
	LogError(source string, err error, info map[string]interface{})
}

type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// AnalysisCoordinator is the part of the coordinator exposed to the HTTP
// and websocket handlers.
type AnalysisCoordinator interface {
	RequestAnalysisAsync(tabID int)
	Settings() models.Settings
	UpdateSettings(settings models.Settings) error
	History() ([]models.HistoryEntry, error)
}

// MessageDispatcher handles inbound messages and returns the encoded reply,
// if any.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, msg messages.Message) (json.RawMessage, error)
}

// ExtensionLink reports the state of the browser extension connection.
type ExtensionLink interface {
	Connected() bool
	ExtensionVersion() string
}
