package handlers

import (
	"context"
	"errors"
	"strings"
	"sync"

	"factlens/internal/common"
	"factlens/internal/interfaces"
	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/ternarybob/arbor"
)

var _ interfaces.Storage = (*memStore)(nil)

// memStore keeps everything in memory. A broken store fails every call.
type memStore struct {
	mu       sync.Mutex
	broken   bool
	history  []models.HistoryEntry
	errorLog []string
}

var errBroken = errors.New("database closed")

func (s *memStore) AppendHistory(entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return errBroken
	}
	s.history = append([]models.HistoryEntry{entry}, s.history...)
	return nil
}

func (s *memStore) LoadHistory() ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return nil, errBroken
	}
	return append([]models.HistoryEntry(nil), s.history...), nil
}

func (s *memStore) ClearHistory() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return errBroken
	}
	s.history = nil
	return nil
}

func (s *memStore) PutCache(string, models.AnalysisResult) error { return nil }

func (s *memStore) GetCache(string) (*models.AnalysisResult, bool, error) { return nil, false, nil }

func (s *memStore) SaveSettings(models.Settings) error { return nil }

func (s *memStore) LoadSettings() (*models.Settings, bool, error) { return nil, false, nil }

func (s *memStore) AppendErrorLog(record models.ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorLog = append(s.errorLog, record.Source+": "+record.Error)
	return nil
}

func (s *memStore) ExportErrorLog() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return "", errBroken
	}
	return strings.Join(s.errorLog, "\n"), nil
}

func (s *memStore) ClearErrorLog() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorLog = nil
	return nil
}

func (s *memStore) Close() error { return nil }

type fakeCoordinator struct {
	mu        sync.Mutex
	requested []int
	settings  models.Settings
	updateErr error
	store     *memStore
}

func (c *fakeCoordinator) RequestAnalysisAsync(tabID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = append(c.requested, tabID)
}

func (c *fakeCoordinator) Settings() models.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *fakeCoordinator) UpdateSettings(settings models.Settings) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.updateErr != nil {
		return c.updateErr
	}
	c.settings = settings
	return nil
}

func (c *fakeCoordinator) History() ([]models.HistoryEntry, error) {
	return c.store.LoadHistory()
}

type fakeExtension struct {
	connected bool
	version   string
}

func (e fakeExtension) Connected() bool          { return e.connected }
func (e fakeExtension) ExtensionVersion() string { return e.version }

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []messages.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg messages.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return nil
}

func (n *recordingNotifier) sent() []messages.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]messages.Message(nil), n.msgs...)
}

func testConfig() *common.Config {
	return &common.Config{
		Server: common.ServerConfig{
			Name:                "FactLens",
			Environment:         "development",
			MinExtensionVersion: "1.0.0",
		},
	}
}

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func sampleEntry() models.HistoryEntry {
	return models.HistoryEntry{
		URL:       "https://news.example.com/story",
		Title:     "Budget story",
		Timestamp: "2026-10-15T09:30:00.000Z",
		Results: models.AnalysisResult{
			CredibilityScore: 32,
			Summary:          "Mostly unsupported claims.",
			Claims: []models.Claim{
				{
					Text:     "The budget doubled",
					Claimant: "Councillor",
					Source:   "Google Fact Check",
					ClaimReview: []models.ClaimReview{{
						URL:           "https://factcheck.example.org/budget",
						TextualRating: "False",
						LanguageCode:  "en",
					}},
				},
				{
					Text:        "Taxes rose by 40 percent",
					Claimant:    "Unknown",
					Source:      "ClaimBuster",
					ClaimReview: []models.ClaimReview{{TextualRating: "Check-worthy", LanguageCode: "en"}},
				},
			},
		},
	}
}
