package services

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/ternarybob/arbor"
)

// Progress stages reported through analysisProgress.
const (
	StageStarted    = "started"
	StageExtracting = "extracting"
	StageAnalyzing  = "analyzing"
)

// cleanupTimeout bounds the status and notification calls made after an
// analysis context has already expired.
const cleanupTimeout = 5 * time.Second

// Coordinator runs analyses end to end: status, handshake, extraction,
// pipeline, persistence and notification. Every analysis ends in either an
// analysisComplete or an analysisError notification.
type Coordinator struct {
	host      TabHost
	handshake AgentHandshake
	pipeline  AnalysisPipeline
	store     Storage
	notifier  Notifier
	errorLog  ErrorLogger
	config    *ScanConfig
	logger    arbor.ILogger
	now       func() time.Time

	mu       sync.RWMutex
	settings models.Settings
	closed   bool

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

func NewCoordinator(
	host TabHost,
	handshake AgentHandshake,
	pipeline AnalysisPipeline,
	store Storage,
	notifier Notifier,
	errorLog ErrorLogger,
	config *ScanConfig,
	settings models.Settings,
	logger arbor.ILogger,
) *Coordinator {
	baseCtx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		host:      host,
		handshake: handshake,
		pipeline:  pipeline,
		store:     store,
		notifier:  notifier,
		errorLog:  errorLog,
		config:    config,
		logger:    logger,
		now:       time.Now,
		settings:  settings,
		baseCtx:   baseCtx,
		stop:      stop,
	}
}

// Settings returns the current settings value.
func (c *Coordinator) Settings() models.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// UpdateSettings replaces the settings used by analyses started afterwards
// and persists them. Running analyses keep their snapshot.
func (c *Coordinator) UpdateSettings(settings models.Settings) error {
	c.mu.Lock()
	c.settings = settings
	c.mu.Unlock()

	c.logger.Info().
		Str("auto_scan", strconv.FormatBool(settings.AutoScanEnabled)).
		Msg("Settings updated")

	if c.store == nil {
		return nil
	}
	if err := c.store.SaveSettings(settings); err != nil {
		wrapped := WrapError(err, ErrorTypeStorage, "settings_save_failed", "failed to save settings")
		c.logError("updateSettings", wrapped, nil)
		return wrapped
	}
	return nil
}

// History returns the scan history, newest first.
func (c *Coordinator) History() ([]models.HistoryEntry, error) {
	if c.store == nil {
		return []models.HistoryEntry{}, nil
	}
	return c.store.LoadHistory()
}

// RequestAnalysisAsync starts an analysis of tabID in the background. The
// analysis outlives the caller's context and is cancelled by Close.
func (c *Coordinator) RequestAnalysisAsync(tabID int) {
	c.goAsync(tabID, func() {
		_, _ = c.RequestAnalysis(c.baseCtx, tabID)
	})
}

// AutoScanAsync runs AutoScan in the background.
func (c *Coordinator) AutoScanAsync(tabID int, url string) {
	c.goAsync(tabID, func() {
		c.AutoScan(c.baseCtx, tabID, url)
	})
}

// goAsync runs fn in the background unless Close has started.
func (c *Coordinator) goAsync(tabID int, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		c.logger.Warn().Int("tab_id", tabID).Msg("Coordinator closed, analysis not started")
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn()
	}()
}

// Close cancels background analyses and waits for them to finish. Work
// requested afterwards is dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.stop()
	c.wg.Wait()
}

// RequestAnalysis analyses the page shown in tabID.
func (c *Coordinator) RequestAnalysis(ctx context.Context, tabID int) (*models.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.AnalysisTimeout())
	defer cancel()

	settings := c.Settings()
	started := c.now()

	c.setStatus(ctx, tabID, models.Status{State: models.StateScanning})
	c.notify(ctx, messages.AnalysisProgress{TabID: tabID, Stage: StageStarted})

	tab, result, err := c.run(ctx, tabID, settings)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && ErrorTypeOf(err) == ErrorTypeInternal {
			err = WrapError(err, ErrorTypeNetwork, "analysis_timeout", "Analysis timed out")
		}
		c.fail(tabID, err)
		return nil, err
	}

	c.persist(tab, result)

	// The analysis context may expire while persisting.
	doneCtx, doneCancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer doneCancel()
	c.setStatus(doneCtx, tabID, models.Status{State: models.StateResult, Score: result.CredibilityScore})
	c.notify(doneCtx, messages.AnalysisComplete{TabID: tabID, URL: tab.URL, Results: *result})

	c.logger.Info().
		Int("tab_id", tabID).
		Str("url", tab.URL).
		Int("score", result.CredibilityScore).
		Dur("duration", c.now().Sub(started)).
		Msg("Analysis completed")

	return result, nil
}

func (c *Coordinator) run(ctx context.Context, tabID int, settings models.Settings) (*models.TabInfo, *models.AnalysisResult, error) {
	tab, err := c.host.Tab(ctx, tabID)
	if err != nil {
		return nil, nil, WrapError(err, ErrorTypeBridge, "tab_lookup_failed", "Failed to look up tab")
	}
	if !models.ShouldScanURL(tab.URL) {
		return nil, nil, NewExtractionError("unscannable_url", "This page cannot be analyzed").
			WithContext("url", tab.URL)
	}

	if err := c.handshake.EnsureAgent(ctx, tabID); err != nil {
		return nil, nil, err
	}

	c.notify(ctx, messages.AnalysisProgress{TabID: tabID, Stage: StageExtracting})
	content, err := c.extract(ctx, tabID)
	if err != nil {
		return nil, nil, err
	}
	if content.URL == "" {
		content.URL = tab.URL
	}
	if content.Title == "" {
		content.Title = tab.Title
	}
	if tab.Title == "" {
		tab.Title = content.Title
	}

	c.notify(ctx, messages.AnalysisProgress{TabID: tabID, Stage: StageAnalyzing})
	result, err := c.pipeline.Analyze(ctx, content, settings)
	if err != nil {
		return nil, nil, err
	}
	return tab, result, nil
}

// extract asks the agent for the page content within the extraction
// timeout.
func (c *Coordinator) extract(ctx context.Context, tabID int) (*models.PageContent, error) {
	extractCtx, cancel := context.WithTimeout(ctx, c.config.ExtractionTimeout())
	defer cancel()

	reply, err := c.host.Send(extractCtx, tabID, messages.ExtractContent{})
	if err != nil {
		if errors.Is(extractCtx.Err(), context.DeadlineExceeded) {
			return nil, NewExtractionError("extract_timeout", "Content extraction timed out").WithCause(err)
		}
		return nil, NewExtractionError("extract_failed", "Failed to extract content: "+err.Error()).WithCause(err)
	}

	resp, err := messages.DecodeExtractResponse(reply)
	if err != nil {
		return nil, NewExtractionError("extract_failed", "Failed to extract content: "+err.Error()).WithCause(err)
	}
	if !resp.Success {
		message := resp.Error
		if message == "" {
			message = "Failed to extract content"
		}
		return nil, NewExtractionError("extract_failed", message)
	}
	if resp.Content == nil || resp.Content.Text == "" {
		return nil, NewExtractionError("invalid_content", "Invalid content received for analysis")
	}
	return resp.Content, nil
}

// AutoScan reacts to a tab navigation. A valid cached result for url is
// shown without re-running the analysis. It reports whether anything was
// done.
func (c *Coordinator) AutoScan(ctx context.Context, tabID int, url string) bool {
	if !c.Settings().AutoScanEnabled || !models.ShouldScanURL(url) {
		return false
	}

	if c.store != nil {
		cached, ok, err := c.store.GetCache(url)
		if err != nil {
			c.logError("autoScan", WrapError(err, ErrorTypeStorage, "cache_read_failed", "failed to read cache"), map[string]interface{}{"url": url})
		} else if ok {
			c.logger.Debug().Int("tab_id", tabID).Str("url", url).Msg("Using cached analysis")
			c.setStatus(ctx, tabID, models.Status{State: models.StateResult, Score: cached.CredibilityScore})
			c.notify(ctx, messages.AnalysisComplete{TabID: tabID, URL: url, Results: *cached})
			return true
		}
	}

	_, _ = c.RequestAnalysis(ctx, tabID)
	return true
}

// persist writes history and cache. Failures are logged and never reach the
// caller.
func (c *Coordinator) persist(tab *models.TabInfo, result *models.AnalysisResult) {
	if c.store == nil {
		return
	}

	entry := models.HistoryEntry{
		URL:       tab.URL,
		Title:     tab.Title,
		Timestamp: c.now().UTC().Format(models.TimestampLayout),
		Results:   *result,
	}
	if err := c.store.AppendHistory(entry); err != nil {
		c.logError("persistHistory", WrapError(err, ErrorTypeStorage, "history_write_failed", "failed to save history"),
			map[string]interface{}{"url": tab.URL})
	}
	if err := c.store.PutCache(tab.URL, *result); err != nil {
		c.logError("persistCache", WrapError(err, ErrorTypeStorage, "cache_write_failed", "failed to cache result"),
			map[string]interface{}{"url": tab.URL})
	}
}

// fail reports a terminal analysis error. It uses its own context because
// the analysis context may already be done.
func (c *Coordinator) fail(tabID int, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	c.setStatus(ctx, tabID, models.Status{State: models.StateError})

	msg := messages.AnalysisError{TabID: tabID, Error: UserMessage(err)}
	var se *ScanError
	if errors.As(err, &se) && se.Type != ErrorTypeCredential {
		msg.Details = se.Details
	}
	c.notify(ctx, msg)

	c.logError("requestAnalysis", err, map[string]interface{}{"tab_id": tabID})
}

func (c *Coordinator) setStatus(ctx context.Context, tabID int, status models.Status) {
	if err := c.host.SetStatus(ctx, tabID, status); err != nil {
		c.logger.Warn().Err(err).Int("tab_id", tabID).Str("state", string(status.State)).Msg("Failed to set tab status")
	}
}

func (c *Coordinator) notify(ctx context.Context, msg messages.Message) {
	notifyOrLog(ctx, c.notifier, msg, c.logger)
}

func (c *Coordinator) logError(source string, err error, info map[string]interface{}) {
	if c.errorLog != nil {
		c.errorLog.LogError(source, err, info)
		return
	}
	c.logger.Error().Err(err).Str("source", source).Msg("Error")
}
