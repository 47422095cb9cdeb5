package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/ternarybob/arbor"
)

// LocalHost is a TabHost without a browser. Tabs are URLs opened in-process
// and Inject starts an in-process agent that fetches the page over HTTP.
type LocalHost struct {
	fetch  pageFetcher
	logger arbor.ILogger

	mu      sync.Mutex
	nextID  int
	tabs    map[int]*localTab
	onReady func(messages.ContentReady)

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
}

type localTab struct {
	url    string
	agent  *pageAgent
	status models.Status
}

var _ TabHost = (*LocalHost)(nil)

// NewLocalHost creates a host whose agents fetch pages with a resty client.
func NewLocalHost(timeout time.Duration, logger arbor.ILogger) *LocalHost {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "factlens/"+GetVersion()).
		SetHeader("Accept", "text/html,application/xhtml+xml")

	return newLocalHost(func(ctx context.Context, url string) (string, error) {
		resp, err := client.R().SetContext(ctx).Get(url)
		if err != nil {
			return "", WrapError(err, ErrorTypeNetwork, "page_fetch_failed", "failed to fetch page")
		}
		if !resp.IsSuccess() {
			return "", NewExtractionError("page_status", fmt.Sprintf("page returned HTTP %d", resp.StatusCode()))
		}
		return resp.String(), nil
	}, logger)
}

func newLocalHost(fetch pageFetcher, logger arbor.ILogger) *LocalHost {
	baseCtx, stop := context.WithCancel(context.Background())
	return &LocalHost{
		fetch:   fetch,
		logger:  logger,
		tabs:    make(map[int]*localTab),
		baseCtx: baseCtx,
		stop:    stop,
	}
}

// OnReady sets the receiver of the agents' contentScriptReady messages.
func (h *LocalHost) OnReady(fn func(messages.ContentReady)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onReady = fn
}

// Open registers a tab showing url and returns its id.
func (h *LocalHost) Open(url string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.tabs[h.nextID] = &localTab{url: url}
	return h.nextID
}

func (h *LocalHost) agentFor(tabID int) (*pageAgent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[tabID]
	if !ok {
		return nil, fmt.Errorf("no tab with id %d", tabID)
	}
	if t.agent == nil {
		return nil, fmt.Errorf("could not establish connection: receiving end does not exist")
	}
	return t.agent, nil
}

func (h *LocalHost) Connect(_ context.Context, tabID int) error {
	_, err := h.agentFor(tabID)
	return err
}

func (h *LocalHost) Send(ctx context.Context, tabID int, msg messages.Message) (json.RawMessage, error) {
	agent, err := h.agentFor(tabID)
	if err != nil {
		return nil, err
	}
	return agent.handle(ctx, msg)
}

// Inject starts the tab's agent. A tab keeps its first agent.
func (h *LocalHost) Inject(_ context.Context, tabID int) error {
	h.mu.Lock()
	t, ok := h.tabs[tabID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("no tab with id %d", tabID)
	}
	if t.agent != nil {
		h.mu.Unlock()
		return nil
	}
	agent := newPageAgent(tabID, t.url, h.fetch, h.logger)
	t.agent = agent
	onReady := h.onReady
	h.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		agent.run(h.baseCtx, onReady)
	}()
	return nil
}

func (h *LocalHost) Tab(_ context.Context, tabID int) (*models.TabInfo, error) {
	h.mu.Lock()
	t, ok := h.tabs[tabID]
	var url string
	var agent *pageAgent
	if ok {
		url, agent = t.url, t.agent
	}
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no tab with id %d", tabID)
	}

	info := &models.TabInfo{TabID: tabID, URL: url}
	if agent != nil {
		info.Title = agent.title()
	}
	return info, nil
}

func (h *LocalHost) SetStatus(_ context.Context, tabID int, status models.Status) error {
	h.mu.Lock()
	t, ok := h.tabs[tabID]
	if ok {
		t.status = status
	}
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("no tab with id %d", tabID)
	}

	h.logger.Debug().Int("tab_id", tabID).Str("state", string(status.State)).Int("score", status.Score).Msg("Tab status")
	return nil
}

// Status returns the last status set on tabID.
func (h *LocalHost) Status(tabID int) (models.Status, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[tabID]
	if !ok {
		return models.Status{}, false
	}
	return t.status, true
}

// Close stops running agents and waits for them.
func (h *LocalHost) Close() {
	h.stop()
	h.wg.Wait()
}
