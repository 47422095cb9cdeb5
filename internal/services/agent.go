package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/ternarybob/arbor"
)

// pageFetcher loads the HTML of a page.
type pageFetcher func(ctx context.Context, url string) (string, error)

// pageAgent is the in-process extraction agent of one local tab. It answers
// ping at once, loads and extracts the page in the background and then
// pushes its ready signal.
type pageAgent struct {
	tabID  int
	url    string
	fetch  pageFetcher
	logger arbor.ILogger

	mu          sync.Mutex
	initialized bool
	content     *models.PageContent
	initErr     error
	done        chan struct{}
}

func newPageAgent(tabID int, url string, fetch pageFetcher, logger arbor.ILogger) *pageAgent {
	return &pageAgent{
		tabID:  tabID,
		url:    url,
		fetch:  fetch,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// run initializes the agent and calls onReady once it can serve
// extraction requests.
func (a *pageAgent) run(ctx context.Context, onReady func(messages.ContentReady)) {
	content, err := a.load(ctx)

	a.mu.Lock()
	a.initialized = true
	a.content = content
	a.initErr = err
	a.mu.Unlock()
	close(a.done)

	if err != nil {
		a.logger.Warn().Err(err).Int("tab_id", a.tabID).Str("url", a.url).Msg("Agent failed to load page")
	} else {
		a.logger.Debug().Int("tab_id", a.tabID).Int("text_length", len(content.Text)).Msg("Agent initialized")
	}

	if onReady != nil {
		onReady(messages.ContentReady{TabID: a.tabID, URL: a.url})
	}
}

func (a *pageAgent) load(ctx context.Context) (*models.PageContent, error) {
	body, err := a.fetch(ctx, a.url)
	if err != nil {
		return nil, err
	}
	return ExtractPage(a.url, body)
}

// handle answers one message the way a content script does.
func (a *pageAgent) handle(ctx context.Context, msg messages.Message) (json.RawMessage, error) {
	switch msg.(type) {
	case messages.Ping:
		return messages.PongReply(), nil
	case messages.ExtractContent:
		return json.Marshal(a.extract(ctx))
	default:
		return nil, fmt.Errorf("agent cannot handle %s messages", msg.Type())
	}
}

// extract waits for initialization until ctx is done.
func (a *pageAgent) extract(ctx context.Context) messages.ExtractContentResponse {
	select {
	case <-a.done:
	case <-ctx.Done():
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case !a.initialized:
		return messages.ExtractContentResponse{Success: false, Error: "Content script not initialized"}
	case a.initErr != nil:
		return messages.ExtractContentResponse{Success: false, Error: a.initErr.Error()}
	default:
		return messages.ExtractContentResponse{Success: true, Content: a.content}
	}
}

// title returns the page title once known.
func (a *pageAgent) title() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.content == nil {
		return ""
	}
	return a.content.Title
}
