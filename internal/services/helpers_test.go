package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/ternarybob/arbor"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

// paragraph returns a line long enough to be checked on its own.
func paragraph(topic string) string {
	return topic + strings.Repeat(" and this sentence keeps going for a while", 2)
}

// recordingNotifier keeps every message it is given.
type recordingNotifier struct {
	mu   sync.Mutex
	msgs []messages.Message
	err  error
}

func (r *recordingNotifier) Notify(_ context.Context, msg messages.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return r.err
}

func (r *recordingNotifier) sent() []messages.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]messages.Message(nil), r.msgs...)
}

// fakeChecker is a FactChecker with canned output.
type fakeChecker struct {
	name   string
	claims []models.Claim
	err    error

	mu    sync.Mutex
	calls int
	keys  []string
}

func (f *fakeChecker) Name() string { return f.name }

func (f *fakeChecker) CheckClaims(_ context.Context, _ string, apiKey string) ([]models.Claim, error) {
	f.mu.Lock()
	f.calls++
	f.keys = append(f.keys, apiKey)
	f.mu.Unlock()
	return f.claims, f.err
}

func (f *fakeChecker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAI is an AIAnalyzer with a canned assessment.
type fakeAI struct {
	assessment *models.AIAssessment
	err        error

	mu    sync.Mutex
	calls int
}

func (f *fakeAI) Analyze(_ context.Context, _ string, _ string) (*models.AIAssessment, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.assessment, f.err
}

func (f *fakeAI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeTabHost scripts the browser side of the handshake and extraction.
type fakeTabHost struct {
	mu sync.Mutex

	tab        *models.TabInfo
	tabErr     error
	connectErr error
	// pong is the reply to Ping; active agents answer with PongReply.
	pong        func(pings int) (json.RawMessage, error)
	extract     json.RawMessage
	extractErr  error
	injectErr   error
	onInject    func()
	pings       int
	injects     int
	extractions int
	statuses    []models.Status
	statusErr   error
	// extractHangs makes ExtractContent wait for the caller's context.
	extractHangs bool
	// statusNeedsCtx makes SetStatus fail once the context is done, like a
	// real round trip to the extension.
	statusNeedsCtx bool
}

func (h *fakeTabHost) Connect(_ context.Context, _ int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connectErr
}

func (h *fakeTabHost) Send(ctx context.Context, _ int, msg messages.Message) (json.RawMessage, error) {
	h.mu.Lock()
	switch msg.(type) {
	case messages.Ping:
		h.pings++
		pings := h.pings
		pong := h.pong
		h.mu.Unlock()
		if pong == nil {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return pong(pings)
	case messages.ExtractContent:
		h.extractions++
		if h.extractHangs {
			h.mu.Unlock()
			<-ctx.Done()
			return nil, ctx.Err()
		}
		defer h.mu.Unlock()
		return h.extract, h.extractErr
	}
	h.mu.Unlock()
	return nil, fmt.Errorf("unexpected message %s", msg.Type())
}

func (h *fakeTabHost) Inject(_ context.Context, _ int) error {
	h.mu.Lock()
	h.injects++
	onInject := h.onInject
	err := h.injectErr
	h.mu.Unlock()
	if onInject != nil {
		onInject()
	}
	return err
}

func (h *fakeTabHost) Tab(_ context.Context, tabID int) (*models.TabInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tabErr != nil {
		return nil, h.tabErr
	}
	tab := *h.tab
	tab.TabID = tabID
	return &tab, nil
}

func (h *fakeTabHost) SetStatus(ctx context.Context, _ int, status models.Status) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.statusNeedsCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	h.statuses = append(h.statuses, status)
	return h.statusErr
}

func (h *fakeTabHost) counts() (pings, injects, extractions int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pings, h.injects, h.extractions
}

func (h *fakeTabHost) lastStatus() models.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.statuses) == 0 {
		return models.Status{}
	}
	return h.statuses[len(h.statuses)-1]
}

func alwaysPong(int) (json.RawMessage, error) {
	return messages.PongReply(), nil
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
