package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticPage(html string) pageFetcher {
	return func(context.Context, string) (string, error) {
		return html, nil
	}
}

func decodeExtract(t *testing.T, raw json.RawMessage) messages.ExtractContentResponse {
	t.Helper()
	var resp messages.ExtractContentResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func TestLocalHostConnectBeforeInject(t *testing.T) {
	host := newLocalHost(staticPage(articleHTML), testLogger())
	defer host.Close()

	id := host.Open(storyURL)
	assert.Equal(t, 1, id)
	assert.Equal(t, 2, host.Open("https://other.example.com"))

	err := host.Connect(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "receiving end does not exist")

	_, err = host.Send(context.Background(), id, messages.Ping{})
	require.Error(t, err)

	_, err = host.Tab(context.Background(), 99)
	assert.EqualError(t, err, "no tab with id 99")
	assert.Error(t, host.Inject(context.Background(), 99))
}

func TestLocalHostAgentLifecycle(t *testing.T) {
	host := newLocalHost(staticPage(articleHTML), testLogger())
	defer host.Close()

	ready := make(chan messages.ContentReady, 1)
	host.OnReady(func(m messages.ContentReady) { ready <- m })

	id := host.Open(storyURL)
	require.NoError(t, host.Inject(context.Background(), id))
	require.NoError(t, host.Inject(context.Background(), id), "second injection keeps the first agent")
	require.NoError(t, host.Connect(context.Background(), id))

	pong, err := host.Send(context.Background(), id, messages.Ping{})
	require.NoError(t, err)
	assert.True(t, messages.IsPong(pong))

	select {
	case m := <-ready:
		assert.Equal(t, messages.ContentReady{TabID: id, URL: storyURL}, m)
	case <-time.After(2 * time.Second):
		t.Fatal("agent never signalled readiness")
	}

	raw, err := host.Send(context.Background(), id, messages.ExtractContent{})
	require.NoError(t, err)
	resp := decodeExtract(t, raw)
	require.True(t, resp.Success)
	assert.Equal(t, "City Budget Approved", resp.Content.Title)

	tab, err := host.Tab(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, &models.TabInfo{TabID: id, URL: storyURL, Title: "City Budget Approved"}, tab)

	_, err = host.Send(context.Background(), id, messages.GetHistory{})
	assert.Error(t, err)
}

func TestLocalHostExtractWaitsForInitialization(t *testing.T) {
	release := make(chan struct{})
	host := newLocalHost(func(ctx context.Context, _ string) (string, error) {
		select {
		case <-release:
			return articleHTML, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, testLogger())
	defer host.Close()

	id := host.Open(storyURL)
	require.NoError(t, host.Inject(context.Background(), id))

	t.Run("gives up with the caller", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		raw, err := host.Send(ctx, id, messages.ExtractContent{})
		require.NoError(t, err)
		resp := decodeExtract(t, raw)
		assert.False(t, resp.Success)
		assert.Equal(t, "Content script not initialized", resp.Error)
	})

	t.Run("answers once loaded", func(t *testing.T) {
		var (
			wg   sync.WaitGroup
			resp messages.ExtractContentResponse
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := host.Send(context.Background(), id, messages.ExtractContent{})
			if err == nil {
				_ = json.Unmarshal(raw, &resp)
			}
		}()
		close(release)
		wg.Wait()
		assert.True(t, resp.Success)
	})
}

func TestLocalHostFetchFailure(t *testing.T) {
	host := newLocalHost(func(context.Context, string) (string, error) {
		return "", errors.New("connection refused")
	}, testLogger())
	defer host.Close()

	id := host.Open(storyURL)
	require.NoError(t, host.Inject(context.Background(), id))

	raw, err := host.Send(context.Background(), id, messages.ExtractContent{})
	require.NoError(t, err)
	resp := decodeExtract(t, raw)
	assert.False(t, resp.Success)
	assert.Equal(t, "connection refused", resp.Error)
}

func TestLocalHostStatus(t *testing.T) {
	host := newLocalHost(staticPage(articleHTML), testLogger())
	defer host.Close()

	id := host.Open(storyURL)
	_, ok := host.Status(id)
	assert.True(t, ok)

	status := models.Status{State: models.StateResult, Score: 64}
	require.NoError(t, host.SetStatus(context.Background(), id, status))
	got, ok := host.Status(id)
	assert.True(t, ok)
	assert.Equal(t, status, got)

	assert.Error(t, host.SetStatus(context.Background(), 5, status))
	_, ok = host.Status(5)
	assert.False(t, ok)
}

func TestLocalHostCloseStopsPendingAgents(t *testing.T) {
	host := newLocalHost(func(ctx context.Context, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}, testLogger())

	id := host.Open(storyURL)
	require.NoError(t, host.Inject(context.Background(), id))

	done := make(chan struct{})
	go func() {
		host.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the agent")
	}
}

// The scan command's graph: a local host driven through the real handshake,
// with the agent's ready signal routed by the dispatcher.
func TestLocalHostEndToEndAnalysis(t *testing.T) {
	logger := testLogger()
	host := newLocalHost(staticPage(articleHTML), logger)
	defer host.Close()

	store := newTestStorage(t, 10)
	ready := NewReadySignals()
	cfg := testScanConfig()
	pipeline := NewAnalysisPipeline(
		&fakeChecker{name: sourceGoogle, claims: []models.Claim{{
			Text:        "The budget doubled",
			ClaimReview: []models.ClaimReview{{TextualRating: "False"}},
		}}},
		&fakeChecker{name: sourceClaimBuster, claims: []models.Claim{}},
		&fakeAI{assessment: &models.AIAssessment{CredibilityScore: 8, TotalReviews: 2, Summary: "ok"}},
		logger,
	)
	notifier := &recordingNotifier{}
	coordinator := NewCoordinator(host, NewHandshake(host, ready, cfg, logger), pipeline, store, notifier,
		NewErrorLogger(store, logger), cfg, fullSettings, logger)
	defer coordinator.Close()

	dispatcher := NewDispatcher(coordinator, ready, logger)
	host.OnReady(func(m messages.ContentReady) {
		_, _ = dispatcher.Dispatch(context.Background(), m)
	})

	id := host.Open(storyURL)
	result, err := coordinator.RequestAnalysis(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 32, result.CredibilityScore)

	status, _ := host.Status(id)
	assert.Equal(t, models.Status{State: models.StateResult, Score: 32}, status)

	history, err := store.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "City Budget Approved", history[0].Title)
	assert.True(t, strings.HasPrefix(history[0].URL, "https://news.example.com"))
}
