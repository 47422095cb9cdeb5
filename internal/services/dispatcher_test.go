package services

import (
	"context"
	"testing"
	"time"

	. "factlens/internal/common"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, settings models.Settings) (*Dispatcher, *coordinatorFixture, *ReadySignals) {
	t.Helper()
	f := newCoordinatorFixture(t, settings, nil)
	ready := NewReadySignals()
	return NewDispatcher(f.coordinator, ready, testLogger()), f, ready
}

func hasTerminal(n *recordingNotifier) func() bool {
	return func() bool {
		for _, m := range n.sent() {
			if m.Type() == messages.TypeAnalysisComplete || m.Type() == messages.TypeAnalysisError {
				return true
			}
		}
		return false
	}
}

func TestDispatchPing(t *testing.T) {
	d, _, _ := newTestDispatcher(t, fullSettings)

	reply, err := d.Dispatch(context.Background(), messages.Ping{})
	require.NoError(t, err)
	assert.True(t, messages.IsPong(reply))
}

func TestDispatchAnalyzeRequestRunsInBackground(t *testing.T) {
	d, f, _ := newTestDispatcher(t, fullSettings)

	reply, err := d.Dispatch(context.Background(), messages.AnalyzeRequest{TabID: 4})
	require.NoError(t, err)
	assert.Nil(t, reply)

	require.Eventually(t, hasTerminal(f.notifier), 2*time.Second, 5*time.Millisecond)
	sent := f.notifier.sent()
	complete, ok := sent[len(sent)-1].(messages.AnalysisComplete)
	require.True(t, ok, "last message is %s", sent[len(sent)-1].Type())
	assert.Equal(t, 4, complete.TabID)
	assert.Equal(t, storyURL, complete.URL)
	assert.Equal(t, 32, complete.Results.CredibilityScore)
}

func TestDispatchGetHistory(t *testing.T) {
	d, f, _ := newTestDispatcher(t, fullSettings)

	reply, err := d.Dispatch(context.Background(), messages.GetHistory{})
	require.NoError(t, err)
	msg, err := messages.Decode(reply)
	require.NoError(t, err)
	assert.Empty(t, msg.(messages.History).Entries)

	_, err = f.coordinator.RequestAnalysis(context.Background(), 1)
	require.NoError(t, err)

	reply, err = d.Dispatch(context.Background(), messages.GetHistory{})
	require.NoError(t, err)
	msg, err = messages.Decode(reply)
	require.NoError(t, err)
	entries := msg.(messages.History).Entries
	require.Len(t, entries, 1)
	assert.Equal(t, 32, entries[0].Results.CredibilityScore)
}

func TestDispatchSettingsChanged(t *testing.T) {
	d, f, _ := newTestDispatcher(t, fullSettings)

	update := models.Settings{GoogleAPIKey: "g", GeminiAPIKey: "m", AutoScanEnabled: true}
	reply, err := d.Dispatch(context.Background(), messages.SettingsChanged{Settings: update})
	require.NoError(t, err)
	assert.Nil(t, reply)
	assert.Equal(t, models.Settings{
		GoogleAPIKey:      "g",
		GeminiAPIKey:      "m",
		ClaimBusterAPIKey: fullSettings.ClaimBusterAPIKey,
		AutoScanEnabled:   true,
	}, f.coordinator.Settings())
}

func TestDispatchSettingsChangedWithoutKeysKeepsCredentials(t *testing.T) {
	d, f, _ := newTestDispatcher(t, fullSettings)

	_, err := d.Dispatch(context.Background(), messages.SettingsChanged{Settings: models.Settings{AutoScanEnabled: true}})
	require.NoError(t, err)

	want := fullSettings
	want.AutoScanEnabled = true
	assert.Equal(t, want, f.coordinator.Settings())

	saved, found, err := f.store.LoadSettings()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, *saved)

	result, err := f.coordinator.RequestAnalysis(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 32, result.CredibilityScore)
}

func TestDispatchContentReadySignalsHandshake(t *testing.T) {
	d, _, ready := newTestDispatcher(t, fullSettings)

	ch, unsubscribe := ready.Subscribe(12)
	defer unsubscribe()

	_, err := d.Dispatch(context.Background(), messages.ContentReady{TabID: 12, URL: storyURL})
	require.NoError(t, err)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("ready signal not delivered")
	}

	// nobody waiting is not an error
	_, err = d.Dispatch(context.Background(), messages.ContentReady{TabID: 13})
	assert.NoError(t, err)
}

func TestDispatchTabUpdatedAutoScans(t *testing.T) {
	settings := fullSettings
	settings.AutoScanEnabled = true
	d, f, _ := newTestDispatcher(t, settings)

	reply, err := d.Dispatch(context.Background(), messages.TabUpdated{TabID: 2, URL: storyURL})
	require.NoError(t, err)
	assert.Nil(t, reply)

	require.Eventually(t, hasTerminal(f.notifier), 2*time.Second, 5*time.Millisecond)
}

func TestDispatchRejectsOutboundMessages(t *testing.T) {
	d, _, _ := newTestDispatcher(t, fullSettings)

	tests := []struct {
		name string
		msg  messages.Message
		code string
	}{
		{"history", messages.History{}, "outbound_message"},
		{"progress", messages.AnalysisProgress{TabID: 1, Stage: StageStarted}, "outbound_message"},
		{"complete", messages.AnalysisComplete{TabID: 1}, "outbound_message"},
		{"error", messages.AnalysisError{TabID: 1, Error: "x"}, "outbound_message"},
		{"extract", messages.ExtractContent{}, "outbound_message"},
		{"extract response", messages.ExtractContentResponse{}, "outbound_message"},
		{"nil", nil, "nil_message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := d.Dispatch(context.Background(), tt.msg)
			require.Error(t, err)
			assert.Nil(t, reply)
			assert.Equal(t, ErrorTypeValidation, ErrorTypeOf(err))

			var se *ScanError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.code, se.Code)
		})
	}
}
