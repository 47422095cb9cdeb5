package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"factlens/internal/messages"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchFunc func(ctx context.Context, msg messages.Message) (json.RawMessage, error)

func (f dispatchFunc) Dispatch(ctx context.Context, msg messages.Message) (json.RawMessage, error) {
	return f(ctx, msg)
}

func dialHub(t *testing.T, hub *WebSocketHub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.WebSocketHandler))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

// readNonStatus returns the next frame that is not a heartbeat.
func readNonStatus(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	for {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var probe struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(data, &probe) == nil && probe.Type == "status" {
			continue
		}
		return data
	}
}

func TestWebSocketHubBroadcastsNotifications(t *testing.T) {
	hub := NewWebSocketHub(testLogger())
	defer hub.Close()
	conn := dialHub(t, hub)

	sent := messages.AnalysisProgress{TabID: 3, Stage: "extracting"}
	require.NoError(t, hub.Notify(context.Background(), sent))

	msg, err := messages.Decode(readNonStatus(t, conn))
	require.NoError(t, err)
	assert.Equal(t, sent, msg)
}

func TestWebSocketHubDispatchesClientMessages(t *testing.T) {
	hub := NewWebSocketHub(testLogger())
	defer hub.Close()

	got := make(chan messages.Type, 8)
	hub.SetDispatcher(dispatchFunc(func(_ context.Context, msg messages.Message) (json.RawMessage, error) {
		got <- msg.Type()
		switch msg.(type) {
		case messages.Ping:
			return messages.PongReply(), nil
		case messages.AnalyzeRequest:
			return nil, nil
		default:
			return nil, errors.New("not accepted")
		}
	}))
	conn := dialHub(t, hub)

	ping, err := messages.Encode(messages.Ping{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, ping))
	assert.True(t, messages.IsPong(readNonStatus(t, conn)))

	// no reply for fire-and-forget messages; the next frame answers the history request
	analyze, err := messages.Encode(messages.AnalyzeRequest{TabID: 2})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, analyze))
	history, err := messages.Encode(messages.GetHistory{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, history))

	var frame map[string]string
	require.NoError(t, json.Unmarshal(readNonStatus(t, conn), &frame))
	assert.Equal(t, map[string]string{"type": "error", "error": "not accepted"}, frame)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"nonsense"}`)))
	require.NoError(t, json.Unmarshal(readNonStatus(t, conn), &frame))
	assert.Equal(t, "error", frame["type"])

	assert.Equal(t, messages.TypePing, <-got)
	assert.Equal(t, messages.TypeAnalyzeRequest, <-got)
	assert.Equal(t, messages.TypeGetHistory, <-got)
	assert.Empty(t, got)
}

func TestWebSocketHubWithoutDispatcher(t *testing.T) {
	hub := NewWebSocketHub(testLogger())
	defer hub.Close()
	conn := dialHub(t, hub)

	ping, err := messages.Encode(messages.Ping{})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, ping))

	var frame map[string]string
	require.NoError(t, json.Unmarshal(readNonStatus(t, conn), &frame))
	assert.Equal(t, "no dispatcher configured", frame["error"])
}

func TestWebSocketHubClose(t *testing.T) {
	hub := NewWebSocketHub(testLogger())
	conn := dialHub(t, hub)

	hub.Close()
	hub.Close()

	assert.Zero(t, hub.ClientCount())
	assert.Error(t, hub.Notify(context.Background(), messages.AnalysisProgress{TabID: 1}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
