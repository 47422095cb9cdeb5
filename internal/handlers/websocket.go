package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"factlens/internal/interfaces"
	"factlens/internal/messages"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// WebSocketHub manages UI connections: it broadcasts analysis messages to
// every client and dispatches the messages clients send.
type WebSocketHub struct {
	clients    map[*wsClient]bool
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
	mutex      sync.RWMutex
	dispatcher interfaces.MessageDispatcher
	logger     arbor.ILogger
	heartbeat  time.Duration
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

var _ interfaces.Notifier = (*WebSocketHub)(nil)

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(logger arbor.ILogger) *WebSocketHub {
	hub := &WebSocketHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		logger:     logger,
		heartbeat:  5 * time.Second,
	}
	hub.wg.Add(1)
	go hub.run()
	return hub
}

// SetDispatcher sets the handler of client messages.
func (h *WebSocketHub) SetDispatcher(d interfaces.MessageDispatcher) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.dispatcher = d
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// run manages client connections and broadcasts
func (h *WebSocketHub) run() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			h.logger.Debug().Msg("WebSocket client disconnected")

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-ticker.C:
			h.SendStatus("online")

		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *WebSocketHub) fanOut(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			h.logger.Warn().Msg("WebSocket client too slow, dropping connection")
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// SendStatus broadcasts server status to all clients
func (h *WebSocketHub) SendStatus(status string) {
	msg := map[string]interface{}{
		"type":      "status",
		"status":    status,
		"timestamp": time.Now().Unix(),
	}
	data, _ := json.Marshal(msg)
	select {
	case h.broadcast <- data:
	default:
	}
}

// Notify broadcasts msg to every UI client.
func (h *WebSocketHub) Notify(_ context.Context, msg messages.Message) error {
	data, err := messages.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case <-h.done:
		return fmt.Errorf("websocket hub closed")
	default:
	}
	select {
	case h.broadcast <- data:
		return nil
	default:
		return fmt.Errorf("websocket broadcast queue full, dropped %s", msg.Type())
	}
}

// Close disconnects every client and stops the hub.
func (h *WebSocketHub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	h.wg.Wait()
}

// Upgrader for WebSocket connections
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for Chrome extension
	},
}

// WebSocketHandler handles WebSocket connection requests
func (h *WebSocketHub) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	h.wg.Add(2)
	go h.writePump(client)
	go h.readPump(client)
}

// writePump is the only writer of the client's connection.
func (h *WebSocketHub) writePump(client *wsClient) {
	defer h.wg.Done()
	defer client.conn.Close()

	for message := range client.send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Warn().Err(err).Msg("Failed to send WebSocket message")
			return
		}
	}
	client.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump dispatches client messages and queues their replies.
func (h *WebSocketHub) readPump(client *wsClient) {
	defer h.wg.Done()
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
	}()

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		reply := h.handle(data)
		if reply == nil {
			continue
		}
		h.mutex.RLock()
		if h.clients[client] {
			select {
			case client.send <- reply:
			default:
			}
		}
		h.mutex.RUnlock()
	}
}

func (h *WebSocketHub) handle(data []byte) []byte {
	msg, err := messages.Decode(data)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Invalid WebSocket message")
		return errorFrame(err)
	}

	h.mutex.RLock()
	dispatcher := h.dispatcher
	h.mutex.RUnlock()
	if dispatcher == nil {
		return errorFrame(fmt.Errorf("no dispatcher configured"))
	}

	reply, err := dispatcher.Dispatch(context.Background(), msg)
	if err != nil {
		h.logger.Warn().Err(err).Str("type", string(msg.Type())).Msg("WebSocket message failed")
		return errorFrame(err)
	}
	return reply
}

func errorFrame(err error) []byte {
	data, _ := json.Marshal(map[string]string{
		"type":  "error",
		"error": err.Error(),
	})
	return data
}
