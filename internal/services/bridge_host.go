package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	. "factlens/internal/common"
	. "factlens/internal/interfaces"

	"factlens/internal/messages"
	"factlens/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
)

// Bridge frame kinds
const (
	frameRequest = "request"
	frameReply   = "reply"
	frameHello   = "hello"
	frameEvent   = "event"
)

// Bridge request operations
const (
	opConnect = "connect"
	opSend    = "send"
	opInject  = "inject"
	opTab     = "tab"
	opStatus  = "status"
	opNotify  = "notify"
)

// bridgeFrame is the unit exchanged with the extension over /bridge.
type bridgeFrame struct {
	Kind           string          `json:"kind"`
	ID             string          `json:"id,omitempty"`
	Op             string          `json:"op,omitempty"`
	TabID          int             `json:"tabId,omitempty"`
	Message        json.RawMessage `json:"message,omitempty"`
	Status         *models.Status  `json:"status,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	Version        string          `json:"version,omitempty"`
	UpdateRequired bool            `json:"updateRequired,omitempty"`
}

// DispatchFunc handles a message pushed by the extension.
type DispatchFunc func(ctx context.Context, msg messages.Message) (json.RawMessage, error)

// Bridge connects the service to the browser extension. The extension
// executes tab operations on the service's behalf, so the bridge is the
// TabHost of a real browser. It is also a Notifier for the extension UI.
type Bridge struct {
	minVersion string
	logger     arbor.ILogger
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[string]chan bridgeFrame
	version  string
	dispatch DispatchFunc

	writeMu sync.Mutex
}

var (
	_ TabHost  = (*Bridge)(nil)
	_ Notifier = (*Bridge)(nil)
)

func NewBridge(minVersion string, logger arbor.ILogger) *Bridge {
	return &Bridge{
		minVersion: minVersion,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for Chrome extension
			},
		},
		pending: make(map[string]chan bridgeFrame),
	}
}

// SetDispatcher sets the handler of extension events.
func (b *Bridge) SetDispatcher(fn DispatchFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dispatch = fn
}

// Connected reports whether an extension is attached.
func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// ExtensionVersion is the version announced by the attached extension.
func (b *Bridge) ExtensionVersion() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

// ServeHTTP upgrades the request and serves the extension until it
// disconnects. A new extension connection replaces the previous one.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Error().Err(err).Msg("Bridge upgrade failed")
		return
	}

	b.attach(conn)
	b.logger.Info().Str("remote", r.RemoteAddr).Msg("Extension connected")

	b.readLoop(r.Context(), conn)

	b.detach(conn)
	b.logger.Info().Str("remote", r.RemoteAddr).Msg("Extension disconnected")
}

func (b *Bridge) attach(conn *websocket.Conn) {
	b.mu.Lock()
	previous := b.conn
	b.conn = conn
	b.version = ""
	b.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// detach forgets conn and fails every request still waiting on it.
func (b *Bridge) detach(conn *websocket.Conn) {
	conn.Close()

	b.mu.Lock()
	if b.conn != conn {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	pending := b.pending
	b.pending = make(map[string]chan bridgeFrame)
	b.mu.Unlock()

	for id, ch := range pending {
		ch <- bridgeFrame{Kind: frameReply, ID: id, Error: "extension disconnected"}
	}
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var frame bridgeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.logger.Warn().Err(err).Msg("Bridge read failed")
			}
			return
		}

		switch frame.Kind {
		case frameReply:
			b.resolve(frame)
		case frameHello:
			b.hello(conn, frame)
		case frameEvent:
			b.event(ctx, conn, frame)
		default:
			b.logger.Warn().Str("kind", frame.Kind).Msg("Unknown bridge frame")
		}
	}
}

func (b *Bridge) resolve(frame bridgeFrame) {
	b.mu.Lock()
	ch, ok := b.pending[frame.ID]
	delete(b.pending, frame.ID)
	b.mu.Unlock()

	if !ok {
		b.logger.Debug().Str("id", frame.ID).Msg("Reply for unknown request")
		return
	}
	ch <- frame
}

// hello records the extension version and tells the extension whether it
// is older than the supported minimum.
func (b *Bridge) hello(conn *websocket.Conn, frame bridgeFrame) {
	b.mu.Lock()
	b.version = frame.Version
	b.mu.Unlock()

	reply := bridgeFrame{Kind: frameHello, Version: GetVersion()}
	if b.minVersion != "" {
		outdated, err := ExtensionUpdateRequired(frame.Version, b.minVersion)
		if err != nil {
			b.logger.Warn().Err(err).Msg("Cannot compare extension version")
		} else if outdated {
			b.logger.Warn().
				Str("extension_version", frame.Version).
				Str("min_version", b.minVersion).
				Msg("Extension update required")
		}
		reply.UpdateRequired = outdated
	}

	if err := b.write(conn, reply); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to answer extension hello")
	}
}

// event dispatches a message pushed by the extension. Events with an id get
// a reply frame.
func (b *Bridge) event(ctx context.Context, conn *websocket.Conn, frame bridgeFrame) {
	reply := bridgeFrame{Kind: frameReply, ID: frame.ID}

	msg, err := messages.Decode(frame.Message)
	if err == nil {
		b.mu.Lock()
		dispatch := b.dispatch
		b.mu.Unlock()
		if dispatch == nil {
			err = fmt.Errorf("no dispatcher configured")
		} else {
			reply.Result, err = dispatch(ctx, msg)
		}
	}
	if err != nil {
		b.logger.Warn().Err(err).Msg("Extension event failed")
		reply.Error = err.Error()
	}

	if frame.ID == "" {
		return
	}
	if err := b.write(conn, reply); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to reply to extension event")
	}
}

func (b *Bridge) write(conn *websocket.Conn, frame bridgeFrame) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteJSON(frame)
}

// send writes frame to the attached extension without waiting for a reply.
func (b *Bridge) send(frame bridgeFrame) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return NewBridgeError("no_extension", "extension is not connected")
	}
	if err := b.write(conn, frame); err != nil {
		return WrapError(err, ErrorTypeBridge, "bridge_write_failed", "failed to write to extension")
	}
	return nil
}

// request sends frame and waits for the matching reply.
func (b *Bridge) request(ctx context.Context, frame bridgeFrame) (json.RawMessage, error) {
	frame.Kind = frameRequest
	frame.ID = uuid.NewString()
	ch := make(chan bridgeFrame, 1)

	b.mu.Lock()
	conn := b.conn
	if conn != nil {
		b.pending[frame.ID] = ch
	}
	b.mu.Unlock()
	if conn == nil {
		return nil, NewBridgeError("no_extension", "extension is not connected")
	}

	if err := b.write(conn, frame); err != nil {
		b.forget(frame.ID)
		return nil, WrapError(err, ErrorTypeBridge, "bridge_write_failed", "failed to write to extension")
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return nil, NewBridgeError("extension_error", reply.Error).WithContext("op", frame.Op)
		}
		return reply.Result, nil
	case <-ctx.Done():
		b.forget(frame.ID)
		return nil, ctx.Err()
	}
}

func (b *Bridge) forget(id string) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *Bridge) Connect(ctx context.Context, tabID int) error {
	_, err := b.request(ctx, bridgeFrame{Op: opConnect, TabID: tabID})
	return err
}

func (b *Bridge) Send(ctx context.Context, tabID int, msg messages.Message) (json.RawMessage, error) {
	data, err := messages.Encode(msg)
	if err != nil {
		return nil, err
	}
	return b.request(ctx, bridgeFrame{Op: opSend, TabID: tabID, Message: data})
}

func (b *Bridge) Inject(ctx context.Context, tabID int) error {
	_, err := b.request(ctx, bridgeFrame{Op: opInject, TabID: tabID})
	return err
}

func (b *Bridge) Tab(ctx context.Context, tabID int) (*models.TabInfo, error) {
	result, err := b.request(ctx, bridgeFrame{Op: opTab, TabID: tabID})
	if err != nil {
		return nil, err
	}
	var tab models.TabInfo
	if err := json.Unmarshal(result, &tab); err != nil {
		return nil, WrapError(err, ErrorTypeBridge, "invalid_tab", "invalid tab description from extension")
	}
	tab.TabID = tabID
	return &tab, nil
}

func (b *Bridge) SetStatus(ctx context.Context, tabID int, status models.Status) error {
	_, err := b.request(ctx, bridgeFrame{Op: opStatus, TabID: tabID, Status: &status})
	return err
}

// Notify forwards a UI message to the extension. Delivery is not
// acknowledged.
func (b *Bridge) Notify(_ context.Context, msg messages.Message) error {
	data, err := messages.Encode(msg)
	if err != nil {
		return err
	}
	return b.send(bridgeFrame{Kind: frameRequest, Op: opNotify, Message: data})
}
