// Package events implements the server's event bus (§4.9): a
// bidirectional stream per connected device, keyed on access_code.
// Grounded on the teacher's internal/sse.Hub (register/unregister/
// broadcast channels, a writer goroutine per connection that never
// blocks another connection) but upgraded from one-directional SSE to
// gorilla/websocket, since §4.9 requires player→server heartbeat
// messages that SSE cannot carry.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Heartbeat is the player->server message (§4.9).
type Heartbeat struct {
	AccessCode   string `json:"access_code"`
	IP           string `json:"ip,omitempty"`
	ScreenWidth  *int   `json:"screen_width,omitempty"`
	ScreenHeight *int   `json:"screen_height,omitempty"`
}

// envelope is the wire shape for every message on the bus, in either
// direction: a type tag plus a raw payload.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeHeartbeat             = "heartbeat"
	TypeContentUpdated        = "content_updated"
	TypeScheduleUpdated       = "schedule_updated"
	TypeConfigUpdated         = "config_updated"
	TypeDefaultDisplayUpdated = "default_display_updated"
)

// Client is one connected device's bidirectional channel. ConnID
// distinguishes successive connections from the same device in logs
// (a device may reconnect many times under one access_code).
type Client struct {
	AccessCode string
	ConnID     string
	conn       *websocket.Conn
	send       chan []byte // outbound queue; never blocks the hub
}

// Hub manages every connected device's websocket and fans out
// server-initiated push notifications (§4.9). The channel is
// best-effort: a full per-connection buffer drops the message rather
// than blocking the hub or any other connection (§5).
type Hub struct {
	mu          sync.RWMutex
	clients     map[string]*Client // keyed by access_code
	onHeartbeat func(Heartbeat)
}

// NewHub creates an event bus. onHeartbeat is invoked (off the hub's own
// goroutines) whenever a player sends a heartbeat message.
func NewHub(onHeartbeat func(Heartbeat)) *Hub {
	return &Hub{
		clients:     make(map[string]*Client),
		onHeartbeat: onHeartbeat,
	}
}

// Accept registers a new websocket connection for a device and starts
// its read/write pumps. Blocks until the connection closes.
func (h *Hub) Accept(accessCode string, conn *websocket.Conn) {
	c := &Client{AccessCode: accessCode, ConnID: uuid.NewString(), conn: conn, send: make(chan []byte, 32)}

	h.mu.Lock()
	if old, ok := h.clients[accessCode]; ok {
		close(old.send)
		old.conn.Close()
	}
	h.clients[accessCode] = c
	h.mu.Unlock()
	slog.Info("device connected", "access_code", accessCode, "conn_id", c.ConnID, "total", h.Count())

	done := make(chan struct{})
	go h.writePump(c, done)
	h.readPump(c)
	close(done)

	h.mu.Lock()
	if h.clients[accessCode] == c {
		delete(h.clients, accessCode)
		close(c.send)
	}
	h.mu.Unlock()
	slog.Info("device disconnected", "access_code", accessCode, "total", h.Count())
}

func (h *Hub) readPump(c *Client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			slog.Warn("malformed event bus message", "access_code", c.AccessCode, "error", err)
			continue
		}
		if env.Type != TypeHeartbeat || h.onHeartbeat == nil {
			continue
		}
		var hb Heartbeat
		if err := json.Unmarshal(env.Payload, &hb); err != nil {
			slog.Warn("malformed heartbeat payload", "access_code", c.AccessCode, "error", err)
			continue
		}
		hb.AccessCode = c.AccessCode
		h.onHeartbeat(hb)
	}
}

func (h *Hub) writePump(c *Client, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// SendTo pushes an event to one connected device, if any (§4.9
// server-initiated notifications).
func (h *Hub) SendTo(accessCode, msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		slog.Error("event bus encode failed", "error", err)
		return
	}
	h.mu.RLock()
	c, ok := h.clients[accessCode]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		slog.Warn("event bus client buffer full, dropping message", "access_code", accessCode)
	}
}

// Broadcast pushes an event to every connected device (e.g.
// default_display_updated, which affects all devices regardless of
// schedule group).
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := encode(msgType, payload)
	if err != nil {
		slog.Error("event bus encode failed", "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for code, c := range h.clients {
		select {
		case c.send <- data:
		default:
			slog.Warn("event bus client buffer full, dropping message", "access_code", code)
		}
	}
}

// Count returns the number of connected devices.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Connected reports whether a device is currently connected.
func (h *Hub) Connected(accessCode string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[accessCode]
	return ok
}

func encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: msgType, Payload: raw})
}
