package playerapp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/notandrewjones/signage-app/internal/events"
)

const (
	heartbeatInterval = 30 * time.Second
	reconnectBackoff  = 5 * time.Second
)

// EventsClient is the player's side of the event bus (§4.9): it dials
// out to the server and stays connected, redialling when the connection
// drops, sending heartbeats and
// receiving push notifications that hint the poller should not wait out
// its own 10s tick. Grounded on internal/events.Hub's wire shape
// (type+payload envelopes) but the outbound half of that connection.
type EventsClient struct {
	serverURL  string
	accessCode string
	onPush     func(msgType string)
}

// NewEventsClient builds a client for one device. onPush is invoked (off
// the connection's own goroutine) whenever the server sends a
// notification; it is advisory only, the poller's own tick remains the
// source of truth (§4.7, §4.9).
func NewEventsClient(serverURL, accessCode string, onPush func(msgType string)) *EventsClient {
	return &EventsClient{serverURL: serverURL, accessCode: accessCode, onPush: onPush}
}

// Run dials and redials until ctx is cancelled. A failed dial waits a
// fixed backoff before the next attempt; after an established connection
// drops, the next dial starts immediately.
func (c *EventsClient) Run(ctx context.Context) error {
	wsURL := strings.Replace(c.serverURL, "http", "ws", 1) + "/player/" + c.accessCode + "/events"
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
		if err != nil {
			slog.Debug("events client: dial failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectBackoff):
			}
			continue
		}
		c.serve(ctx, conn)
	}
}

func (c *EventsClient) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	go func() {
		c.sendHeartbeat(conn)
		for {
			select {
			case <-ticker.C:
				c.sendHeartbeat(conn)
			case <-done:
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			close(done)
			return
		}
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if c.onPush != nil {
			c.onPush(env.Type)
		}
	}
}

func (c *EventsClient) sendHeartbeat(conn *websocket.Conn) {
	payload, err := json.Marshal(events.Heartbeat{AccessCode: c.accessCode})
	if err != nil {
		return
	}
	msg, err := json.Marshal(struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}{Type: events.TypeHeartbeat, Payload: payload})
	if err != nil {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		slog.Debug("events client: heartbeat send failed", "error", err)
	}
}
