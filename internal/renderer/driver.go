package renderer

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/notandrewjones/signage-app/internal/model"
	"github.com/notandrewjones/signage-app/internal/syncengine"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Driver is the single browser connection's command channel, grounded
// on the teacher's internal/sse.Hub pattern but narrowed to exactly one
// client: a kiosk display has one embedded browser tab, not many
// subscribers.
type Driver struct {
	mu         sync.Mutex
	conn       *websocket.Conn
	currentSec float64
	isVideo    bool
	onResync   func()
}

// NewDriver creates an empty driver; ServeHTTP attaches the browser's
// websocket once it connects.
func NewDriver() *Driver {
	return &Driver{}
}

// SetResyncHandler installs the callback invoked when the kiosk page
// reports its manual-resync key was pressed (§2, §4.3 "manual resync
// key" as an explicit cancellation trigger for the sync loop; in
// playerapp the callback forces a poll whose result fully reloads the
// sync engine).
func (d *Driver) SetResyncHandler(fn func()) {
	d.mu.Lock()
	d.onResync = fn
	d.mu.Unlock()
}

// ServeHTTP upgrades the renderer page's websocket connection and reads
// its current_time reports until it disconnects.
func (d *Driver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	d.mu.Lock()
	if d.conn != nil {
		d.conn.Close()
	}
	d.conn = conn
	d.mu.Unlock()
	slog.Info("renderer page connected")

	for {
		var msg struct {
			Type    string  `json:"type"`
			IsVideo bool    `json:"is_video"`
			Seconds float64 `json:"seconds"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "current_time":
			d.mu.Lock()
			d.isVideo = msg.IsVideo
			d.currentSec = msg.Seconds
			d.mu.Unlock()
		case "resync":
			d.mu.Lock()
			onResync := d.onResync
			d.mu.Unlock()
			if onResync != nil {
				onResync()
			}
		}
	}

	d.mu.Lock()
	if d.conn == conn {
		d.conn = nil
	}
	d.mu.Unlock()
	slog.Info("renderer page disconnected")
}

func (d *Driver) send(v any) error {
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn == nil {
		return nil // no page attached yet; nothing to drive
	}
	return conn.WriteJSON(v)
}

// ApplyTransform pushes a CSS-transform-only update: a rotate/flip change
// with no content reload, for the orientation/flip-only branch of the
// poller's diff (§4.7).
func (d *Driver) ApplyTransform(orientation model.Orientation, flipH, flipV bool) error {
	return d.send(map[string]any{
		"type":        "transform",
		"orientation": orientation,
		"flip_h":      flipH,
		"flip_v":      flipV,
	})
}

// Renderer adapts the driver to syncengine's four-operation interface.
func (d *Driver) Renderer() syncengine.Renderer {
	return syncengine.Renderer{
		Preload: func(ctx context.Context, item model.PlaylistItem) error {
			return d.send(map[string]any{"type": "preload", "item": item})
		},
		Transition: func(ctx context.Context, kind model.TransitionKind, duration float64) error {
			return d.send(map[string]any{"type": "transition", "kind": kind, "duration": duration})
		},
		SeekVideo: func(seconds float64) {
			_ = d.send(map[string]any{"type": "seek", "seconds": seconds})
		},
		VideoCurrentTime: func() (float64, bool) {
			d.mu.Lock()
			defer d.mu.Unlock()
			return d.currentSec, d.isVideo
		},
	}
}

// Connected reports whether a browser page is currently attached.
func (d *Driver) Connected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conn != nil
}
