package renderer

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/notandrewjones/signage-app/internal/model"
)

func TestDriver_PreloadSendsCommandToConnectedPage(t *testing.T) {
	d := NewDriver()
	srv := httptest.NewServer(d)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, d.Connected, time.Second, 10*time.Millisecond)

	renderer := d.Renderer()
	require.NoError(t, renderer.Preload(context.Background(), model.PlaylistItem{ID: 1, Filename: "a.png"}))

	var msg map[string]any
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, "preload", msg["type"])
}

func TestDriver_VideoCurrentTimeReflectsLatestReport(t *testing.T) {
	d := NewDriver()
	srv := httptest.NewServer(d)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "current_time", "is_video": true, "seconds": 4.5}))

	require.Eventually(t, func() bool {
		sec, isVideo := d.Renderer().VideoCurrentTime()
		return isVideo && sec == 4.5
	}, time.Second, 10*time.Millisecond)
}

func TestDriver_ResyncMessageInvokesHandler(t *testing.T) {
	d := NewDriver()
	called := make(chan struct{}, 1)
	d.SetResyncHandler(func() { called <- struct{}{} })

	srv := httptest.NewServer(d)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "resync"}))

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for resync handler to fire")
	}
}

func TestDriver_SendWithoutConnectionIsNoop(t *testing.T) {
	d := NewDriver()
	renderer := d.Renderer()
	require.NoError(t, renderer.Preload(context.Background(), model.PlaylistItem{ID: 1}))
}
