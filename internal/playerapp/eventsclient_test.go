package playerapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func TestEventsClient_SendsHeartbeatAndReceivesPush(t *testing.T) {
	heartbeats := make(chan map[string]any, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var msg map[string]any
		require.NoError(t, conn.ReadJSON(&msg))
		heartbeats <- msg

		require.NoError(t, conn.WriteJSON(map[string]any{"type": "content_updated"}))
		time.Sleep(50 * time.Millisecond)
	}))
	defer srv.Close()

	pushes := make(chan string, 4)
	client := NewEventsClient(srv.URL, "123456", func(msgType string) { pushes <- msgType })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	select {
	case msg := <-heartbeats:
		require.Equal(t, "heartbeat", msg["type"])
		var payload map[string]any
		raw, _ := json.Marshal(msg["payload"])
		require.NoError(t, json.Unmarshal(raw, &payload))
		require.Equal(t, "123456", payload["access_code"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for heartbeat")
	}

	select {
	case msgType := <-pushes:
		require.Equal(t, "content_updated", msgType)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push notification")
	}
}

func TestEventsClient_WSURLDerivesFromHTTPServerURL(t *testing.T) {
	require.True(t, strings.HasPrefix(strings.Replace("http://x", "http", "ws", 1), "ws://"))
	require.True(t, strings.HasPrefix(strings.Replace("https://x", "http", "ws", 1), "wss://"))
}
