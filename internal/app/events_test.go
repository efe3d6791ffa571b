package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.handleWS))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	return conn
}

func TestHubBroadcastReachesClient(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)
	defer conn.Close()

	hub.Broadcast("tool_call", map[string]interface{}{"tool": "get_revit_project_info"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got event
	require.NoError(t, conn.ReadJSON(&got))
	require.Equal(t, "tool_call", got.Type)
	require.NotEmpty(t, got.At)
}

func TestHubDropsClosedClient(t *testing.T) {
	hub := NewHub(nil)
	conn := dialHub(t, hub)

	conn.Close()
	require.Eventually(t, func() bool {
		hub.Broadcast("ping", nil)
		return hub.ClientCount() == 0
	}, time.Second, 10*time.Millisecond)
}
