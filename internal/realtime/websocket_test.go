package realtime

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTestHub(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var evt map[string]any
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestWebsocketHandlerLifecycle(t *testing.T) {
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewWebsocketHandler(hub, time.Second, discardLogger()))
	defer srv.Close()

	c1 := dialTestHub(t, srv)
	c2 := dialTestHub(t, srv)

	for _, c := range []*websocket.Conn{c1, c2} {
		evt := readEvent(t, c)
		assert.Equal(t, "connected", evt["type"])
		assert.Equal(t, "Realtime channel ready", evt["message"])
	}
	require.Eventually(t, func() bool { return hub.Registry().Len() == 2 }, 2*time.Second, 10*time.Millisecond)

	// Inbound messages are ignored.
	require.NoError(t, c1.WriteMessage(websocket.TextMessage, []byte(`{"ping":true}`)))

	report := hub.Broadcast(context.Background(), NewEmailsUpdated("archive", 4))
	assert.Equal(t, 2, report.Delivered)
	for _, c := range []*websocket.Conn{c1, c2} {
		evt := readEvent(t, c)
		assert.Equal(t, "emails_updated", evt["type"])
		assert.Equal(t, "archive", evt["action"])
		assert.Equal(t, float64(4), evt["count"])
	}

	require.NoError(t, c1.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = c1.Close()
	require.Eventually(t, func() bool { return hub.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	report = hub.Broadcast(context.Background(), NewEmailsUpdated("mark_read", 1))
	assert.Equal(t, Report{Delivered: 1}, report)
	assert.Equal(t, "emails_updated", readEvent(t, c2)["type"])
}

func TestWSChannelDeliverAfterClose(t *testing.T) {
	hub := NewHub(discardLogger())
	srv := httptest.NewServer(NewWebsocketHandler(hub, 0, discardLogger()))
	defer srv.Close()

	conn := dialTestHub(t, srv)
	readEvent(t, conn)
	require.Eventually(t, func() bool { return hub.Registry().Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	ch := hub.Registry().Snapshot()[0]
	require.NoError(t, ch.Close())
	result := ch.Deliver(context.Background(), []byte(`{}`))
	assert.False(t, result.OK())

	report := hub.Broadcast(context.Background(), NewEmailsUpdated("archive", 0))
	assert.Equal(t, 0, report.Delivered)
	assert.Equal(t, 0, hub.Registry().Len())
}
