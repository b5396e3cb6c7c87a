package monitor

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestBroadcasterDelivers(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return b.Clients() == 1 }, time.Second, time.Millisecond)
	require.True(t, b.Send([]byte(`{"Distance":120}`)))

	var msg string
	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, websocket.Message.Receive(conn, &msg))
	assert.Equal(t, `{"Distance":120}`, msg)

	b.Close()
	assert.Zero(t, b.Clients())
}

func TestBroadcasterQueueFull(t *testing.T) {
	b := &Broadcaster{messages: make(chan []byte, 1)}
	assert.True(t, b.Send([]byte("a")))
	assert.False(t, b.Send([]byte("b")))
}
