package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/authcore/internal/throttle"
)

// wsServer upgrades inbound requests and hands the server-side sockets to the
// test over a channel.
func wsServer(t *testing.T) (string, chan *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 8)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- ws
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

// dial creates a connected server/client socket pair.
func dial(t *testing.T, url string, conns chan *websocket.Conn) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server := <-conns:
		return server, client
	case <-time.After(time.Second):
		t.Fatal("server never saw the connection")
		return nil, nil
	}
}

func TestHub_Accept_GateCeiling(t *testing.T) {
	url, conns := wsServer(t)
	hub := NewHub(nil, throttle.NewGate(1, nil), nil)
	defer func() { _ = hub.Close() }()

	first, _ := dial(t, url, conns)
	conn, err := hub.Accept(first)
	require.NoError(t, err)
	assert.Equal(t, 1, hub.Len())

	second, _ := dial(t, url, conns)
	_, err = hub.Accept(second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyConnections)
	assert.Equal(t, 1, hub.Len())

	// Closing the admitted connection frees the slot.
	require.NoError(t, conn.Close())
	assert.Equal(t, 0, hub.Len())

	third, _ := dial(t, url, conns)
	_, err = hub.Accept(third)
	require.NoError(t, err)
}

func TestConn_Send_Throttled(t *testing.T) {
	url, conns := wsServer(t)

	now := time.Now()
	th := throttle.New(nil, throttle.WithBurst(2), throttle.WithClock(func() time.Time { return now }))
	hub := NewHub(th, nil, nil)
	defer func() { _ = hub.Close() }()

	server, client := dial(t, url, conns)
	conn, err := hub.Accept(server)
	require.NoError(t, err)

	require.NoError(t, conn.Send(websocket.TextMessage, []byte("one")))
	require.NoError(t, conn.Send(websocket.TextMessage, []byte("two")))

	err = conn.Send(websocket.TextMessage, []byte("three"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThrottled)

	// Only the two admitted messages reached the peer.
	for _, want := range []string{"one", "two"} {
		_, data, err := client.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestConn_Close_ReleasesThrottleState(t *testing.T) {
	url, conns := wsServer(t)

	th := throttle.New(nil, throttle.WithBurst(1))
	gate := throttle.NewGate(5, nil)
	hub := NewHub(th, gate, nil)
	defer func() { _ = hub.Close() }()

	server, _ := dial(t, url, conns)
	conn, err := hub.Accept(server)
	require.NoError(t, err)

	require.NoError(t, conn.Send(websocket.TextMessage, []byte("one")))
	require.Equal(t, 1, th.Len())
	require.Equal(t, 1, gate.Live())

	require.NoError(t, conn.Close())
	assert.Equal(t, 0, th.Len())
	assert.Equal(t, 0, gate.Live())
}

func TestConn_Close_Idempotent(t *testing.T) {
	url, conns := wsServer(t)
	hub := NewHub(nil, throttle.NewGate(5, nil), nil)
	defer func() { _ = hub.Close() }()

	server, _ := dial(t, url, conns)
	conn, err := hub.Accept(server)
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.Equal(t, 0, hub.Len())
}

func TestConn_Send_AfterClose(t *testing.T) {
	url, conns := wsServer(t)
	hub := NewHub(nil, nil, nil)
	defer func() { _ = hub.Close() }()

	server, _ := dial(t, url, conns)
	conn, err := hub.Accept(server)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = conn.Send(websocket.TextMessage, []byte("late"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestHub_Close_TearsDownEverything(t *testing.T) {
	url, conns := wsServer(t)
	gate := throttle.NewGate(5, nil)
	hub := NewHub(nil, gate, nil)

	for i := 0; i < 3; i++ {
		server, _ := dial(t, url, conns)
		_, err := hub.Accept(server)
		require.NoError(t, err)
	}
	require.Equal(t, 3, hub.Len())

	require.NoError(t, hub.Close())
	assert.Equal(t, 0, hub.Len())
	assert.Equal(t, 0, gate.Live())
}
