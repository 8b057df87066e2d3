package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsEchoServer upgrades and echoes every binary message back.
func wsEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketRoundTrip(t *testing.T) {
	srv := wsEchoServer(t)

	tr, err := DialWebSocket(wsURL(srv))
	require.NoError(t, err)
	defer tr.Close()

	payload := []byte{0x00, 0x00, 0x00, 0x02, 'O', 'K'}
	_, err = tr.Write(payload)
	require.NoError(t, err)

	buf := make([]byte, len(payload))
	_, err = io.ReadFull(tr, buf)
	require.NoError(t, err)
	assert.Equal(t, payload, buf)
}

// Reads may span WebSocket message boundaries: the byte-stream contract
// hides them from the framing layer.
func TestWebSocketReadSpansMessages(t *testing.T) {
	srv := wsEchoServer(t)

	tr, err := DialWebSocket(wsURL(srv))
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Write([]byte("ab"))
	require.NoError(t, err)
	_, err = tr.Write([]byte("cd"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(tr, buf)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(buf))
}

func TestDialWebSocketFailure(t *testing.T) {
	_, err := DialWebSocket("ws://127.0.0.1:1/nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport: dial")
}
