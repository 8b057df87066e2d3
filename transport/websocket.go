package transport

import (
	"fmt"
	"io"

	"github.com/gorilla/websocket"
)

// WebSocket adapts a WebSocket connection to the byte-stream Transport
// contract, for servers reachable only through an HTTP-speaking proxy. The
// framed protocol bytes travel inside binary messages; message boundaries on
// the WebSocket side carry no meaning, the length-prefix framing on top is
// still what delimits protocol messages.
type WebSocket struct {
	conn   *websocket.Conn
	reader io.Reader // current binary message being drained
}

// DialWebSocket connects to an Open LISA server behind a WebSocket endpoint
// (ws:// or wss:// URL).
func DialWebSocket(url string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return &WebSocket{conn: conn}, nil
}

// NewWebSocket wraps an already-upgraded connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

func (w *WebSocket) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, fmt.Errorf("transport: websocket read: %w", err)
			}
			w.reader = r
		}
		n, err := w.reader.Read(p)
		if err == io.EOF {
			// Message drained; continue with the next one.
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *WebSocket) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, fmt.Errorf("transport: websocket write: %w", err)
	}
	return len(p), nil
}

func (w *WebSocket) Close() error { return w.conn.Close() }
