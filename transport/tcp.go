package transport

import (
	"fmt"
	"net"
	"strconv"
)

// TCP is a stream-socket transport. Unlike serial, there is no discovery
// step: the server address is known and the connection is ready as soon as
// the dial succeeds.
type TCP struct {
	conn net.Conn
}

// DialTCP connects to an Open LISA server listening at host:port.
func DialTCP(host string, port int) (*TCP, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &TCP{conn: conn}, nil
}

// NewTCP wraps an already-established connection. Used by tests that run an
// in-process peer.
func NewTCP(conn net.Conn) *TCP {
	return &TCP{conn: conn}
}

func (t *TCP) Read(p []byte) (int, error)  { return t.conn.Read(p) }
func (t *TCP) Write(p []byte) (int, error) { return t.conn.Write(p) }
func (t *TCP) Close() error                { return t.conn.Close() }

// RemoteAddr reports the peer address, for log output.
func (t *TCP) RemoteAddr() string { return t.conn.RemoteAddr().String() }
