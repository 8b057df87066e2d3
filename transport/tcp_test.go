package transport

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialTCPRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		conn.Write(buf)
	}()

	addr := ln.Addr().(*net.TCPAddr)
	tr, err := DialTCP("127.0.0.1", addr.Port)
	require.NoError(t, err)
	defer tr.Close()

	_, err = tr.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := tr.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
	assert.NotEmpty(t, tr.RemoteAddr())
}

func TestDialTCPRefused(t *testing.T) {
	// Port 1 is essentially never listening on loopback.
	_, err := DialTCP("127.0.0.1", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transport: dial")
}
