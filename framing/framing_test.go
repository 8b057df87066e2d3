package framing

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePair returns two framed connections joined by an in-memory pipe.
func pipePair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	c1, c2 := net.Pipe()
	a := New(c1, nil)
	b := New(c2, nil)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

// send runs Send on another goroutine; net.Pipe is unbuffered, so sender and
// receiver must overlap.
func send(t *testing.T, c *Conn, payload []byte) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Send(payload) }()
	return done
}

func TestRoundTripBinary(t *testing.T) {
	allBytes := make([]byte, 256)
	for i := range allBytes {
		allBytes[i] = byte(i)
	}
	large := bytes.Repeat([]byte{0x00, 0xFF, 0x7F, 0x80}, 16*1024)

	cases := map[string][]byte{
		"empty":     {},
		"single":    {0x00},
		"all bytes": allBytes,
		"large":     large,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			a, b := pipePair(t)
			errc := send(t, a, payload)

			got, err := b.Receive()
			require.NoError(t, err)
			require.NoError(t, <-errc)
			assert.Equal(t, payload, got)
		})
	}
}

func TestRoundTripText(t *testing.T) {
	for _, s := range []string{"", "OK", "GET_INSTRUMENTS", "MEAS:VOLT? ±5µV — überprüft", "日本語"} {
		a, b := pipePair(t)
		errc := make(chan error, 1)
		go func() { errc <- a.SendText(s) }()

		got, err := b.ReceiveText()
		require.NoError(t, err)
		require.NoError(t, <-errc)
		assert.Equal(t, s, got)
	}
}

func TestReceiveTextRejectsInvalidUTF8(t *testing.T) {
	a, b := pipePair(t)
	errc := send(t, a, []byte{0xFF, 0xFE, 0xFD})

	_, err := b.ReceiveText()
	require.ErrorIs(t, err, ErrInvalidText)
	require.NoError(t, <-errc)

	// Invalid text is fatal: the connection is gone.
	_, err = b.Receive()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTruncatedPayload(t *testing.T) {
	c1, c2 := net.Pipe()
	conn := New(c2, nil)
	t.Cleanup(func() { conn.Close() })

	go func() {
		// Header promises 10 bytes, only 3 arrive before the peer hangs up.
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], 10)
		c1.Write(hdr[:])
		c1.Write([]byte{1, 2, 3})
		c1.Close()
	}()

	_, err := conn.Receive()
	var trunc *TruncatedError
	require.ErrorAs(t, err, &trunc)
	assert.Equal(t, 10, trunc.Want)
	assert.Equal(t, 3, trunc.Got)

	_, err = conn.Receive()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTruncatedHeader(t *testing.T) {
	c1, c2 := net.Pipe()
	conn := New(c2, nil)
	t.Cleanup(func() { conn.Close() })

	go func() {
		c1.Write([]byte{0x00, 0x00})
		c1.Close()
	}()

	_, err := conn.Receive()
	var trunc *TruncatedError
	require.ErrorAs(t, err, &trunc)
	assert.Equal(t, 2, trunc.Got)
}

func TestOversizedHeader(t *testing.T) {
	c1, c2 := net.Pipe()
	conn := New(c2, nil)
	t.Cleanup(func() { conn.Close() })

	go func() {
		var hdr [4]byte
		binary.BigEndian.PutUint32(hdr[:], 0xFFFFFFFF)
		c1.Write(hdr[:])
	}()

	_, err := conn.Receive()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds limit")
}

func TestCloseIsIdempotent(t *testing.T) {
	a, _ := pipePair(t)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.ErrorIs(t, a.Send([]byte("x")), ErrClosed)
	_, err := a.Receive()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = a.ReceiveText()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseAbortsBlockedReceive(t *testing.T) {
	a, _ := pipePair(t)

	done := make(chan error, 1)
	go func() {
		_, err := a.Receive()
		done <- err
	}()

	time.Sleep(50 * time.Millisecond) // let the goroutine block in the read
	a.Close()
	err := <-done
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrClosed) // surfaced as a transport error on the blocked read
}
