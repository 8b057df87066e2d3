// Package framing implements the Open LISA message envelope: every logical
// message travels as a 4-byte big-endian unsigned length followed by exactly
// that many payload bytes. The explicit length prefix means payloads may
// contain any byte value, including zero-length payloads — there is no
// sentinel that could collide with payload content.
package framing

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/openlisa/openlisa-go/transport"
)

const headerSize = 4

// MaxMessageSize bounds a single message. A corrupt or desynchronized length
// header would otherwise make the receiver allocate and wait for gigabytes.
const MaxMessageSize = 1 << 30

// ErrClosed is returned by Send and Receive after the connection has been
// closed, whether by Close or by a fatal I/O error.
var ErrClosed = errors.New("framing: connection closed")

// ErrInvalidText is returned by ReceiveText when the payload is not valid
// UTF-8 where text was expected. The stream's framing alignment can no
// longer be trusted, so the connection is torn down.
var ErrInvalidText = errors.New("framing: message is not valid UTF-8")

// TruncatedError reports a stream that closed mid-message: the header
// promised more bytes than arrived. Fatal — the connection is torn down, a
// stream cannot be resumed from the middle of a message.
type TruncatedError struct {
	Want int
	Got  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("framing: truncated message: got %d of %d bytes", e.Got, e.Want)
}

// Conn frames logical messages over a Transport. It owns the transport: any
// fatal error (transport I/O failure, truncation, oversized header, invalid
// text) closes it, and every later call fails with ErrClosed.
//
// Conn does not retry anything; retry policy belongs to the caller. Send and
// Receive are not safe for concurrent use with themselves — the protocol
// layer above serializes operations — but Close may be called from another
// goroutine to abort a blocked read.
type Conn struct {
	mu     sync.Mutex // guards closed; never held across transport I/O
	t      transport.Transport
	log    logrus.FieldLogger
	closed bool
}

// New wraps a transport. A nil logger defaults to warn level.
func New(t transport.Transport, log logrus.FieldLogger) *Conn {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Conn{t: t, log: log.WithField("component", "framing")}
}

// Send transmits one logical message. The peer's matching Receive
// reconstructs the payload exactly.
func (c *Conn) Send(payload []byte) error {
	if err := c.check(); err != nil {
		return err
	}
	if len(payload) > MaxMessageSize {
		return fmt.Errorf("framing: message length %d exceeds limit %d", len(payload), MaxMessageSize)
	}

	// Header and payload go out in one write so a transport with message
	// semantics (WebSocket) carries them together.
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[headerSize:], payload)

	if _, err := c.t.Write(buf); err != nil {
		return c.fatal(fmt.Errorf("framing: write message: %w", err))
	}
	return nil
}

// SendText transmits a UTF-8 text message.
func (c *Conn) SendText(s string) error { return c.Send([]byte(s)) }

// Receive blocks until one complete logical message has arrived and returns
// its payload.
func (c *Conn) Receive() ([]byte, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	var hdr [headerSize]byte
	if n, err := io.ReadFull(c.t, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, c.fatal(&TruncatedError{Want: headerSize, Got: n})
		}
		return nil, c.fatal(fmt.Errorf("framing: read header: %w", err))
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if size > MaxMessageSize {
		return nil, c.fatal(fmt.Errorf("framing: message length %d exceeds limit %d", size, MaxMessageSize))
	}

	payload := make([]byte, size)
	if n, err := io.ReadFull(c.t, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, c.fatal(&TruncatedError{Want: int(size), Got: n})
		}
		return nil, c.fatal(fmt.Errorf("framing: read payload: %w", err))
	}
	return payload, nil
}

// ReceiveText receives one message and decodes it as UTF-8. Invalid UTF-8 is
// never silently substituted; it fails with ErrInvalidText and tears the
// connection down.
func (c *Conn) ReceiveText() (string, error) {
	b, err := c.Receive()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", c.fatal(ErrInvalidText)
	}
	return string(b), nil
}

// Close closes the underlying transport, aborting any blocked read.
// Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.t.Close()
}

func (c *Conn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return nil
}

// fatal tears the connection down and passes the error through.
func (c *Conn) fatal(err error) error {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()
	if !alreadyClosed {
		c.t.Close()
		c.log.WithError(err).Debug("connection torn down")
	}
	return err
}
