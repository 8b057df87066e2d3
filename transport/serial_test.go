package transport

import (
	"bytes"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// fakePort simulates a serial device for discovery tests. It answers with
// its configured reply once the full client greeting has been written.
// The embedded interface covers the methods discovery never touches.
type fakePort struct {
	serial.Port

	mu      sync.Mutex
	reply   []byte // queued once the greeting arrives; nil = silent device
	pending []byte
	wrote   bytes.Buffer
	closed  bool
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.wrote.Write(p)
	if f.reply != nil && bytes.Contains(f.wrote.Bytes(), []byte(handshakeRequest)) {
		f.pending = append(f.pending, f.reply...)
		f.reply = nil
	}
	return len(p), nil
}

// Read mimics go.bug.st/serial timeout semantics: no data within the
// timeout yields (0, nil).
func (f *fakePort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) == 0 {
		return 0, nil
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakePort) SetReadTimeout(time.Duration) error { return nil }
func (f *fakePort) ResetInputBuffer() error            { return nil }
func (f *fakePort) ResetOutputBuffer() error           { return nil }

// stubPorts swaps the package test seams and records which candidates got
// opened, in order.
func stubPorts(t *testing.T, order []string, ports map[string]*fakePort, openErr map[string]error) *[]string {
	t.Helper()
	opened := &[]string{}

	origOpen, origList := openPort, listPorts
	t.Cleanup(func() { openPort, listPorts = origOpen, origList })

	openPort = func(name string, mode *serial.Mode) (serial.Port, error) {
		*opened = append(*opened, name)
		if err, ok := openErr[name]; ok {
			return nil, err
		}
		p, ok := ports[name]
		if !ok {
			t.Fatalf("unexpected open of %s", name)
		}
		return p, nil
	}
	listPorts = func() ([]string, error) { return order, nil }
	return opened
}

func TestDiscoverFindsServer(t *testing.T) {
	ports := map[string]*fakePort{
		"/dev/ttyUSB0": {reply: []byte("NOPE")},
		"/dev/ttyUSB1": {reply: []byte(handshakeResponse)},
		"/dev/ttyUSB2": {reply: []byte(handshakeResponse)},
	}
	opened := stubPorts(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1", "/dev/ttyUSB2"}, ports, nil)

	s, err := Discover(SerialConfig{HandshakeTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", s.PortName())

	// Candidates are probed in enumeration order and probing stops at the
	// first match.
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyUSB1"}, *opened)

	assert.True(t, ports["/dev/ttyUSB0"].closed, "mismatched candidate must be closed")
	assert.False(t, ports["/dev/ttyUSB1"].closed, "matched candidate stays open")

	// The greeting went out before any read.
	assert.Equal(t, handshakeRequest, ports["/dev/ttyUSB1"].wrote.String())
}

func TestDiscoverExplicitPort(t *testing.T) {
	ports := map[string]*fakePort{
		"/dev/ttyS3": {reply: []byte(handshakeResponse)},
	}
	opened := stubPorts(t, nil, ports, nil)
	listPorts = func() ([]string, error) {
		t.Fatal("enumeration must not run when a port is pinned")
		return nil, nil
	}

	s, err := Discover(SerialConfig{Port: "/dev/ttyS3", HandshakeTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyS3", s.PortName())
	assert.Equal(t, []string{"/dev/ttyS3"}, *opened)
}

func TestDiscoverNoServer(t *testing.T) {
	ports := map[string]*fakePort{
		"a": {reply: []byte("GARBAGE!")},
		"b": {}, // silent
		"c": {reply: []byte("LI")}, // partial greeting, then silence
	}
	stubPorts(t, []string{"a", "b", "c"}, ports, nil)

	_, err := Discover(SerialConfig{HandshakeTimeout: 50 * time.Millisecond})
	require.ErrorIs(t, err, ErrServerNotFound)

	for name, p := range ports {
		assert.True(t, p.closed, "candidate %s must be closed after probing", name)
	}
}

func TestDiscoverSkipsUnopenableCandidates(t *testing.T) {
	ports := map[string]*fakePort{
		"good": {reply: []byte(handshakeResponse)},
	}
	openErr := map[string]error{
		"busy": errors.New("resource busy"),
	}
	opened := stubPorts(t, []string{"busy", "good"}, ports, openErr)

	s, err := Discover(SerialConfig{HandshakeTimeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "good", s.PortName())
	assert.Equal(t, []string{"busy", "good"}, *opened)
}

func TestSerialReadMapsTimeoutToError(t *testing.T) {
	s := &Serial{port: &fakePort{}, name: "sim"}

	buf := make([]byte, 8)
	_, err := s.Read(buf)
	require.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestSerialReadPassesDataThrough(t *testing.T) {
	s := &Serial{port: &fakePort{pending: []byte("LISA")}, name: "sim"}

	buf := make([]byte, 8)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "LISA", string(buf[:n]))
}
