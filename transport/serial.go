package transport

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the rate the Open LISA server configures its
	// RS232 side with.
	DefaultBaudRate = 921600

	// Greeting tokens exchanged once per serial connection. RS232 has no
	// addressing, so this is the only way to tell which of several serial
	// devices (if any) hosts the server.
	handshakeRequest  = "OPEN"
	handshakeResponse = "LISA"

	defaultHandshakeTimeout = 3 * time.Second
)

// ErrServerNotFound is returned by Discover when no candidate port answered
// the handshake. Per-candidate failures (busy device, wrong peer, silence)
// are logged and skipped, never surfaced.
var ErrServerNotFound = errors.New("transport: no Open LISA server detected on RS232")

// SerialConfig holds discovery and connection settings for the serial
// transport.
type SerialConfig struct {
	// BaudRate defaults to DefaultBaudRate.
	BaudRate int `yaml:"baud_rate" json:"baudRate"`
	// Port pins discovery to a single device (e.g. /dev/ttyUSB0). When
	// empty, every serial device the OS reports is probed in enumeration
	// order.
	Port string `yaml:"port" json:"port"`
	// HandshakeTimeout bounds the greeting read on each candidate, so a
	// dead or silent device costs at most this long. Also used as the read
	// timeout once connected. Defaults to 3s.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" json:"handshakeTimeout"`
	// Logger receives discovery traces at debug level. Defaults to a
	// warn-level logger.
	Logger logrus.FieldLogger `yaml:"-" json:"-"`
}

func (c SerialConfig) withDefaults() SerialConfig {
	if c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		c.Logger = l
	}
	return c
}

// Serial is an RS232 transport bound to the port that answered the
// handshake.
type Serial struct {
	port serial.Port
	name string
}

// Test seams: package tests substitute fake ports and candidate lists.
var (
	openPort  = serial.Open
	listPorts = serial.GetPortsList
)

// Discover enumerates candidate serial devices and returns a transport bound
// to the first one that answers the greeting exchange.
//
// Each candidate is opened 8N1 at the configured baud rate with a bounded
// read timeout, sent the client greeting, and read for exactly the expected
// server greeting. A candidate that fails to open, answers wrongly, or stays
// silent is closed and skipped. Probing stops at the first match; if no
// candidate matches, Discover fails with ErrServerNotFound.
func Discover(cfg SerialConfig) (*Serial, error) {
	cfg = cfg.withDefaults()
	log := cfg.Logger.WithField("component", "discover")

	candidates := []string{cfg.Port}
	if cfg.Port == "" {
		var err error
		candidates, err = listPorts()
		if err != nil {
			return nil, fmt.Errorf("transport: enumerate serial ports: %w", err)
		}
	}

	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	for _, name := range candidates {
		log.Debugf("probing %s at %d baud", name, cfg.BaudRate)
		port, err := openPort(name, mode)
		if err != nil {
			// Busy, permission, vanished — not fatal, try the next one.
			log.WithError(err).Debugf("could not open %s", name)
			continue
		}
		if handshake(port, name, cfg, log) {
			log.Debugf("detected Open LISA server at %s with baudrate %d", name, cfg.BaudRate)
			return &Serial{port: port, name: name}, nil
		}
		port.Close()
	}

	return nil, ErrServerNotFound
}

// handshake writes the client greeting and reads back exactly the expected
// server greeting within the timeout. go.bug.st/serial exposes no rx/tx
// buffer sizing, so resetting both buffers before the exchange is the
// closest guard against stale bytes corrupting the greeting on high-baud
// links.
func handshake(port serial.Port, name string, cfg SerialConfig, log logrus.FieldLogger) bool {
	if err := port.SetReadTimeout(cfg.HandshakeTimeout); err != nil {
		log.WithError(err).Debugf("could not set timeout on %s", name)
		return false
	}
	port.ResetInputBuffer()
	port.ResetOutputBuffer()

	if _, err := port.Write([]byte(handshakeRequest)); err != nil {
		log.WithError(err).Debugf("greeting write to %s failed", name)
		return false
	}

	buf := make([]byte, len(handshakeResponse))
	got := 0
	deadline := time.Now().Add(cfg.HandshakeTimeout)
	for got < len(buf) && time.Now().Before(deadline) {
		n, err := port.Read(buf[got:])
		if err != nil {
			log.WithError(err).Debugf("greeting read from %s failed", name)
			return false
		}
		if n == 0 {
			break // timeout — silent device
		}
		got += n
	}

	if got < len(buf) || string(buf) != handshakeResponse {
		log.Debugf("no answer detected from %s (got %q)", name, buf[:got])
		return false
	}
	return true
}

// Read maps the serial library's timeout convention (0 bytes, nil error)
// onto an explicit deadline error so callers doing full reads terminate.
func (s *Serial) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, fmt.Errorf("transport: read %s: %w", s.name, err)
	}
	if n == 0 && len(p) > 0 {
		return 0, fmt.Errorf("transport: read %s: %w", s.name, os.ErrDeadlineExceeded)
	}
	return n, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	n, err := s.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("transport: write %s: %w", s.name, err)
	}
	return n, nil
}

func (s *Serial) Close() error { return s.port.Close() }

// PortName reports which device answered the handshake.
func (s *Serial) PortName() string { return s.name }

// SetReadTimeout adjusts the per-read deadline, e.g. before a slow
// instrument operation.
func (s *Serial) SetReadTimeout(d time.Duration) error { return s.port.SetReadTimeout(d) }
