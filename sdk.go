// Package openlisa is the Go client SDK for the Open LISA instrument
// server. It drives laboratory instruments hosted behind a remote server
// over TCP, RS232 (with automatic server discovery), or WebSocket.
//
// The SDK type is the façade most callers want; the transport, framing and
// protocol packages underneath are exported for callers that need the raw
// layers or the typed errors they return.
package openlisa

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/openlisa/openlisa-go/framing"
	"github.com/openlisa/openlisa-go/protocol"
	"github.com/openlisa/openlisa-go/transport"
)

// Format selects what shape the instrument operations return.
type Format string

const (
	// FormatJSON returns the server's JSON text unparsed.
	FormatJSON Format = "JSON"
	// FormatNative decodes the JSON into Go values (maps, slices, strings,
	// float64s).
	FormatNative Format = "NATIVE"
)

// resultTypeBytes marks SEND_COMMAND results whose value travels
// base64-encoded inside the JSON payload.
const resultTypeBytes = "BYTES"

// ErrNotConnected is returned by every operation before a successful
// Connect* call or after Disconnect.
var ErrNotConnected = errors.New("openlisa: not connected")

// Config holds SDK construction options.
type Config struct {
	// ResponseFormat is the default for operations that return instrument
	// data. Defaults to FormatNative.
	ResponseFormat Format
	// Logger receives structured SDK logs; it is passed down to every
	// layer, nothing logs through a process-wide global. Defaults to a
	// warn-level logger.
	Logger logrus.FieldLogger
}

// SDK is the client façade. It is not safe for concurrent use: the
// underlying channel is strictly one request in flight, so callers needing
// parallelism must open independent SDK instances.
type SDK struct {
	format Format
	log    logrus.FieldLogger
	client *protocol.Client
}

// New creates an SDK. Connect with ConnectTCP, ConnectSerial or
// ConnectWebSocket before issuing operations.
func New(cfg Config) *SDK {
	if cfg.ResponseFormat == "" {
		cfg.ResponseFormat = FormatNative
	}
	if cfg.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		cfg.Logger = l
	}
	return &SDK{format: cfg.ResponseFormat, log: cfg.Logger}
}

// ConnectTCP connects to a server listening on a plain TCP socket.
func (s *SDK) ConnectTCP(host string, port int) error {
	t, err := transport.DialTCP(host, port)
	if err != nil {
		return fmt.Errorf("openlisa: could not connect with server at %s:%d through TCP: %w", host, port, err)
	}
	s.attach(t)
	return nil
}

// SerialOptions configures ConnectSerial. The zero value probes every serial
// device the OS reports at the default baud rate.
type SerialOptions struct {
	// BaudRate defaults to transport.DefaultBaudRate (921600).
	BaudRate int
	// Port pins discovery to one device; empty probes all of them.
	Port string
}

// ConnectSerial discovers the server on an RS232 line via the greeting
// handshake and connects to the port that answered.
func (s *SDK) ConnectSerial(opts SerialOptions) error {
	t, err := transport.Discover(transport.SerialConfig{
		BaudRate: opts.BaudRate,
		Port:     opts.Port,
		Logger:   s.log,
	})
	if err != nil {
		return err
	}
	s.log.WithField("port", t.PortName()).Info("connected to Open LISA server over RS232")
	s.attach(t)
	return nil
}

// ConnectWebSocket connects to a server behind a WebSocket endpoint.
func (s *SDK) ConnectWebSocket(url string) error {
	t, err := transport.DialWebSocket(url)
	if err != nil {
		return fmt.Errorf("openlisa: could not connect with server at %s: %w", url, err)
	}
	s.attach(t)
	return nil
}

func (s *SDK) attach(t transport.Transport) {
	s.client = protocol.NewClient(framing.New(t, s.log), s.log)
}

// Disconnect notifies the server and closes the connection.
func (s *SDK) Disconnect() error {
	if s.client == nil {
		return ErrNotConnected
	}
	err := s.client.Disconnect()
	s.client = nil
	return err
}

func (s *SDK) proto() (*protocol.Client, error) {
	if s.client == nil {
		return nil, ErrNotConnected
	}
	return s.client, nil
}

// GetInstruments returns the list of registered instruments, shaped per the
// response format (optional per-call override).
func (s *SDK) GetInstruments(format ...Format) (any, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	text, err := c.GetInstruments()
	if err != nil {
		return nil, err
	}
	return s.formatResponse(text, format)
}

// GetInstrument returns the instrument with the given id; the server answers
// ERROR when it does not exist.
func (s *SDK) GetInstrument(id string, format ...Format) (any, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	text, err := c.GetInstrument(id)
	if err != nil {
		return nil, err
	}
	return s.formatResponse(text, format)
}

// CreateInstrument registers a new instrument. The description is marshaled
// to JSON before it goes to the dispatcher; pass a struct or map matching
// the server's instrument schema.
func (s *SDK) CreateInstrument(instrument any, format ...Format) (any, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(instrument)
	if err != nil {
		return nil, fmt.Errorf("openlisa: encode instrument: %w", err)
	}
	text, err := c.CreateInstrument(string(body))
	if err != nil {
		return nil, err
	}
	return s.formatResponse(text, format)
}

// UpdateInstrument applies a partial update to an instrument.
func (s *SDK) UpdateInstrument(id string, updated any, format ...Format) (any, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("openlisa: encode instrument: %w", err)
	}
	text, err := c.UpdateInstrument(id, string(body))
	if err != nil {
		return nil, err
	}
	return s.formatResponse(text, format)
}

// DeleteInstrument removes an instrument and returns its last state.
func (s *SDK) DeleteInstrument(id string, format ...Format) (any, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	text, err := c.DeleteInstrument(id)
	if err != nil {
		return nil, err
	}
	return s.formatResponse(text, format)
}

// GetInstrumentCommands returns the command descriptors an instrument
// accepts.
func (s *SDK) GetInstrumentCommands(id string, format ...Format) (any, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	text, err := c.GetInstrumentCommands(id)
	if err != nil {
		return nil, err
	}
	return s.formatResponse(text, format)
}

// IsValidCommand reports whether a command invocation would be accepted for
// an instrument. A server-side rejection yields (false, nil); the error is
// non-nil only for connection-level failures.
func (s *SDK) IsValidCommand(id, command string) (bool, error) {
	c, err := s.proto()
	if err != nil {
		return false, err
	}
	err = c.ValidateCommand(id, command)
	var invalid *protocol.InvalidCommandError
	if errors.As(err, &invalid) {
		s.log.WithFields(logrus.Fields{"instrument": id, "command": command}).
			Debugf("command rejected: %s", invalid.Detail)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CommandResult is a decoded SEND_COMMAND response. For BYTES-typed results
// Value holds the decoded []byte; for everything else it holds the value as
// JSON decoded it.
type CommandResult struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// SendCommand executes a command on an instrument and decodes the result.
// BYTES-typed values are base64-decoded here, at the façade — the dispatcher
// below hands the JSON through untouched.
func (s *SDK) SendCommand(id, command string) (*CommandResult, error) {
	c, err := s.proto()
	if err != nil {
		return nil, err
	}
	text, err := c.SendCommand(id, command)
	if err != nil {
		return nil, err
	}
	var res CommandResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("openlisa: decode command result: %w", err)
	}
	if res.Type == resultTypeBytes {
		encoded, ok := res.Value.(string)
		if !ok {
			return nil, fmt.Errorf("openlisa: BYTES result value is not a base64 string")
		}
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("openlisa: decode BYTES result: %w", err)
		}
		res.Value = raw
	}
	return &res, nil
}

// SendCommandAs executes a command and coerces the result value to the
// requested kind via ConvertValue.
func (s *SDK) SendCommandAs(id, command string, to ConvertType) (*CommandResult, error) {
	res, err := s.SendCommand(id, command)
	if err != nil {
		return nil, err
	}
	v, err := ConvertValue(res.Value, to)
	if err != nil {
		return nil, err
	}
	res.Value = v
	return res, nil
}

// SendCommandJSON executes a command and returns the raw JSON result text,
// BYTES values still base64-encoded.
func (s *SDK) SendCommandJSON(id, command string) (string, error) {
	c, err := s.proto()
	if err != nil {
		return "", err
	}
	return c.SendCommand(id, command)
}

// ExecuteBash runs a shell command on the server host. The returned status
// code is the opaque string the server reported; it is not interpreted as
// success or failure.
func (s *SDK) ExecuteBash(command string, captureStdout, captureStderr bool) (protocol.ExecResult, error) {
	c, err := s.proto()
	if err != nil {
		return protocol.ExecResult{}, err
	}
	return c.ExecuteBash(command, captureStdout, captureStderr)
}

// ResetDatabases restores the server's databases to their initial state.
// Only honored when the server runs in test mode.
func (s *SDK) ResetDatabases() (string, error) {
	c, err := s.proto()
	if err != nil {
		return "", err
	}
	return c.ResetDatabases()
}

// formatResponse applies JSON-vs-native shaping with an optional per-call
// override of the SDK default.
func (s *SDK) formatResponse(jsonText string, override []Format) (any, error) {
	format := s.format
	if len(override) > 0 && override[0] != "" {
		format = override[0]
	}
	switch format {
	case FormatJSON:
		return jsonText, nil
	case FormatNative:
		var v any
		if err := json.Unmarshal([]byte(jsonText), &v); err != nil {
			return nil, fmt.Errorf("openlisa: decode server response: %w", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("openlisa: unknown response format %q", format)
}
