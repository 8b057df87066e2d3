// Package protocol implements the client side of the Open LISA
// request/response protocol: each operation encodes a command name plus its
// fixed-order arguments as framed messages, reads back the OK/ERROR status
// tag, and classifies the paired payload as result or typed failure.
package protocol

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/openlisa/openlisa-go/framing"
)

// Command names understood by the Open LISA server. The per-command argument
// arity is fixed; the server knows how many messages follow each name.
const (
	cmdDisconnect            = "DISCONNECT"
	cmdGetInstruments        = "GET_INSTRUMENTS"
	cmdGetInstrument         = "GET_INSTRUMENT"
	cmdCreateInstrument      = "CREATE_INSTRUMENT"
	cmdUpdateInstrument      = "UPDATE_INSTRUMENT"
	cmdDeleteInstrument      = "DELETE_INSTRUMENT"
	cmdGetInstrumentCommands = "GET_INSTRUMENT_COMMANDS"
	cmdValidateCommand       = "VALIDATE_COMMAND"
	cmdSendCommand           = "SEND_COMMAND"
	cmdGetFile               = "GET_FILE"
	cmdSendFile              = "SEND_FILE"
	cmdExecuteBash           = "EXECUTE_BASH"
	// Only honored when the server runs in test mode.
	cmdResetDatabases = "RESET_DATABASES"
)

// Status tags preceding every response payload. Case-sensitive; anything
// else is a protocol violation.
const (
	statusOK    = "OK"
	statusError = "ERROR"
)

// ExecResult is the outcome of a remote bash execution. StatusCode is the
// process exit status as the server reported it, left uninterpreted; Stdout
// and Stderr are populated only for the streams the caller asked to capture.
type ExecResult struct {
	StatusCode string
	Stdout     string
	Stderr     string
}

// Client is the request/response dispatcher. It owns the wire for the
// duration of each operation: a mutex serializes operations, so the channel
// is strictly one-request-in-flight and responses can never interleave. One
// Client per connection; for concurrent instrument access open independent
// connections.
type Client struct {
	mu   sync.Mutex
	conn *framing.Conn
	log  logrus.FieldLogger
}

// NewClient wraps a framed connection. A nil logger defaults to warn level.
func NewClient(conn *framing.Conn, log logrus.FieldLogger) *Client {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		log = l
	}
	return &Client{conn: conn, log: log.WithField("component", "protocol")}
}

// timed logs per-operation latency at debug level. Every operation wraps
// itself exactly once: defer c.timed("op")().
func (c *Client) timed(op string) func() {
	start := time.Now()
	c.log.WithField("op", op).Debug("request")
	return func() {
		c.log.WithFields(logrus.Fields{
			"op":      op,
			"elapsed": time.Since(start),
		}).Debug("response")
	}
}

// readStatus consumes the status tag that precedes every response payload.
// An unknown tag means the stream is desynchronized: the connection is
// closed and a ViolationError returned.
func (c *Client) readStatus() (ok bool, err error) {
	tag, err := c.conn.ReceiveText()
	if err != nil {
		return false, err
	}
	switch tag {
	case statusOK:
		return true, nil
	case statusError:
		return false, nil
	}
	c.conn.Close()
	return false, &ViolationError{Token: tag}
}

// roundTrip sends the command name and its text arguments, then reads the
// status tag and the single text payload that follows it. On ERROR the
// payload is the server's detail string and ok is false.
func (c *Client) roundTrip(cmd string, args ...string) (payload string, ok bool, err error) {
	if err := c.conn.SendText(cmd); err != nil {
		return "", false, err
	}
	for _, a := range args {
		if err := c.conn.SendText(a); err != nil {
			return "", false, err
		}
	}
	if ok, err = c.readStatus(); err != nil {
		return "", false, err
	}
	if payload, err = c.conn.ReceiveText(); err != nil {
		return "", false, err
	}
	return payload, ok, nil
}

// GetInstruments returns the registered instruments as a JSON array string.
func (c *Client) GetInstruments() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("get_instruments")()

	payload, ok, err := c.roundTrip(cmdGetInstruments)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ServerError{Op: "get_instruments", Detail: payload}
	}
	return payload, nil
}

// GetInstrument returns one instrument as a JSON object string.
func (c *Client) GetInstrument(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("get_instrument")()

	payload, ok, err := c.roundTrip(cmdGetInstrument, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ServerError{Op: "get_instrument", Detail: payload}
	}
	return payload, nil
}

// CreateInstrument registers a new instrument from its JSON description and
// returns the created instrument as a JSON object string.
func (c *Client) CreateInstrument(instrumentJSON string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("create_instrument")()

	payload, ok, err := c.roundTrip(cmdCreateInstrument, instrumentJSON)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ServerError{Op: "create_instrument", Detail: payload}
	}
	return payload, nil
}

// UpdateInstrument applies a JSON update to an instrument and returns the
// updated instrument as a JSON object string.
func (c *Client) UpdateInstrument(id, instrumentJSON string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("update_instrument")()

	payload, ok, err := c.roundTrip(cmdUpdateInstrument, id, instrumentJSON)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ServerError{Op: "update_instrument", Detail: payload}
	}
	return payload, nil
}

// DeleteInstrument removes an instrument and returns it as a JSON object
// string.
func (c *Client) DeleteInstrument(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("delete_instrument")()

	payload, ok, err := c.roundTrip(cmdDeleteInstrument, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ServerError{Op: "delete_instrument", Detail: payload}
	}
	return payload, nil
}

// GetInstrumentCommands returns the command descriptors of an instrument as
// a JSON string.
func (c *Client) GetInstrumentCommands(id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("get_instrument_commands")()

	payload, ok, err := c.roundTrip(cmdGetInstrumentCommands, id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ServerError{Op: "get_instrument_commands", Detail: payload}
	}
	return payload, nil
}

// ValidateCommand asks the server whether a command invocation is valid for
// an instrument. Success carries no payload beyond the OK tag; rejection is
// an InvalidCommandError with the server's detail.
func (c *Client) ValidateCommand(id, command string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("validate_command")()

	if err := c.conn.SendText(cmdValidateCommand); err != nil {
		return err
	}
	if err := c.conn.SendText(id); err != nil {
		return err
	}
	if err := c.conn.SendText(command); err != nil {
		return err
	}
	ok, err := c.readStatus()
	if err != nil {
		return err
	}
	if !ok {
		detail, err := c.conn.ReceiveText()
		if err != nil {
			return err
		}
		return &InvalidCommandError{Command: command, Detail: detail}
	}
	return nil
}

// SendCommand executes a command on an instrument and returns the execution
// result as a JSON object string of the shape {"type": ..., "value": ...}.
// BYTES-typed values arrive base64-encoded inside the JSON and are handed
// back unmodified; decoding them is the façade's concern.
func (c *Client) SendCommand(id, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("send_command")()

	if err := c.conn.SendText(cmdSendCommand); err != nil {
		return "", err
	}
	if err := c.conn.SendText(id); err != nil {
		return "", err
	}
	if err := c.conn.SendText(command); err != nil {
		return "", err
	}
	ok, err := c.readStatus()
	if err != nil {
		return "", err
	}
	payload, err := c.conn.ReceiveText()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &InvalidCommandError{Instrument: id, Command: command, Detail: payload}
	}
	return payload, nil
}

// SendFile uploads raw file bytes under the given target name. The file body
// goes over the wire as a single binary message; success carries no payload
// beyond the OK tag.
func (c *Client) SendFile(targetName string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("send_file")()

	if err := c.conn.SendText(cmdSendFile); err != nil {
		return err
	}
	if err := c.conn.SendText(targetName); err != nil {
		return err
	}
	if err := c.conn.Send(data); err != nil {
		return err
	}
	ok, err := c.readStatus()
	if err != nil {
		return err
	}
	if !ok {
		detail, err := c.conn.ReceiveText()
		if err != nil {
			return err
		}
		return &InvalidPathError{Detail: detail}
	}
	return nil
}

// GetFile downloads a remote file and returns its raw bytes. Unlike
// SEND_COMMAND's BYTES results, the payload is a dedicated binary message,
// not base64 inside JSON.
func (c *Client) GetFile(remoteName string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("get_file")()

	if err := c.conn.SendText(cmdGetFile); err != nil {
		return nil, err
	}
	if err := c.conn.SendText(remoteName); err != nil {
		return nil, err
	}
	ok, err := c.readStatus()
	if err != nil {
		return nil, err
	}
	if !ok {
		detail, err := c.conn.ReceiveText()
		if err != nil {
			return nil, err
		}
		c.log.WithFields(logrus.Fields{"file": remoteName, "detail": detail}).Error("remote file request failed")
		return nil, &ServerError{Op: "get_file", Detail: detail}
	}
	return c.conn.Receive()
}

// ExecuteBash runs a shell command on the server host. The capture flags go
// over the wire as the literal strings "True"/"False", and the number of
// messages read back depends on them: the status code always, stdout and
// stderr only when their flag was sent true. Both sides must agree on this
// convention; reading an uncaptured stream would desynchronize the channel.
func (c *Client) ExecuteBash(command string, captureStdout, captureStderr bool) (ExecResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("execute_bash_command")()

	var res ExecResult
	if err := c.conn.SendText(cmdExecuteBash); err != nil {
		return res, err
	}
	if err := c.conn.SendText(command); err != nil {
		return res, err
	}
	if err := c.conn.SendText(boolLiteral(captureStdout)); err != nil {
		return res, err
	}
	if err := c.conn.SendText(boolLiteral(captureStderr)); err != nil {
		return res, err
	}

	ok, err := c.readStatus()
	if err != nil {
		return res, err
	}
	if !ok {
		detail, err := c.conn.ReceiveText()
		if err != nil {
			return res, err
		}
		return res, &ServerError{Op: "execute_bash_command", Detail: detail}
	}

	if res.StatusCode, err = c.conn.ReceiveText(); err != nil {
		return res, err
	}
	c.log.WithField("status_code", res.StatusCode).Debug("remote bash command finished")

	if captureStdout {
		if res.Stdout, err = c.conn.ReceiveText(); err != nil {
			return res, err
		}
	}
	if captureStderr {
		if res.Stderr, err = c.conn.ReceiveText(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// ResetDatabases asks the server to restore its databases to their initial
// state. Only honored when the server runs in test mode.
func (c *Client) ResetDatabases() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("reset_databases")()

	payload, ok, err := c.roundTrip(cmdResetDatabases)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ServerError{Op: "reset_databases", Detail: payload}
	}
	return payload, nil
}

// Disconnect tells the server the session is over and closes the connection.
// No response is read; the server tears its side down on receipt.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.timed("disconnect")()

	sendErr := c.conn.SendText(cmdDisconnect)
	closeErr := c.conn.Close()
	if sendErr != nil {
		return sendErr
	}
	return closeErr
}

// boolLiteral serializes a capture flag the way the server parses it.
func boolLiteral(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
