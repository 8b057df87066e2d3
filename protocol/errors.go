package protocol

import "fmt"

// ViolationError reports a response status tag that was neither OK nor
// ERROR. The byte stream's framing alignment can no longer be trusted, so
// the connection is torn down and must not be reused.
type ViolationError struct {
	Token string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("protocol: unknown response type: '%s'", e.Token)
}

// ServerError carries the detail string the server sent after an ERROR tag
// for an instrument operation. Recoverable: the connection stays usable for
// the next command.
type ServerError struct {
	Op     string
	Detail string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.Op, e.Detail)
}

// InvalidCommandError is the server rejecting a command invocation for an
// instrument. Recoverable.
type InvalidCommandError struct {
	Instrument string // empty for VALIDATE_COMMAND, which reports only the command
	Command    string
	Detail     string
}

func (e *InvalidCommandError) Error() string {
	if e.Instrument == "" {
		return fmt.Sprintf("command '%s' is not valid: %s", e.Command, e.Detail)
	}
	return fmt.Sprintf("command '%s' for instrument %s is not valid: %s", e.Command, e.Instrument, e.Detail)
}

// InvalidPathError is the server rejecting a file transfer target path.
// Recoverable.
type InvalidPathError struct {
	Detail string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("protocol: invalid path: %s", e.Detail)
}
