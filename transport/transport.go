// Package transport provides the raw byte-stream connections the Open LISA
// protocol runs over: TCP sockets, RS232 serial ports (with server
// discovery), and WebSocket tunnels.
package transport

import "io"

// Transport is a duplex byte stream to an Open LISA server.
//
// A transport is owned exclusively by the framing layer built on top of it:
// it is created on connect and torn down on disconnect or on the first fatal
// I/O error. Implementations must never return (0, nil) from Read — a read
// that produces no bytes must report why (timeout, closed peer), otherwise
// the framing layer's full-read loops would spin.
type Transport interface {
	io.ReadWriteCloser
}
