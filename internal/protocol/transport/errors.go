package transport

import (
	"errors"
	"fmt"
)

var (
	ErrHostRequired    = errors.New("transport: host required")
	ErrInvalidPort     = errors.New("transport: invalid port")
	ErrCAFileUnusable  = errors.New("transport: ca file unusable")
	ErrInvalidTimeout  = errors.New("transport: negative timeout")
	ErrHandleClosed    = errors.New("transport: handle closed")
	ErrHandleBusy      = errors.New("transport: handle in use by another handshake")
	ErrMessageTooLarge = errors.New("transport: message exceeds size limit")
	ErrNoData          = errors.New("transport: stream ended before any data")
)

// ConnectionError is a failure to establish or tear down the stream.
// It is fatal to the whole authentication operation.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IOError is a send/receive failure below the protocol layer.
// It fails the current attempt only.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

func IsIOError(err error) bool {
	var ioe *IOError
	return errors.As(err, &ioe)
}
