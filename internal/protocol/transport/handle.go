package transport

import (
	"net"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handle is an open duplex stream shared by every attempt of one
// authentication call.
type Handle struct {
	conn net.Conn
	opts Options
	addr string

	stateMu sync.Mutex
	busy    bool
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// NewHandle wraps an established stream. The caller gives up ownership of conn.
func NewHandle(conn net.Conn, opts Options) *Handle {
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = DefaultMaxMessageBytes
	}
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Handle{conn: conn, opts: opts, addr: addr}
}

// Addr is the remote address captured at wrap time.
func (h *Handle) Addr() string { return h.addr }

// Acquire marks the handle as owned by one in-flight handshake sequence.
func (h *Handle) Acquire() error {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.closed {
		return ErrHandleClosed
	}
	if h.busy {
		return ErrHandleBusy
	}
	h.busy = true
	return nil
}

// Release ends the ownership taken by Acquire.
func (h *Handle) Release() {
	h.stateMu.Lock()
	h.busy = false
	h.stateMu.Unlock()
}

// Close releases the stream exactly once. The handle is unusable afterwards
// even when the underlying close fails; that failure is returned as a
// *ConnectionError. Later calls return ErrHandleClosed.
func (h *Handle) Close() error {
	h.stateMu.Lock()
	if h.busy {
		h.stateMu.Unlock()
		return ErrHandleBusy
	}
	alreadyClosed := h.closed
	h.closed = true
	h.stateMu.Unlock()
	if alreadyClosed {
		return ErrHandleClosed
	}

	h.closeOnce.Do(func() {
		if err := h.conn.Close(); err != nil {
			h.closeErr = &ConnectionError{Op: "disconnect", Addr: h.addr, Err: err}
			log.Error().Str("addr", h.addr).Err(err).Msg("transport.Handle.Close failed")
			return
		}
		log.Debug().Str("addr", h.addr).Msg("transport.Handle.Close ok")
	})
	return h.closeErr
}

func (h *Handle) live() (net.Conn, error) {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.closed {
		return nil, ErrHandleClosed
	}
	return h.conn, nil
}
