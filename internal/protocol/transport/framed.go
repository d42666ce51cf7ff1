package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// aLongTimeAgo forces any pending read or write to return immediately.
var aLongTimeAgo = time.Unix(1, 0)

// deadlineGuard serializes deadline updates against context cancellation so
// a cancelled operation can never be re-armed with a future deadline.
type deadlineGuard struct {
	mu       sync.Mutex
	canceled bool
	set      func(time.Time) error
	stop     func() bool
}

func guardDeadline(ctx context.Context, set func(time.Time) error) *deadlineGuard {
	g := &deadlineGuard{set: set}
	g.stop = context.AfterFunc(ctx, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.canceled = true
		_ = g.set(aLongTimeAgo)
	})
	return g
}

func (g *deadlineGuard) arm(t time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.canceled {
		return context.Canceled
	}
	return g.set(t)
}

func (g *deadlineGuard) wasCanceled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canceled
}

// release detaches the guard and disarms any pending deadline.
func (g *deadlineGuard) release() {
	g.stop()
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = g.set(time.Time{})
}

// Send writes the whole payload and returns once every byte has been
// handed to the transport.
func (h *Handle) Send(ctx context.Context, payload []byte) error {
	conn, err := h.live()
	if err != nil {
		return &IOError{Op: "send", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return &IOError{Op: "send", Err: err}
	}

	g := guardDeadline(ctx, conn.SetWriteDeadline)
	defer g.release()

	var deadline time.Time
	if h.opts.WriteTimeout > 0 {
		deadline = time.Now().Add(h.opts.WriteTimeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	if err := g.arm(deadline); err != nil {
		return &IOError{Op: "send", Err: ctxErr(ctx, err)}
	}

	total := len(payload)
	for len(payload) > 0 {
		n, err := conn.Write(payload)
		payload = payload[n:]
		if err != nil {
			if g.wasCanceled() {
				err = ctxErr(ctx, err)
			}
			return &IOError{Op: "send", Err: err}
		}
		if n == 0 {
			return &IOError{Op: "send", Err: io.ErrShortWrite}
		}
	}
	log.Trace().Str("addr", h.addr).Int("bytes", total).Msg("transport.Handle.Send flushed")
	return nil
}

// Receive assembles one logical message. The first read waits for data
// (bounded only by FirstReadTimeout when set); after that each read waits
// at most idleTimeout and an expired wait ends the message. A message that
// never starts within FirstReadTimeout comes back empty with a nil error.
func (h *Handle) Receive(ctx context.Context, idleTimeout time.Duration) ([]byte, error) {
	conn, err := h.live()
	if err != nil {
		return nil, &IOError{Op: "receive", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &IOError{Op: "receive", Err: err}
	}
	if idleTimeout < 0 {
		idleTimeout = 0
	}

	g := guardDeadline(ctx, conn.SetReadDeadline)
	defer g.release()

	buf := make([]byte, readChunkBytes)
	var msg []byte
	fragments := 0
	for {
		var deadline time.Time
		switch {
		case fragments > 0:
			deadline = time.Now().Add(idleTimeout)
		case h.opts.FirstReadTimeout > 0:
			deadline = time.Now().Add(h.opts.FirstReadTimeout)
		}
		if err := g.arm(deadline); err != nil {
			return h.endOfStream(ctx, g, msg, err)
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if len(msg)+n > h.opts.MaxMessageBytes {
				return nil, &IOError{Op: "receive", Err: ErrMessageTooLarge}
			}
			msg = append(msg, buf[:n]...)
			fragments++
		}
		if err == nil {
			continue
		}

		switch {
		case g.wasCanceled():
			return nil, &IOError{Op: "receive", Err: ctxErr(ctx, err)}
		case isTimeout(err):
			log.Trace().
				Str("addr", h.addr).
				Int("fragments", fragments).
				Int("bytes", len(msg)).
				Dur("idle_timeout", idleTimeout).
				Msg("transport.Handle.Receive quiescent")
			return msg, nil
		case errors.Is(err, io.EOF) && len(msg) > 0:
			return msg, nil
		case errors.Is(err, io.EOF):
			return nil, &IOError{Op: "receive", Err: ErrNoData}
		default:
			return nil, &IOError{Op: "receive", Err: err}
		}
	}
}

// endOfStream handles a deadline that could not be armed. Some streams
// refuse deadlines once the peer has closed; that ends the message like EOF.
func (h *Handle) endOfStream(ctx context.Context, g *deadlineGuard, msg []byte, err error) ([]byte, error) {
	switch {
	case g.wasCanceled() || ctx.Err() != nil:
		return nil, &IOError{Op: "receive", Err: ctxErr(ctx, err)}
	case len(msg) > 0:
		return msg, nil
	case errors.Is(err, io.ErrClosedPipe), errors.Is(err, net.ErrClosed), errors.Is(err, io.EOF):
		return nil, &IOError{Op: "receive", Err: ErrNoData}
	default:
		return nil, &IOError{Op: "receive", Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func ctxErr(ctx context.Context, fallback error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fallback
}
