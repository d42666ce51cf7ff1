package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/scramctl/internal/testutil/testlog"
)

func newPipeHandle(t *testing.T, opts Options) (*Handle, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	return NewHandle(client, opts), server
}

func writeChunks(conn net.Conn, msg []byte, chunk int) <-chan error {
	done := make(chan error, 1)
	go func() {
		for len(msg) > 0 {
			n := chunk
			if n > len(msg) {
				n = len(msg)
			}
			if _, err := conn.Write(msg[:n]); err != nil {
				done <- err
				return
			}
			msg = msg[n:]
		}
		done <- nil
	}()
	return done
}

func TestReceiveChunkingDoesNotChangeMessage(t *testing.T) {
	testlog.Start(t)
	msg := []byte("r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096")

	var got [][]byte
	for _, chunk := range []int{1, 7, len(msg)} {
		h, server := newPipeHandle(t, Options{})
		done := writeChunks(server, msg, chunk)
		out, err := h.Receive(context.Background(), 200*time.Millisecond)
		if err != nil {
			t.Fatalf("chunk=%d receive: %v", chunk, err)
		}
		if err := <-done; err != nil {
			t.Fatalf("chunk=%d writer: %v", chunk, err)
		}
		got = append(got, out)
	}
	for i, out := range got {
		if !bytes.Equal(out, msg) {
			t.Fatalf("variant %d got=%q want=%q", i, out, msg)
		}
	}
}

func TestReceiveZeroIdleReturnsAvailableData(t *testing.T) {
	testlog.Start(t)
	h, server := newPipeHandle(t, Options{})
	done := writeChunks(server, []byte("v=rmF9pqV8S7suAoZWja4dJRkFsKQ=\n"), 64)

	start := time.Now()
	out, err := h.Receive(context.Background(), 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(out) != "v=rmF9pqV8S7suAoZWja4dJRkFsKQ=\n" {
		t.Fatalf("unexpected message: %q", out)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("zero idle timeout took too long: %v", elapsed)
	}
	if err := <-done; err != nil {
		t.Fatalf("writer: %v", err)
	}
}

func TestReceiveSilentPeerReturnsEmptyAfterFirstReadTimeout(t *testing.T) {
	testlog.Start(t)
	h, _ := newPipeHandle(t, Options{FirstReadTimeout: 50 * time.Millisecond})

	start := time.Now()
	out, err := h.Receive(context.Background(), 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty message, got %q", out)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Fatalf("unexpected wait: %v", elapsed)
	}
}

func TestReceiveDisarmsDeadlineAfterQuiescence(t *testing.T) {
	testlog.Start(t)
	h, server := newPipeHandle(t, Options{})

	done := writeChunks(server, []byte("first"), 64)
	if out, err := h.Receive(context.Background(), 20*time.Millisecond); err != nil || string(out) != "first" {
		t.Fatalf("first receive out=%q err=%v", out, err)
	}
	<-done

	go func() {
		time.Sleep(100 * time.Millisecond)
		_, _ = server.Write([]byte("second"))
	}()
	out, err := h.Receive(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("second receive: %v", err)
	}
	if string(out) != "second" {
		t.Fatalf("stale deadline cut the wait short, got %q", out)
	}
}

func TestReceiveContextCancelInterruptsFirstRead(t *testing.T) {
	testlog.Start(t)
	h, _ := newPipeHandle(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)
	_, err := h.Receive(ctx, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !IsIOError(err) {
		t.Fatalf("expected *IOError, got %T", err)
	}
}

func TestReceiveEndOfStream(t *testing.T) {
	testlog.Start(t)

	h, server := newPipeHandle(t, Options{})
	go func() {
		_, _ = server.Write([]byte("e=other-error"))
		_ = server.Close()
	}()
	start := time.Now()
	out, err := h.Receive(context.Background(), 5*time.Second)
	if err != nil || string(out) != "e=other-error" {
		t.Fatalf("out=%q err=%v", out, err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("eof should end the message early: %v", elapsed)
	}

	h2, server2 := newPipeHandle(t, Options{})
	_ = server2.Close()
	if _, err := h2.Receive(context.Background(), time.Second); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestReceiveKeepsDataWhenPeerClosesBetweenFragments(t *testing.T) {
	testlog.Start(t)

	h, server := newPipeHandle(t, Options{})
	go func() {
		_, _ = server.Write([]byte("r=abc,"))
		_, _ = server.Write([]byte("s=c2FsdA==,i=4096"))
		_ = server.Close()
	}()
	out, err := h.Receive(context.Background(), 2*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if string(out) != "r=abc,s=c2FsdA==,i=4096" {
		t.Fatalf("accumulated fragments lost: %q", out)
	}

	h2, server2 := newPipeHandle(t, Options{FirstReadTimeout: time.Second})
	_ = server2.Close()
	if _, err := h2.Receive(context.Background(), 0); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData with bounded first read, got %v", err)
	}
}

func TestReceiveRejectsOversizedMessage(t *testing.T) {
	testlog.Start(t)
	h, server := newPipeHandle(t, Options{MaxMessageBytes: 8})
	go func() { _, _ = server.Write(bytes.Repeat([]byte("x"), 16)) }()
	if _, err := h.Receive(context.Background(), 50*time.Millisecond); !errors.Is(err, ErrMessageTooLarge) {
		t.Fatalf("expected ErrMessageTooLarge, got %v", err)
	}
}

func TestSendDeliversWholePayload(t *testing.T) {
	testlog.Start(t)
	h, server := newPipeHandle(t, Options{WriteTimeout: time.Second})
	payload := bytes.Repeat([]byte("abcdefgh"), 2048)

	got := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(payload))
		_, _ = io.ReadFull(server, buf)
		got <- buf
	}()
	if err := h.Send(context.Background(), payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !bytes.Equal(<-got, payload) {
		t.Fatalf("payload corrupted in transit")
	}
}

func TestSendTimesOutWithoutReader(t *testing.T) {
	testlog.Start(t)
	h, _ := newPipeHandle(t, Options{WriteTimeout: 30 * time.Millisecond})
	err := h.Send(context.Background(), []byte("n,,n=user,r=abc"))
	if !IsIOError(err) || !isTimeout(errors.Unwrap(err)) {
		t.Fatalf("expected send timeout, got %v", err)
	}
}
