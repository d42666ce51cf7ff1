// Package scramtest provides a scriptable SCRAM server for handshake tests.
package scramtest

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xdg-go/scram"
)

// Fault selects how the server misbehaves on one attempt.
type Fault int

const (
	FaultNone Fault = iota
	// FaultMalformedFirst replies to client-first with garbage.
	FaultMalformedFirst
	// FaultMalformedFinal replies to client-final with garbage.
	FaultMalformedFinal
	// FaultForgedSignature replies with a well-formed but wrong verifier.
	FaultForgedSignature
	// FaultSilent never answers client-first.
	FaultSilent
)

const Iterations = 4096

// Server answers client-first/client-final pairs on one stream, one attempt
// per pair, until the stream closes.
type Server struct {
	hash  scram.HashGeneratorFcn
	users map[string]scram.StoredCredentials

	// Faults maps a 1-based attempt number to a fault; missing entries behave.
	Faults map[int]Fault
	// FragmentSize splits every reply into chunks of this many bytes.
	FragmentSize int
	// FragmentDelay is slept between chunks.
	FragmentDelay time.Duration
	// Trailer is appended to every reply.
	Trailer string

	attempts atomic.Int32
	mu       sync.Mutex
	started  []time.Time
}

func New(t testing.TB, hash scram.HashGeneratorFcn, users map[string]string) *Server {
	t.Helper()
	stored := make(map[string]scram.StoredCredentials, len(users))
	for user, pass := range users {
		client, err := hash.NewClient(user, pass, "")
		if err != nil {
			t.Fatalf("scramtest: client for %q: %v", user, err)
		}
		salt := make([]byte, 16)
		if _, err := rand.Read(salt); err != nil {
			t.Fatalf("scramtest: salt: %v", err)
		}
		stored[user] = client.GetStoredCredentials(scram.KeyFactors{Salt: string(salt), Iters: Iterations})
	}
	return &Server{hash: hash, users: stored, Trailer: "\n"}
}

// Attempts returns how many client-first messages have been served.
func (s *Server) Attempts() int { return int(s.attempts.Load()) }

// AttemptTimes returns when each attempt's client-first arrived.
func (s *Server) AttemptTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.started...)
}

// Serve runs until conn is closed by the peer. It returns nil on EOF.
func (s *Server) Serve(conn net.Conn) error {
	server, err := s.hash.NewServer(s.lookup)
	if err != nil {
		return err
	}
	for {
		clientFirst, err := readMessage(conn)
		if err != nil {
			return ignoreClosed(err)
		}
		attempt := int(s.attempts.Add(1))
		s.mu.Lock()
		s.started = append(s.started, time.Now())
		s.mu.Unlock()
		fault := s.Faults[attempt]
		log.Debug().Int("attempt", attempt).Int("fault", int(fault)).Msg("scramtest.Server attempt")

		switch fault {
		case FaultSilent:
			continue
		case FaultMalformedFirst:
			if err := s.reply(conn, "this is not scram"); err != nil {
				return ignoreClosed(err)
			}
			continue
		}

		conv := server.NewConversation()
		serverFirst, err := conv.Step(clientFirst)
		if err != nil {
			if serverFirst == "" {
				serverFirst = "e=other-error"
			}
			if err := s.reply(conn, serverFirst); err != nil {
				return ignoreClosed(err)
			}
			continue
		}
		if err := s.reply(conn, serverFirst); err != nil {
			return ignoreClosed(err)
		}

		clientFinal, err := readMessage(conn)
		if err != nil {
			return ignoreClosed(err)
		}
		var serverFinal string
		switch fault {
		case FaultMalformedFinal:
			serverFinal = "v"
		case FaultForgedSignature:
			forged := make([]byte, 32)
			_, _ = rand.Read(forged)
			serverFinal = "v=" + base64.StdEncoding.EncodeToString(forged)
		default:
			serverFinal, err = conv.Step(clientFinal)
			if err != nil && serverFinal == "" {
				serverFinal = "e=other-error"
			}
		}
		if err := s.reply(conn, serverFinal); err != nil {
			return ignoreClosed(err)
		}
	}
}

func (s *Server) lookup(user string) (scram.StoredCredentials, error) {
	creds, ok := s.users[user]
	if !ok {
		return scram.StoredCredentials{}, errors.New("unknown user")
	}
	return creds, nil
}

func (s *Server) reply(conn net.Conn, msg string) error {
	out := []byte(msg + s.Trailer)
	if s.FragmentSize <= 0 {
		_, err := conn.Write(out)
		return err
	}
	for len(out) > 0 {
		n := s.FragmentSize
		if n > len(out) {
			n = len(out)
		}
		if _, err := conn.Write(out[:n]); err != nil {
			return err
		}
		out = out[n:]
		if len(out) > 0 && s.FragmentDelay > 0 {
			time.Sleep(s.FragmentDelay)
		}
	}
	return nil
}

// readMessage reads one client message; clients send each message in a
// single write.
func readMessage(conn net.Conn) (string, error) {
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if n > 0 {
		return string(buf[:n]), nil
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return "", err
}

func ignoreClosed(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
