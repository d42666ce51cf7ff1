package handshake

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"
	"unicode"

	"github.com/danmuck/scramctl/internal/auth"
	"github.com/danmuck/scramctl/internal/protocol/mechanism"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoReply           = errors.New("handshake: no reply from server")
	ErrSignatureMismatch = errors.New("handshake: server signature mismatch")
)

// Conn is the framed stream a handshake runs over.
type Conn interface {
	Send(ctx context.Context, payload []byte) error
	Receive(ctx context.Context, idleTimeout time.Duration) ([]byte, error)
}

// Result is the outcome of one attempt.
type Result struct {
	AttemptID string
	Succeeded bool
	// Reached is the last non-terminal state entered before the outcome.
	Reached  State
	Failure  FailureKind
	Err      error
	Duration time.Duration
}

func (r Result) State() State {
	if r.Succeeded {
		return StateSucceeded
	}
	return StateFailed
}

// Machine runs single SCRAM attempts. It holds no per-attempt state and may
// be reused across attempts and handles.
type Machine struct {
	engine mechanism.Engine
}

func New(engine mechanism.Engine) *Machine {
	return &Machine{engine: engine}
}

// Run performs one full two-round exchange over conn with a fresh session.
// Every failure, transport or protocol, is reduced to a failed Result.
func (m *Machine) Run(ctx context.Context, creds auth.Credentials, conn Conn, idleTimeout time.Duration) Result {
	a := &attempt{
		engine: m.engine,
		ctx:    ctx,
		conn:   conn,
		idle:   idleTimeout,
		creds:  creds,
		state:  StateStart,
		id:     uuid.NewString(),
	}
	a.log = log.With().Str("attempt_id", a.id).Dur("idle_timeout", idleTimeout).Logger()
	start := time.Now()
	a.log.Debug().Msg("handshake.Run start")

	for !a.state.Terminal() {
		a.step()
	}

	res := Result{
		AttemptID: a.id,
		Succeeded: a.state == StateSucceeded,
		Reached:   a.reached,
		Failure:   a.failure,
		Err:       a.err,
		Duration:  time.Since(start),
	}
	if res.Succeeded {
		a.log.Debug().Dur("duration", res.Duration).Msg("handshake.Run succeeded")
	}
	return res
}

type attempt struct {
	engine mechanism.Engine
	ctx    context.Context
	conn   Conn
	idle   time.Duration
	creds  auth.Credentials
	id     string
	log    zerolog.Logger

	session *mechanism.Session
	state   State
	reached State
	failure FailureKind
	err     error
}

func (a *attempt) step() {
	switch a.state {
	case StateStart:
		user, err := a.engine.Normalize(a.creds.Username)
		if err != nil {
			a.fail(FailureProtocol, fmt.Errorf("normalize username: %w", err))
			return
		}
		pass, err := a.engine.Normalize(a.creds.Password)
		if err != nil {
			a.fail(FailureProtocol, fmt.Errorf("normalize password: %w", err))
			return
		}
		a.session = mechanism.NewSession(user, pass)
		if err := a.engine.BuildFirstMessage(a.session); err != nil {
			a.fail(FailureProtocol, err)
			return
		}
		if err := a.send(a.session.ClientFirst); err != nil {
			return
		}
		a.enter(StateSentFirst)

	case StateSentFirst:
		raw, ok := a.receive()
		if !ok {
			return
		}
		if err := a.engine.ParseServerMessage(raw, a.session); err != nil {
			a.fail(FailureProtocol, err)
			return
		}
		a.enter(StateGotFirstReply)

	case StateGotFirstReply:
		if err := a.engine.BuildFinalMessage(a.session); err != nil {
			a.fail(FailureProtocol, err)
			return
		}
		if err := a.send(a.session.ClientFinal); err != nil {
			return
		}
		a.enter(StateSentFinal)

	case StateSentFinal:
		raw, ok := a.receive()
		if !ok {
			return
		}
		if err := a.engine.ParseServerMessage(raw, a.session); err != nil {
			a.fail(FailureProtocol, err)
			return
		}
		a.enter(StateGotFinalReply)

	case StateGotFinalReply:
		if !a.engine.VerifyServerSignature(a.session) {
			a.fail(FailureVerification, ErrSignatureMismatch)
			return
		}
		a.state = StateSucceeded
	}
}

func (a *attempt) enter(next State) {
	a.log.Trace().Str("from", a.state.String()).Str("to", next.String()).Msg("handshake transition")
	a.state = next
	a.reached = next
}

func (a *attempt) send(payload []byte) error {
	if err := a.conn.Send(a.ctx, payload); err != nil {
		a.fail(a.transportKind(), err)
		return err
	}
	return nil
}

func (a *attempt) receive() ([]byte, bool) {
	raw, err := a.conn.Receive(a.ctx, a.idle)
	if err != nil {
		a.fail(a.transportKind(), err)
		return nil, false
	}
	raw = bytes.TrimRightFunc(raw, unicode.IsSpace)
	if len(raw) == 0 {
		a.fail(FailureNoReply, ErrNoReply)
		return nil, false
	}
	a.log.Trace().Int("bytes", len(raw)).Str("state", a.state.String()).Msg("handshake reply received")
	return raw, true
}

func (a *attempt) transportKind() FailureKind {
	if a.ctx.Err() != nil {
		return FailureCanceled
	}
	return FailureTransport
}

func (a *attempt) fail(kind FailureKind, err error) {
	a.failure = kind
	a.err = fmt.Errorf("handshake %s: %w", a.state, err)
	ev := a.log.Warn()
	if kind == FailureTransport || kind == FailureCanceled {
		ev = a.log.Error()
	}
	ev.Str("state", a.state.String()).
		Str("kind", kind.String()).
		Err(err).
		Msg("handshake.Run failed")
	a.state = StateFailed
}
