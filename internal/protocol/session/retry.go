package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/danmuck/scramctl/internal/auth"
	"github.com/danmuck/scramctl/internal/protocol/handshake"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Runner performs one handshake attempt. *handshake.Machine satisfies it.
type Runner interface {
	Run(ctx context.Context, creds auth.Credentials, conn handshake.Conn, idleTimeout time.Duration) handshake.Result
}

// Observer receives attempt and call outcomes, e.g. for metrics.
type Observer interface {
	ObserveAttempt(rec AttemptRecord)
	ObserveAuthentication(rep Report)
}

// exclusive is implemented by handles that can be reserved for one caller.
type exclusive interface {
	Acquire() error
	Release()
}

// Report summarizes one Authenticate call.
type Report struct {
	AuthID    string
	Succeeded bool
	// Attempts are in execution order; Attempts[i].Delay was slept before it.
	Attempts []AttemptRecord
	// Results carry the per-attempt causes.
	Results []handshake.Result
	// Err is set when the call stopped for a reason other than exhausting
	// attempts: an unusable handle, bad arguments, or cancellation.
	Err error
}

// RetriesUsed is the number of attempts after the first.
func (r Report) RetriesUsed() int {
	if len(r.Attempts) == 0 {
		return 0
	}
	return len(r.Attempts) - 1
}

// TotalDelay is the sum of backoff sleeps taken.
func (r Report) TotalDelay() time.Duration {
	var total time.Duration
	for _, a := range r.Attempts {
		total += a.Delay
	}
	return total
}

// LastResult returns the final attempt's result.
func (r Report) LastResult() (handshake.Result, bool) {
	if len(r.Results) == 0 {
		return handshake.Result{}, false
	}
	return r.Results[len(r.Results)-1], true
}

type Option func(*Controller)

// WithSleep replaces the context-aware sleep used between attempts.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(c *Controller) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(c *Controller) { c.observer = obs }
}

// WithRand replaces the jitter source, which defaults to a time-seeded rng.
func WithRand(rng *rand.Rand) Option {
	return func(c *Controller) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// Controller wraps handshake attempts in the retry/backoff policy.
type Controller struct {
	cfg      Config
	runner   Runner
	sleep    func(context.Context, time.Duration) error
	rngMu    sync.Mutex
	rng      *rand.Rand
	observer Observer
}

func NewController(runner Runner, cfg Config, opts ...Option) (*Controller, error) {
	if runner == nil {
		return nil, errors.New("session: nil runner")
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		cfg:    cfg,
		runner: runner,
		sleep:  SleepContext,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// nextDelay serializes rng use across concurrent Authenticate calls.
func (c *Controller) nextDelay(attempt int) time.Duration {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return NextBackoffDelay(c.cfg.Backoff, attempt, c.rng)
}

func (c *Controller) Config() Config { return c.cfg }

// Authenticate runs up to 1+maxRetries attempts over conn and reports
// whether one succeeded.
func (c *Controller) Authenticate(ctx context.Context, username, password string, conn handshake.Conn, maxRetries int) bool {
	return c.AuthenticateReport(ctx, auth.Credentials{Username: username, Password: password}, conn, maxRetries).Succeeded
}

// AuthenticateReport is Authenticate with the full attempt history.
func (c *Controller) AuthenticateReport(ctx context.Context, creds auth.Credentials, conn handshake.Conn, maxRetries int) Report {
	rep := Report{AuthID: uuid.NewString()}
	logger := log.With().Str("auth_id", rep.AuthID).Str("user", creds.Username).Logger()

	defer func() {
		if c.observer != nil {
			c.observer.ObserveAuthentication(rep)
		}
	}()

	if maxRetries < 0 {
		rep.Err = ErrNegativeRetries
		return rep
	}
	if conn == nil {
		rep.Err = errors.New("session: nil connection")
		return rep
	}
	if ex, ok := conn.(exclusive); ok {
		if err := ex.Acquire(); err != nil {
			rep.Err = fmt.Errorf("session: acquire handle: %w", err)
			logger.Error().Err(rep.Err).Msg("session.Authenticate aborted")
			return rep
		}
		defer ex.Release()
	}

	attempts := NewAttemptLog()
	retriesLeft := maxRetries
	attempt := 1
	delay := time.Duration(0)
	logger.Debug().Int("max_retries", maxRetries).Msg("session.Authenticate start")

	for {
		idle := c.cfg.idleTimeoutFor(attempt, delay)
		pending := AttemptRecord{
			AuthID:      rep.AuthID,
			Number:      attempt,
			Delay:       delay,
			IdleTimeout: idle,
			StartedAt:   time.Now(),
		}
		res := c.runner.Run(ctx, creds, conn, idle)
		if res.AttemptID == "" {
			res.AttemptID = fmt.Sprintf("%s/%d", rep.AuthID, attempt)
		}
		rec := attempts.Record(pending, res)
		rep.Results = append(rep.Results, res)
		if c.observer != nil {
			c.observer.ObserveAttempt(rec)
		}

		if res.Succeeded {
			rep.Succeeded = true
			logger.Info().Int("attempt", attempt).Dur("duration", res.Duration).Msg("session.Authenticate succeeded")
			break
		}
		logger.Debug().
			Int("attempt", attempt).
			Str("attempt_id", res.AttemptID).
			Str("kind", res.Failure.String()).
			Int("retries_left", retriesLeft).
			Msg("session.Authenticate attempt failed")

		if res.Failure == handshake.FailureCanceled || ctx.Err() != nil {
			rep.Err = ctxErrOr(ctx, res.Err)
			break
		}
		if retriesLeft <= 0 {
			break
		}
		retriesLeft--
		attempt++
		delay = c.nextDelay(attempt)
		logger.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("session.Authenticate backoff")
		if err := c.sleep(ctx, delay); err != nil {
			rep.Err = err
			break
		}
	}

	rep.Attempts = attempts.List()
	if !rep.Succeeded {
		ev := logger.Warn()
		if rep.Err != nil {
			ev = ev.Err(rep.Err)
		}
		ev.Int("attempts", len(rep.Attempts)).Msg("session.Authenticate failed")
	}
	return rep
}

func ctxErrOr(ctx context.Context, fallback error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fallback
}
