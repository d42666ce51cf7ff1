package session

import (
	"errors"
	"time"
)

var (
	ErrInvalidBackoff     = errors.New("session: backoff unit and multiplier must be positive")
	ErrInvalidIdleTimeout = errors.New("session: fixed idle timeout must not be negative")
	ErrNegativeRetries    = errors.New("session: max retries must not be negative")
)

// BackoffConfig defines retry backoff behavior. InitialDelay is the backoff
// unit: the wait before the second attempt.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines the retry controller policy.
type Config struct {
	Backoff BackoffConfig
	// FixedIdleTimeout, when positive, replaces the backoff-coupled idle
	// timeout for every retry. Attempt 1 always uses 0.
	FixedIdleTimeout time.Duration
}

// DefaultConfig returns a one-second unit doubling per retry, uncapped and
// without jitter: delays of 0s, 1s, 2s, 4s for three retries.
func DefaultConfig() Config {
	return Config{
		Backoff: BackoffConfig{
			InitialDelay: time.Second,
			Multiplier:   2.0,
		},
	}
}

func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff.InitialDelay = def.Backoff.InitialDelay
	}
	if c.Backoff.Multiplier <= 0 {
		c.Backoff.Multiplier = def.Backoff.Multiplier
	}
	return c
}

func (c Config) Validate() error {
	if c.Backoff.InitialDelay <= 0 || c.Backoff.Multiplier <= 0 || c.Backoff.MaxDelay < 0 {
		return ErrInvalidBackoff
	}
	if c.FixedIdleTimeout < 0 {
		return ErrInvalidIdleTimeout
	}
	return nil
}

// idleTimeoutFor returns the per-read idle bound for an attempt that was
// preceded by delay.
func (c Config) idleTimeoutFor(attempt int, delay time.Duration) time.Duration {
	if attempt <= 1 {
		return 0
	}
	if c.FixedIdleTimeout > 0 {
		return c.FixedIdleTimeout
	}
	return delay
}
