package session

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// NextBackoffDelay returns the delay slept before attempt N (1-based).
// Attempt 1 runs immediately; attempt 2 waits one unit; each later attempt
// waits Multiplier times the previous delay, capped at MaxDelay when set.
func NextBackoffDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt <= 1 || cfg.InitialDelay <= 0 {
		return 0
	}
	if cfg.Multiplier < 1.0 {
		cfg.Multiplier = 1.0
	}
	delay := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt-2))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	if cfg.Jitter {
		f := 0.5
		if rng != nil {
			f = 0.5 + rng.Float64()
		}
		delay = delay * f
	}
	return time.Duration(delay)
}

// BackoffSchedule lists the delays for 1+maxRetries attempts.
func BackoffSchedule(cfg BackoffConfig, maxRetries int) []time.Duration {
	if maxRetries < 0 {
		maxRetries = 0
	}
	out := make([]time.Duration, 0, maxRetries+1)
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		out = append(out, NextBackoffDelay(cfg, attempt, nil))
	}
	return out
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
