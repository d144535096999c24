// Package retry runs operations with bounded, jittered exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"nathanbeddoewebdev/mcfleet/internal/domain"
)

// Predicate determines whether an error should be retried.
type Predicate func(error) bool

// Config controls retry behavior. A MaxAttempts of zero or less runs fn
// once; Unlimited retries until fn succeeds, the predicate refuses, or the
// context ends.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Unlimited is the MaxAttempts value for retrying without an attempt cap.
const Unlimited = -1

// DefaultConfig is used for one-shot provider calls such as the session
// handshake.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// RedialConfig is used for re-establishing event streams.
func RedialConfig() Config {
	return Config{
		MaxAttempts: Unlimited,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Do executes fn with retries using the provided config.
func Do(ctx context.Context, config Config, shouldRetry Predicate, fn func() error) error {
	unlimited := config.MaxAttempts == Unlimited
	if config.MaxAttempts <= 0 && !unlimited {
		config.MaxAttempts = 1
	}
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	var err error
	for attempt := 1; unlimited || attempt <= config.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if (!unlimited && attempt == config.MaxAttempts) || !shouldRetry(err) {
			return err
		}

		if !Sleep(ctx, Backoff(config, attempt)) {
			return ctx.Err()
		}
	}

	return err
}

// IsRetryable determines whether an error is likely transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, domain.ErrTransport) || errors.Is(err, domain.ErrRateLimited) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// Backoff returns the jittered delay before the attempt after the given one.
func Backoff(config Config, attempt int) time.Duration {
	if config.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	// Cap the shift so long unlimited runs never overflow.
	if attempt > 20 {
		attempt = 20
	}

	delay := config.BaseDelay << (attempt - 1)
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	// Full jitter over the upper half keeps redials from collapsing to zero.
	half := int64(delay) / 2
	if half <= 0 {
		return delay
	}
	return time.Duration(half + rand.Int63n(half+1))
}

// Sleep waits for delay or until ctx ends. It reports whether the full
// delay elapsed.
func Sleep(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
