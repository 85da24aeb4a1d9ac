// Package retry implements bounded exponential backoff for transient network
// failures. Non-transient errors are returned immediately.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/account-tracker/internal/logging"
)

// Config controls the backoff schedule.
type Config struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // delay before the second attempt
	MaxDelay    time.Duration // backoff cap
	JitterFrac  float64       // extra random delay, fraction of the base wait
}

// DefaultConfig returns the write-path schedule: 0.5s, 1s, 2s, 4s, 8s capped
// at 10s, up to 6 attempts, jitter up to 30%.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 6,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		JitterFrac:  0.3,
	}
}

// transientSignals are substrings of error messages that indicate a network
// hiccup worth retrying.
var transientSignals = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"server disconnected",
	"timed out",
	"timeout",
	"EOF",
	"temporarily unavailable",
}

// IsTransient reports whether err looks like a transient network failure.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	for _, s := range transientSignals {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Do runs op, retrying transient failures per cfg. It returns nil on the
// first success, the error unchanged when it is not transient, or the last
// error once attempts are exhausted.
func Do(ctx context.Context, cfg Config, op func(ctx context.Context) error) error {
	logger := logging.FromContext(ctx)

	delay := cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsTransient(lastErr) || attempt == cfg.MaxAttempts {
			return lastErr
		}

		wait := delay + time.Duration(rand.Float64()*cfg.JitterFrac*float64(delay))
		logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   lastErr.Error(),
		}).Warn("transient failure, backing off")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
