package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/mattn/go-sqlite3"
)

// RetryConfig controls how writes are retried while another process holds
// the database lock.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig returns the retry policy used by NewSQLiteStore.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   4,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}
}

// backoff returns the delay before the given retry (0-based).
func (c RetryConfig) backoff(attempt int) time.Duration {
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	return time.Duration(delay)
}

// isBusy reports whether err is SQLite refusing a write because the database
// is locked by another connection.
func isBusy(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.Code == sqlite3.ErrBusy || sqlErr.Code == sqlite3.ErrLocked
}

// withRetry runs fn until it succeeds, fails with a non-busy error, the
// attempts run out or ctx is done.
func withRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isBusy(lastErr) {
			return lastErr
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
