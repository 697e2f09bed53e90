/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package retry provides exponential backoff with jitter for operations
// that can fail transiently, such as GitHub API calls subject to
// secondary rate limits.
package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config configures retry behavior for an operation.
type Config struct {
	// MaxRetries is the maximum number of retry attempts (default: 3).
	// 0 means do not retry at all.
	MaxRetries int
	// BaseBackoff is the initial backoff duration (default: 1s).
	BaseBackoff time.Duration
	// MaxBackoff is the maximum backoff duration (default: 60s).
	MaxBackoff time.Duration
	// MaxJitter is the maximum random jitter added to backoff (default: 500ms).
	MaxJitter time.Duration
}

// Validate checks that the retry configuration has valid values.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.BaseBackoff < 0 {
		return errors.New("base backoff cannot be negative")
	}
	if c.MaxBackoff < 0 {
		return errors.New("max backoff cannot be negative")
	}
	if c.MaxJitter < 0 {
		return errors.New("max jitter cannot be negative")
	}
	return nil
}

// DefaultConfig returns a retry configuration suitable for GitHub API
// rate limits. Secondary rate limits often need a while to recover, so
// the backoff ceiling is generous.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Backoff returns the backoff duration for the given zero-based attempt,
// including jitter. Exposed so callers that manage their own queues (the
// scheduler) can delay a requeue with the same curve used here.
func (c Config) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	backoff := min(c.BaseBackoff<<attempt, c.MaxBackoff)

	var jitter time.Duration
	if c.MaxJitter > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(int64(c.MaxJitter))); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return backoff + jitter
}

// Do executes the given function with exponential backoff retry. It only
// retries on errors that are classified as retryable by isRetryable.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !isRetryable(lastErr) {
			return result, lastErr
		}

		if attempt >= cfg.MaxRetries {
			break
		}

		delay := cfg.Backoff(attempt)

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", delay).
			With("error", lastErr.Error()).
			Warn("Transient error, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(delay):
		}
	}

	return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, lastErr)
}
