/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package retry_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"chainguard.dev/cookstyle-runner/retry"
)

func testConfig() retry.Config {
	return retry.Config{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

// alwaysRetryable is a test helper that considers all errors retryable.
func alwaysRetryable(err error) bool {
	return err != nil
}

func TestDo_Success(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	result, err := retry.Do(context.Background(), testConfig(), "test_op", alwaysRetryable, func() (string, error) {
		attempts.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected result %q, got %q", "ok", result)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	retryableErr := errors.New("403 secondary rate limit")

	result, err := retry.Do(context.Background(), testConfig(), "test_op", alwaysRetryable, func() (string, error) {
		n := attempts.Add(1)
		if n < 3 {
			return "", retryableErr
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "recovered" {
		t.Fatalf("expected result %q, got %q", "recovered", result)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDo_ExhaustedRetries(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	retryableErr := errors.New("429 too many requests")

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), cfg, "test_op", alwaysRetryable, func() (string, error) {
		attempts.Add(1)
		return "", retryableErr
	})
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}

	// Should have made MaxRetries+1 total attempts
	if got := attempts.Load(); got != 4 {
		t.Fatalf("expected 4 attempts (1 initial + 3 retries), got %d", got)
	}

	if !errors.Is(err, retryableErr) {
		t.Fatalf("expected wrapped error to contain original, got: %v", err)
	}
	expected := fmt.Sprintf("test_op failed after %d retries", cfg.MaxRetries)
	if got := err.Error(); got[:len(expected)] != expected {
		t.Fatalf("expected error to start with %q, got %q", expected, got)
	}
}

func TestDo_NonRetryableError(t *testing.T) {
	t.Parallel()
	permErr := errors.New("401 bad credentials")

	var attempts atomic.Int32
	_, err := retry.Do(context.Background(), testConfig(), "test_op", func(error) bool { return false }, func() (string, error) {
		attempts.Add(1)
		return "", permErr
	})
	if err == nil {
		t.Fatal("expected error for non-retryable failure")
	}
	if !errors.Is(err, permErr) {
		t.Fatalf("expected original error, got: %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt (no retries for non-retryable error), got %d", got)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	retryableErr := errors.New("429 rate limit exceeded")

	var attempts atomic.Int32
	_, err := retry.Do(ctx, testConfig(), "test_op", alwaysRetryable, func() (string, error) {
		if attempts.Add(1) == 1 {
			// Cancel after first failure, before backoff sleep completes
			cancel()
		}
		return "", retryableErr
	})
	if err == nil {
		t.Fatal("expected error on context cancellation")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}

func TestBackoff_Capped(t *testing.T) {
	t.Parallel()
	cfg := retry.Config{BaseBackoff: time.Second, MaxBackoff: 4 * time.Second}

	for attempt, want := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 4 * time.Second} {
		if got := cfg.Backoff(attempt); got != want {
			t.Errorf("Backoff(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := retry.DefaultConfig()

	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", cfg.MaxRetries)
	}
	if cfg.BaseBackoff != time.Second {
		t.Errorf("BaseBackoff = %v, want %v", cfg.BaseBackoff, time.Second)
	}
	if cfg.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want %v", cfg.MaxBackoff, 60*time.Second)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}
