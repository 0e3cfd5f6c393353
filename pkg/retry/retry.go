// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package retry provides exponential backoff retry with jitter.
//
// Only errors classified as retryable trigger another attempt; anything
// else returns immediately. Callers can force classification by wrapping
// an error with Transient or Permanent.
package retry

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// Config configures retry behavior with exponential backoff.
type Config struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	// Default: 3
	MaxAttempts int

	// InitialBackoff is the wait before the first retry. Default: 1s
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries. Default: 30s
	MaxBackoff time.Duration

	// BackoffFactor multiplies the backoff after each attempt. Default: 2.0
	BackoffFactor float64

	// JitterFactor is the maximum jitter as a fraction of the backoff (0-1).
	// Prevents thundering herd. Default: 0.2
	JitterFactor float64
}

// DefaultConfig returns sensible defaults for retry behavior.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
		JitterFactor:   0.2,
	}
}

// ErrInvalidConfig indicates a Config field is out of range.
var ErrInvalidConfig = errors.New("invalid retry configuration")

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return ErrInvalidConfig
	}
	if c.InitialBackoff <= 0 {
		return ErrInvalidConfig
	}
	if c.MaxBackoff < c.InitialBackoff {
		return ErrInvalidConfig
	}
	if c.BackoffFactor < 1.0 {
		return ErrInvalidConfig
	}
	return nil
}

// Result contains the outcome of a retry operation.
type Result struct {
	// Attempts is the number of attempts made.
	Attempts int

	// TotalDuration is the total time spent including waits.
	TotalDuration time.Duration

	// LastError is the error from the last attempt (nil on success).
	LastError error
}

// Func is a function that can be retried. Return nil on success.
type Func func(ctx context.Context, attempt int) error

// Do executes fn with exponential backoff retry.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - config: Retry configuration.
//   - fn: The function to execute and potentially retry.
//
// Outputs:
//   - Result: Statistics about the retry operation.
//   - error: The last error if all attempts failed, nil on success.
//
// fn is retried only when it returns a retryable error as determined
// by IsRetryable. Context cancellation aborts waiting immediately.
func Do(ctx context.Context, config Config, fn Func) (Result, error) {
	start := time.Now()
	result := Result{}

	backoff := config.InitialBackoff

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.LastError = err
			result.TotalDuration = time.Since(start)
			return result, err
		}

		err := fn(ctx, attempt)
		if err == nil {
			result.TotalDuration = time.Since(start)
			return result, nil
		}
		result.LastError = err

		if !IsRetryable(err) {
			result.TotalDuration = time.Since(start)
			return result, err
		}

		// No wait after the last attempt.
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			result.LastError = ctx.Err()
			result.TotalDuration = time.Since(start)
			return result, ctx.Err()
		case <-time.After(withJitter(backoff, config.JitterFactor)):
		}

		backoff = nextBackoff(backoff, config.BackoffFactor, config.MaxBackoff)
	}

	result.TotalDuration = time.Since(start)
	return result, result.LastError
}

// transientError marks an error as retryable regardless of its type.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// permanentError marks an error as non-retryable regardless of its type.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Transient wraps err so IsRetryable reports true.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Permanent wraps err so IsRetryable reports false.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable reports whether err should trigger another attempt.
//
// Explicit Transient/Permanent markers win. Otherwise network timeouts,
// connection resets/refusals, and truncated reads are considered
// transient; everything else, including context cancellation, is not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}
	var trans *transientError
	if errors.As(err, &trans) {
		return true
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}

	return false
}

// withJitter spreads the backoff over [base*(1-jitter), base*(1+jitter)].
func withJitter(base time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return base
	}
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(base) * (1.0 + jitter))
}

func nextBackoff(current time.Duration, factor float64, max time.Duration) time.Duration {
	next := time.Duration(float64(current) * factor)
	if next > max {
		return max
	}
	return next
}
