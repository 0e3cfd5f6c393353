// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package retry

import (
	"context"
	"errors"
	"io"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		BackoffFactor:  2.0,
		JitterFactor:   0,
	}
}

func TestDo_SucceedsFirstAttempt(t *testing.T) {
	result, err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempts)
	assert.Nil(t, result.LastError)
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	calls := 0
	result, err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, result.Attempts)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	boom := errors.New("bad credentials")
	_, err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return Permanent(boom)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastConfig(), func(ctx context.Context, attempt int) error {
		calls++
		return Transient(errors.New("always down"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Do(ctx, fastConfig(), func(ctx context.Context, attempt int) error {
		t.Fatal("fn should not run with cancelled context")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("nope"), false},
		{"transient marker", Transient(errors.New("x")), true},
		{"permanent marker", Permanent(syscall.ECONNRESET), false},
		{"connection reset", syscall.ECONNRESET, true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"unexpected eof", io.ErrUnexpectedEOF, true},
		{"context canceled", context.Canceled, false},
		{"wrapped reset", errors.Join(errors.New("dial"), syscall.ECONNRESET), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MaxAttempts = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.MaxBackoff = time.Millisecond
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestNextBackoff_Caps(t *testing.T) {
	assert.Equal(t, 4*time.Millisecond, nextBackoff(2*time.Millisecond, 2.0, time.Second))
	assert.Equal(t, time.Second, nextBackoff(900*time.Millisecond, 2.0, time.Second))
}
