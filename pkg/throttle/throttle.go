// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package throttle provides a reusable request gate combining a token
// bucket with a concurrency limit.
//
// Upstream APIs with secondary rate limits (GitHub's search and contents
// endpoints in particular) need both a minimum spacing between dispatches
// and a cap on in-flight requests. Gate enforces both: Acquire blocks
// until a concurrency slot and a rate token are available, Release frees
// the slot.
//
//	gate := throttle.NewGate(throttle.Config{
//	    MaxConcurrent: 2,
//	    MinInterval:   500 * time.Millisecond,
//	})
//	if err := gate.Acquire(ctx); err != nil { return err }
//	defer gate.Release()
package throttle

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// Config configures a Gate.
type Config struct {
	// MaxConcurrent is the maximum number of in-flight holders.
	// Default: 2
	MaxConcurrent int

	// MinInterval is the minimum spacing between successful Acquires.
	// Default: 500ms
	MinInterval time.Duration

	// Burst is the token bucket burst size. Default: 1, which makes
	// MinInterval a hard floor between dispatches.
	Burst int
}

// DefaultConfig returns the defaults used by the GitHub client.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 2,
		MinInterval:   500 * time.Millisecond,
		Burst:         1,
	}
}

// ErrInvalidConfig indicates a Config field is out of range.
var ErrInvalidConfig = errors.New("invalid throttle configuration")

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxConcurrent < 1 {
		return ErrInvalidConfig
	}
	if c.MinInterval < 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Gate is a combined token-bucket and concurrency limiter.
//
// Gate is safe for concurrent use.
type Gate struct {
	limiter *rate.Limiter
	slots   chan struct{}
}

// NewGate creates a Gate. Zero-valued config fields fall back to defaults.
func NewGate(config Config) *Gate {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	limit := rate.Inf
	if config.MinInterval > 0 {
		limit = rate.Every(config.MinInterval)
	}

	return &Gate{
		limiter: rate.NewLimiter(limit, config.Burst),
		slots:   make(chan struct{}, config.MaxConcurrent),
	}
}

// Acquire blocks until a concurrency slot and a rate token are available,
// or until ctx is done. On success the caller must call Release exactly
// once when finished.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	// Token wait happens while holding the slot so spacing applies to
	// dispatch order, not just admission.
	if err := g.limiter.Wait(ctx); err != nil {
		<-g.slots
		return err
	}
	return nil
}

// Release frees a slot acquired by Acquire.
func (g *Gate) Release() {
	select {
	case <-g.slots:
	default:
		// Release without Acquire is a programming error; keep it
		// non-fatal so a double release cannot deadlock callers.
	}
}

// InFlight returns the number of currently held slots.
func (g *Gate) InFlight() int {
	return len(g.slots)
}
