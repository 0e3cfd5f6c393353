// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package token provides bearer-token custody for outbound API clients.
//
// The GitHub Enterprise token authorizes read access to every configured
// repository, so it is held in an mlocked memguard enclave rather than a
// plain string: it cannot be swapped to disk and is wiped on process
// interrupt. Tokens are opened per request and the plaintext copy is
// destroyed as soon as the Authorization header is built.
package token

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrNoToken indicates no token has been configured.
var ErrNoToken = errors.New("no token configured")

// Provider yields a bearer token for outbound requests.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// WithToken calls fn with the plaintext token. The plaintext is only
	// valid for the duration of the call; fn must not retain it.
	WithToken(fn func(token string) error) error
}

var initOnce sync.Once

// initGuard performs one-time memguard setup: interrupt handling wipes
// all enclaves before exit.
func initGuard() {
	initOnce.Do(func() {
		memguard.CatchInterrupt()
	})
}

// Static holds a fixed token in an mlocked enclave.
type Static struct {
	enclave *memguard.Enclave
}

// NewStatic seals the given token. The caller's copy should be discarded
// afterwards; this package keeps the only live reference.
func NewStatic(tok string) (*Static, error) {
	if tok == "" {
		return nil, ErrNoToken
	}
	initGuard()
	return &Static{enclave: memguard.NewEnclave([]byte(tok))}, nil
}

// FromEnv seals a token read from the named environment variable.
func FromEnv(name string) (*Static, error) {
	return NewStatic(strings.TrimSpace(os.Getenv(name)))
}

// FromFile seals a token read from path (docker/podman secret mounts).
func FromFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewStatic(strings.TrimSpace(string(data)))
}

// WithToken opens the enclave, hands the plaintext to fn, and destroys
// the unsealed buffer when fn returns. The string is a zero-copy view
// of mlocked memory and is invalid after fn returns; callers that must
// retain it use strings.Clone, accepting the heap copy.
func (s *Static) WithToken(fn func(token string) error) error {
	if s == nil || s.enclave == nil {
		return ErrNoToken
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return err
	}
	defer buf.Destroy()
	return fn(buf.String())
}

var _ Provider = (*Static)(nil)

// FuncProvider adapts a plain function to Provider. Intended for tests
// and for callers that source tokens from an external session store.
type FuncProvider func() (string, error)

// WithToken fetches the token and passes it to fn.
func (p FuncProvider) WithToken(fn func(token string) error) error {
	tok, err := p()
	if err != nil {
		return err
	}
	if tok == "" {
		return ErrNoToken
	}
	return fn(tok)
}

var _ Provider = (FuncProvider)(nil)
