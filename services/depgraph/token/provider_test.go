// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package token

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_WithToken(t *testing.T) {
	p, err := NewStatic("ghp_secret")
	require.NoError(t, err)

	// The callback string is a view of mlocked memory; it must only be
	// read inside the callback, or cloned.
	err = p.WithToken(func(tok string) error {
		assert.Equal(t, "ghp_secret", tok)
		return nil
	})
	require.NoError(t, err)

	// Token stays available across repeated opens.
	err = p.WithToken(func(tok string) error {
		assert.Equal(t, "ghp_secret", tok)
		return nil
	})
	require.NoError(t, err)
}

func TestStatic_WithToken_ClonedCopySurvives(t *testing.T) {
	p, err := NewStatic("ghp_secret")
	require.NoError(t, err)

	var seen string
	err = p.WithToken(func(tok string) error {
		seen = strings.Clone(tok)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", seen)
}

func TestNewStatic_EmptyToken(t *testing.T) {
	_, err := NewStatic("")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("  file-token\n"), 0600))

	p, err := FromFile(path)
	require.NoError(t, err)

	err = p.WithToken(func(tok string) error {
		assert.Equal(t, "file-token", tok)
		return nil
	})
	require.NoError(t, err)
}

func TestFromFile_Missing(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestFuncProvider(t *testing.T) {
	p := FuncProvider(func() (string, error) { return "dynamic", nil })
	err := p.WithToken(func(tok string) error {
		assert.Equal(t, "dynamic", tok)
		return nil
	})
	require.NoError(t, err)

	boom := errors.New("session expired")
	p = FuncProvider(func() (string, error) { return "", boom })
	assert.ErrorIs(t, p.WithToken(func(string) error { return nil }), boom)

	p = FuncProvider(func() (string, error) { return "", nil })
	assert.ErrorIs(t, p.WithToken(func(string) error { return nil }), ErrNoToken)
}
