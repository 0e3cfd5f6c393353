// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package githubapi

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apexgraph/pkg/retry"
	"github.com/AleutianAI/apexgraph/pkg/throttle"
	"github.com/AleutianAI/apexgraph/services/depgraph/token"
)

// stubHTTP counts calls and delegates to fn.
type stubHTTP struct {
	mu    sync.Mutex
	calls int
	fn    func(req *http.Request) (*http.Response, error)
}

func (s *stubHTTP) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.fn(req)
}

func (s *stubHTTP) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func httpResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

// testClient builds a Client with millisecond-scale throttle, retry,
// and rate-limit delays so failure paths stay fast.
func testClient(t *testing.T, stub *stubHTTP) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL: "https://api.example.test",
		HTTP:    stub,
		Tokens: token.FuncProvider(func() (string, error) {
			return "test-token", nil
		}),
		Gate: throttle.NewGate(throttle.Config{
			MaxConcurrent: 2,
			MinInterval:   time.Millisecond,
			Burst:         1,
		}),
		RequestTimeout: time.Second,
		RateLimitDelay: time.Millisecond,
		Retry: retry.Config{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
			BackoffFactor:  2.0,
			JitterFactor:   0.1,
		},
	})
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresTokens(t *testing.T) {
	_, err := NewClient(Config{})
	assert.ErrorIs(t, err, token.ErrNoToken)
}

func TestClient_RequestHeaders(t *testing.T) {
	var got *http.Request
	stub := &stubHTTP{fn: func(req *http.Request) (*http.Response, error) {
		got = req
		return httpResponse(http.StatusOK, `[]`), nil
	}}
	c := testClient(t, stub)

	_, err := c.GetContents(context.Background(), "acme/crm", "force-app/main/default/classes")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "Bearer test-token", got.Header.Get("Authorization"))
	assert.Equal(t, acceptJSON, got.Header.Get("Accept"))
	assert.Equal(t, apiVersion, got.Header.Get("X-GitHub-Api-Version"))
	assert.Equal(t, "/repos/acme/crm/contents/force-app/main/default/classes", got.URL.Path)
}

func TestClient_NotFound(t *testing.T) {
	stub := &stubHTTP{fn: func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusNotFound, `{"message":"Not Found"}`), nil
	}}
	c := testClient(t, stub)

	_, err := c.FetchFile(context.Background(), "acme/crm", "src/classes/Missing.cls")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, stub.callCount(), "404 must not retry")
}

func TestClient_AuthFailure(t *testing.T) {
	stub := &stubHTTP{fn: func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusUnauthorized, `{"message":"Bad credentials"}`), nil
	}}
	c := testClient(t, stub)

	_, err := c.ListTree(context.Background(), "acme/crm")
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, 1, stub.callCount(), "401 must not retry")
}

func TestClient_TransientRetry(t *testing.T) {
	stub := &stubHTTP{}
	stub.fn = func(*http.Request) (*http.Response, error) {
		if stub.callCount() < 3 {
			return httpResponse(http.StatusBadGateway, ``), nil
		}
		return httpResponse(http.StatusOK, `{"sha":"abc","tree":[]}`), nil
	}
	c := testClient(t, stub)

	_, err := c.ListTree(context.Background(), "acme/crm")
	require.NoError(t, err)
	assert.Equal(t, 3, stub.callCount())
}

func TestClient_RetriesExhausted(t *testing.T) {
	stub := &stubHTTP{fn: func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusInternalServerError, ``), nil
	}}
	c := testClient(t, stub)

	_, err := c.ListTree(context.Background(), "acme/crm")
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Equal(t, 3, stub.callCount())
}

func TestClient_RateLimitSingleExtraPass(t *testing.T) {
	stub := &stubHTTP{fn: func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusForbidden, `{"message":"rate limit"}`), nil
	}}
	c := testClient(t, stub)

	_, err := c.ListTree(context.Background(), "acme/crm")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 2, stub.callCount(), "403 gets exactly one extra pass")
}

func TestClient_RateLimitRecovers(t *testing.T) {
	stub := &stubHTTP{}
	stub.fn = func(*http.Request) (*http.Response, error) {
		if stub.callCount() == 1 {
			return httpResponse(http.StatusForbidden, `{"message":"rate limit"}`), nil
		}
		return httpResponse(http.StatusOK, `{"sha":"abc","tree":[]}`), nil
	}
	c := testClient(t, stub)

	_, err := c.ListTree(context.Background(), "acme/crm")
	require.NoError(t, err)
	assert.Equal(t, 2, stub.callCount())
}

func TestClient_ContentsCached(t *testing.T) {
	stub := &stubHTTP{fn: func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK,
			`[{"name":"AccountService.cls","path":"src/classes/AccountService.cls","type":"file","download_url":"https://raw.example.test/AccountService.cls"}]`), nil
	}}
	c := testClient(t, stub)
	ctx := context.Background()

	first, err := c.GetContents(ctx, "acme/crm", "src/classes")
	require.NoError(t, err)
	second, err := c.GetContents(ctx, "acme/crm", "src/classes")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, stub.callCount(), "second lookup must come from cache")
	stats := c.CacheStats()["contents"]
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestClient_ErrorsNotCached(t *testing.T) {
	stub := &stubHTTP{fn: func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusNotFound, ``), nil
	}}
	c := testClient(t, stub)
	ctx := context.Background()

	_, err := c.FetchFile(ctx, "acme/crm", "src/classes/Missing.cls")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = c.FetchFile(ctx, "acme/crm", "src/classes/Missing.cls")
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2, stub.callCount(), "failed lookups must not be cached")
}

func TestClient_GetContents_SingleFile(t *testing.T) {
	stub := &stubHTTP{fn: func(*http.Request) (*http.Response, error) {
		return httpResponse(http.StatusOK,
			`{"name":"MyHandler.cls","path":"src/classes/MyHandler.cls","type":"file","size":120,"download_url":"https://raw.example.test/MyHandler.cls"}`), nil
	}}
	c := testClient(t, stub)

	entries, err := c.GetContents(context.Background(), "acme/crm", "src/classes/MyHandler.cls")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsFile())
	assert.Equal(t, "https://raw.example.test/MyHandler.cls", entries[0].DownloadURL)
}

func TestClient_ListTree(t *testing.T) {
	stub := &stubHTTP{fn: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/repos/acme/crm/git/trees/HEAD", req.URL.Path)
		assert.Equal(t, "1", req.URL.Query().Get("recursive"))
		return httpResponse(http.StatusOK,
			`{"sha":"abc","tree":[
				{"path":"src/classes/AccountService.cls","type":"blob","size":900},
				{"path":"src/classes","type":"tree"}
			]}`), nil
	}}
	c := testClient(t, stub)

	tree, err := c.ListTree(context.Background(), "acme/crm")
	require.NoError(t, err)
	require.Len(t, tree, 2)
	assert.True(t, tree[0].IsBlob())
	assert.False(t, tree[1].IsBlob())
}

func TestClient_SearchCode(t *testing.T) {
	stub := &stubHTTP{fn: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "/search/code", req.URL.Path)
		assert.Equal(t, "repo:acme/crm extends MyHandler", req.URL.Query().Get("q"))
		return httpResponse(http.StatusOK,
			`{"total_count":1,"items":[
				{"name":"Child.cls","path":"src/classes/Child.cls",
				 "html_url":"https://example.test/Child.cls",
				 "repository":{"full_name":"acme/crm"}}
			]}`), nil
	}}
	c := testClient(t, stub)

	hits, err := c.SearchCode(context.Background(), "repo:acme/crm extends MyHandler")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "acme/crm", hits[0].Repository)
	assert.Equal(t, "src/classes/Child.cls", hits[0].Path)
}

func TestClient_GetFileContent(t *testing.T) {
	const source = "public class MyHandler {\n}\n"
	stub := &stubHTTP{fn: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, acceptRaw, req.Header.Get("Accept"))
		return httpResponse(http.StatusOK, source), nil
	}}
	c := testClient(t, stub)

	got, err := c.GetFileContent(context.Background(), "https://raw.example.test/MyHandler.cls")
	require.NoError(t, err)
	assert.Equal(t, source, got)
}
