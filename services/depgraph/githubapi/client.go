// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package githubapi is the rate-limited, cached GitHub content client
// the analyzer reads repositories through.
//
// Every request passes one shared throttle (two concurrent, spaced
// dispatches), carries a per-request deadline, and is retried on
// transient transport failures. Responses are cached per kind with
// independent TTLs, so repeated analyses of the same repositories stay
// cheap and polite.
package githubapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/apexgraph/pkg/retry"
	"github.com/AleutianAI/apexgraph/pkg/throttle"
	"github.com/AleutianAI/apexgraph/services/depgraph/cache"
	"github.com/AleutianAI/apexgraph/services/depgraph/telemetry"
	"github.com/AleutianAI/apexgraph/services/depgraph/token"
)

const (
	// DefaultBaseURL is the public GitHub REST API endpoint.
	DefaultBaseURL = "https://api.github.com"

	// DefaultRequestTimeout bounds a single request, not the whole
	// retried operation.
	DefaultRequestTimeout = 20 * time.Second

	// DefaultRateLimitDelay is the fixed wait before the single 403
	// retry.
	DefaultRateLimitDelay = 2 * time.Second

	// DefaultContentsTTL caches directory listings and trees.
	DefaultContentsTTL = 10 * time.Minute

	// DefaultFileTTL caches file bodies, the heaviest responses.
	DefaultFileTTL = 30 * time.Minute

	// DefaultSearchTTL caches code search results.
	DefaultSearchTTL = 10 * time.Minute

	apiVersion       = "2022-11-28"
	acceptJSON       = "application/vnd.github+json"
	acceptRaw        = "application/vnd.github.raw+json"
	maxResponseBytes = 10 << 20
)

// HTTPClient is the transport seam. *http.Client satisfies it; tests
// inject stubs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures a Client. Zero fields take the defaults above.
type Config struct {
	BaseURL string

	// HTTP is the transport. Defaults to an *http.Client without its
	// own timeout; deadlines come from request contexts.
	HTTP HTTPClient

	// Tokens supplies the bearer token per request. Required.
	Tokens token.Provider

	// Gate is the shared request throttle. Defaults to the package
	// default (2 concurrent, 500ms spacing).
	Gate *throttle.Gate

	Logger *slog.Logger

	RequestTimeout time.Duration
	RateLimitDelay time.Duration
	Retry          retry.Config

	ContentsTTL time.Duration
	FileTTL     time.Duration
	SearchTTL   time.Duration
}

// Client reads repository trees, directory listings, file contents, and
// code search results from the GitHub REST API.
//
// # Thread Safety
//
// Client is safe for concurrent use. Concurrent identical lookups
// collapse into one upstream request.
type Client struct {
	baseURL string
	http    HTTPClient
	tokens  token.Provider
	gate    *throttle.Gate
	log     *slog.Logger

	timeout        time.Duration
	rateLimitDelay time.Duration
	retry          retry.Config

	trees    *cache.Expiring[[]TreeEntry]
	contents *cache.Expiring[[]ContentEntry]
	files    *cache.Expiring[string]
	search   *cache.Expiring[[]SearchHit]
}

// NewClient builds a Client from cfg.
//
// # Inputs
//
//   - cfg: Configuration. cfg.Tokens is required; everything else
//     defaults.
//
// # Outputs
//
//   - *Client: Ready to use.
//   - error: Non-nil when cfg.Tokens is nil.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("githubapi: %w", token.ErrNoToken)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{}
	}
	if cfg.Gate == nil {
		cfg.Gate = throttle.NewGate(throttle.DefaultConfig())
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = DefaultRateLimitDelay
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	if cfg.ContentsTTL <= 0 {
		cfg.ContentsTTL = DefaultContentsTTL
	}
	if cfg.FileTTL <= 0 {
		cfg.FileTTL = DefaultFileTTL
	}
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = DefaultSearchTTL
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		http:           cfg.HTTP,
		tokens:         cfg.Tokens,
		gate:           cfg.Gate,
		log:            cfg.Logger,
		timeout:        cfg.RequestTimeout,
		rateLimitDelay: cfg.RateLimitDelay,
		retry:          cfg.Retry,
		trees:          cache.NewExpiring[[]TreeEntry](cfg.ContentsTTL),
		contents:       cache.NewExpiring[[]ContentEntry](cfg.ContentsTTL),
		files:          cache.NewExpiring[string](cfg.FileTTL),
		search:         cache.NewExpiring[[]SearchHit](cfg.SearchTTL),
	}, nil
}

// ListTree returns the full recursive file tree of repo ("owner/name")
// at HEAD.
func (c *Client) ListTree(ctx context.Context, repo string) ([]TreeEntry, error) {
	fetched := false
	entries, err := c.trees.GetOrFetch(ctx, repo, func(ctx context.Context) ([]TreeEntry, error) {
		fetched = true
		u := fmt.Sprintf("%s/repos/%s/git/trees/HEAD?recursive=1", c.baseURL, repo)
		body, err := c.fetch(ctx, "tree", u, acceptJSON)
		if err != nil {
			return nil, err
		}
		var tr treeResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return nil, fmt.Errorf("githubapi: decode tree for %s: %w", repo, err)
		}
		if tr.Truncated {
			c.log.Warn("github tree truncated", "repo", repo, "entries", len(tr.Tree))
		}
		return tr.Tree, nil
	})
	if err == nil {
		telemetry.RecordCacheEvent("trees", !fetched)
	}
	return entries, err
}

// GetContents returns the contents listing at path in repo. A directory
// yields one entry per child; a file yields a single entry carrying its
// download URL.
func (c *Client) GetContents(ctx context.Context, repo, path string) ([]ContentEntry, error) {
	key := repo + "\x00" + path
	fetched := false
	entries, err := c.contents.GetOrFetch(ctx, key, func(ctx context.Context) ([]ContentEntry, error) {
		fetched = true
		u := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, repo, escapePath(path))
		body, err := c.fetch(ctx, "contents", u, acceptJSON)
		if err != nil {
			return nil, err
		}
		return decodeContents(repo, path, body)
	})
	if err == nil {
		telemetry.RecordCacheEvent("contents", !fetched)
	}
	return entries, err
}

// GetFileContent fetches the raw body behind a download URL, as handed
// out by GetContents or the search API.
func (c *Client) GetFileContent(ctx context.Context, downloadURL string) (string, error) {
	fetched := false
	content, err := c.files.GetOrFetch(ctx, downloadURL, func(ctx context.Context) (string, error) {
		fetched = true
		body, err := c.fetch(ctx, "file", downloadURL, acceptRaw)
		if err != nil {
			return "", err
		}
		return string(body), nil
	})
	if err == nil {
		telemetry.RecordCacheEvent("files", !fetched)
	}
	return content, err
}

// FetchFile fetches the raw content of path in repo through the
// contents endpoint, skipping the listing round trip. The traversal's
// conventional-path probing goes through here; a missing path surfaces
// ErrNotFound.
func (c *Client) FetchFile(ctx context.Context, repo, path string) (string, error) {
	key := repo + "\x00" + path
	fetched := false
	content, err := c.files.GetOrFetch(ctx, key, func(ctx context.Context) (string, error) {
		fetched = true
		u := fmt.Sprintf("%s/repos/%s/contents/%s", c.baseURL, repo, escapePath(path))
		body, err := c.fetch(ctx, "file", u, acceptRaw)
		if err != nil {
			return "", err
		}
		return string(body), nil
	})
	if err == nil {
		telemetry.RecordCacheEvent("files", !fetched)
	}
	return content, err
}

// SearchCode runs a code search query and returns the hits, flattened
// to name, path, and repository.
func (c *Client) SearchCode(ctx context.Context, query string) ([]SearchHit, error) {
	fetched := false
	hits, err := c.search.GetOrFetch(ctx, query, func(ctx context.Context) ([]SearchHit, error) {
		fetched = true
		u := fmt.Sprintf("%s/search/code?q=%s&per_page=30", c.baseURL, url.QueryEscape(query))
		body, err := c.fetch(ctx, "search", u, acceptJSON)
		if err != nil {
			return nil, err
		}
		var sr searchResponse
		if err := json.Unmarshal(body, &sr); err != nil {
			return nil, fmt.Errorf("githubapi: decode search response: %w", err)
		}
		out := make([]SearchHit, 0, len(sr.Items))
		for _, it := range sr.Items {
			out = append(out, SearchHit{
				Name:       it.Name,
				Path:       it.Path,
				HTMLURL:    it.HTMLURL,
				Repository: it.Repository.FullName,
			})
		}
		return out, nil
	})
	if err == nil {
		telemetry.RecordCacheEvent("search", !fetched)
	}
	return hits, err
}

// CacheStats reports hit/miss counters per cache kind, for metrics and
// tests.
func (c *Client) CacheStats() map[string]CacheStats {
	out := make(map[string]CacheStats, 4)
	for kind, stats := range map[string]interface{ Stats() (int64, int64) }{
		"trees":    c.trees,
		"contents": c.contents,
		"files":    c.files,
		"search":   c.search,
	} {
		h, m := stats.Stats()
		out[kind] = CacheStats{Hits: h, Misses: m}
	}
	return out
}

// CacheStats is one cache's hit/miss counters.
type CacheStats struct {
	Hits   int64
	Misses int64
}

// fetch is get plus per-operation request metrics.
func (c *Client) fetch(ctx context.Context, op, u, accept string) ([]byte, error) {
	body, err := c.get(ctx, u, accept)
	telemetry.RecordGitHubRequest(op, outcome(err))
	return body, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrExhausted):
		return "exhausted"
	default:
		return "error"
	}
}

// get performs one logical GET: throttle, deadline, auth, retry. A 403
// rate limit gets exactly one extra pass after a fixed delay; transient
// transport errors are retried inside each pass.
func (c *Client) get(ctx context.Context, u, accept string) ([]byte, error) {
	body, err := c.getOnce(ctx, u, accept)
	if err == nil || !errors.Is(err, ErrRateLimited) {
		return body, err
	}

	c.log.Warn("github rate limited, waiting once", "url", u, "delay", c.rateLimitDelay)
	select {
	case <-time.After(c.rateLimitDelay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return c.getOnce(ctx, u, accept)
}

// getOnce is one retry.Do pass over attempt.
func (c *Client) getOnce(ctx context.Context, u, accept string) ([]byte, error) {
	var body []byte
	result, err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) error {
		b, err := c.attempt(ctx, u, accept)
		if err != nil {
			c.log.Debug("github request failed", "url", u, "attempt", attempt, "error", err)
			return err
		}
		body = b
		return nil
	})
	if err != nil {
		if result.Attempts >= c.retry.MaxAttempts && retry.IsRetryable(err) {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrExhausted, result.Attempts, err)
		}
		return nil, err
	}
	return body, nil
}

// attempt executes a single HTTP request under the throttle.
func (c *Client) attempt(ctx context.Context, u, accept string) ([]byte, error) {
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.gate.Release()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body []byte
	err := c.tokens.WithToken(func(tok string) error {
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Accept", accept)
		req.Header.Set("X-GitHub-Api-Version", apiVersion)

		resp, err := c.http.Do(req)
		if err != nil {
			// Classified by retry.IsRetryable: timeouts and resets
			// retry, everything else stops.
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusUnauthorized:
			return retry.Permanent(fmt.Errorf("%w: status 401 for %s", ErrAuth, u))
		case resp.StatusCode == http.StatusForbidden:
			return retry.Permanent(fmt.Errorf("%w: status 403 for %s", ErrRateLimited, u))
		case resp.StatusCode == http.StatusNotFound:
			return retry.Permanent(fmt.Errorf("%w: %s", ErrNotFound, u))
		case resp.StatusCode >= 500:
			return retry.Transient(fmt.Errorf("githubapi: status %d for %s", resp.StatusCode, u))
		default:
			return retry.Permanent(fmt.Errorf("githubapi: unexpected status %d for %s", resp.StatusCode, u))
		}

		body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("githubapi: read response for %s: %w", u, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, token.ErrNoToken) {
			return nil, retry.Permanent(fmt.Errorf("%w: %v", ErrAuth, err))
		}
		return nil, err
	}
	return body, nil
}

// decodeContents handles the contents API's dual shape: array for a
// directory, single object for a file.
func decodeContents(repo, path string, body []byte) ([]ContentEntry, error) {
	trimmed := strings.TrimLeft(string(body), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		var entries []ContentEntry
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("githubapi: decode contents of %s/%s: %w", repo, path, err)
		}
		return entries, nil
	}
	var single ContentEntry
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("githubapi: decode contents of %s/%s: %w", repo, path, err)
	}
	return []ContentEntry{single}, nil
}

// escapePath escapes each path segment while keeping separators.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
