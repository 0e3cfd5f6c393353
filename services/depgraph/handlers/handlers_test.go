// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apexgraph/services/depgraph/builder"
	"github.com/AleutianAI/apexgraph/services/depgraph/datatypes"
	"github.com/AleutianAI/apexgraph/services/depgraph/githubapi"
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
	"github.com/AleutianAI/apexgraph/services/depgraph/insight"
)

type stubBuilder struct {
	lastOpts builder.Options
	result   *graph.Result
	err      error
}

func (s *stubBuilder) Build(_ context.Context, opts builder.Options) (*graph.Result, error) {
	s.lastOpts = opts
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubTree struct {
	entries []githubapi.TreeEntry
	err     error
}

func (s *stubTree) ListTree(context.Context, string) ([]githubapi.TreeEntry, error) {
	return s.entries, s.err
}

func fixtureResult() *graph.Result {
	return &graph.Result{
		Nodes: []*graph.Node{
			{ID: "acme/crm:classes/A.cls", Name: "A", Repo: "acme/crm", Type: graph.NodeTypeApex},
			{ID: "acme/crm:classes/B.cls", Name: "B", Repo: "acme/crm", Type: graph.NodeTypeApex},
		},
		Links: []graph.Link{
			{
				Source:       "acme/crm:classes/A.cls",
				Target:       "acme/crm:classes/B.cls",
				Type:         graph.LinkMethodCall,
				Strength:     7,
				SourceMethod: "run",
				TargetMethod: "help",
			},
		},
		Metadata: graph.Metadata{
			AnalysisID: "test-run",
			TargetRepo: "acme/crm",
			TargetFile: "classes/A.cls",
			NodeCount:  2,
			LinkCount:  1,
		},
	}
}

func analyzeRequest(t *testing.T, h gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/analyze", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func noInsights(_ context.Context, _ *graph.Result, _ string) *insight.Insights {
	return &insight.Insights{ComplexityScore: 7}
}

func TestAnalyze_Success(t *testing.T) {
	b := &stubBuilder{result: fixtureResult()}
	body := `{
		"target_repo": "acme/crm",
		"target_file": "classes/A.cls",
		"repositories": ["acme/billing"],
		"max_depth": 3,
		"include_content": true
	}`
	w := analyzeRequest(t, Analyze(b, noInsights), body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "acme/crm", b.lastOpts.TargetRepo)
	assert.Equal(t, "classes/A.cls", b.lastOpts.TargetFile)
	assert.Equal(t, []string{"acme/billing"}, b.lastOpts.Repositories)
	assert.Equal(t, 3, b.lastOpts.MaxDepth)
	assert.True(t, b.lastOpts.IncludeContent)

	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Graph.Metadata.NodeCount)
	require.Len(t, resp.Graph.Links, 1)
	assert.Equal(t, "run", resp.Graph.Links[0].SourceMethod)
	require.NotNil(t, resp.Insights)
	assert.Equal(t, 7, resp.Insights.ComplexityScore)
}

func TestAnalyze_MethodLevelOff(t *testing.T) {
	b := &stubBuilder{result: fixtureResult()}
	body := `{
		"target_repo": "acme/crm",
		"target_file": "classes/A.cls",
		"include_method_level": false
	}`
	w := analyzeRequest(t, Analyze(b, noInsights), body)

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.AnalyzeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Graph.Links, 1)
	assert.Empty(t, resp.Graph.Links[0].SourceMethod)
	assert.Empty(t, resp.Graph.Links[0].TargetMethod)
}

func TestAnalyze_BindingErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing target repo", `{"target_file": "classes/A.cls"}`},
		{"missing target file", `{"target_repo": "acme/crm"}`},
		{"depth out of range", `{"target_repo": "acme/crm", "target_file": "a.cls", "max_depth": 99}`},
		{"malformed json", `{"target_repo":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &stubBuilder{result: fixtureResult()}
			w := analyzeRequest(t, Analyze(b, noInsights), tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAnalyze_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"target not found", githubapi.ErrNotFound, http.StatusNotFound},
		{"auth failure", githubapi.ErrAuth, http.StatusBadGateway},
		{"rate limited", githubapi.ErrRateLimited, http.StatusBadGateway},
		{"retries exhausted", githubapi.ErrExhausted, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	body := `{"target_repo": "acme/crm", "target_file": "classes/A.cls"}`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &stubBuilder{err: tt.err}
			w := analyzeRequest(t, Analyze(b, noInsights), body)
			assert.Equal(t, tt.want, w.Code)
			var resp datatypes.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAnalyze_WrappedError(t *testing.T) {
	b := &stubBuilder{err: fmt.Errorf("fetch classes/A.cls: %w", githubapi.ErrNotFound)}
	body := `{"target_repo": "acme/crm", "target_file": "classes/A.cls"}`
	w := analyzeRequest(t, Analyze(b, noInsights), body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalyze_SelectedModel(t *testing.T) {
	var gotModel string
	ins := func(_ context.Context, _ *graph.Result, model string) *insight.Insights {
		gotModel = model
		return &insight.Insights{}
	}
	b := &stubBuilder{result: fixtureResult()}
	body := `{"target_repo": "acme/crm", "target_file": "classes/A.cls", "selected_model": "gpt-4o"}`
	w := analyzeRequest(t, Analyze(b, ins), body)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gpt-4o", gotModel)
}

func filesRequest(t *testing.T, src TreeLister, query string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/repos/:owner/:repo/files", ListFiles(src))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/repos/acme/crm/files"+query, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestListFiles_FiltersToSalesforceSources(t *testing.T) {
	src := &stubTree{entries: []githubapi.TreeEntry{
		{Path: "force-app/main/default/classes/Foo.cls", Type: "blob", Size: 120},
		{Path: "force-app/main/default/classes", Type: "tree"},
		{Path: "force-app/main/default/triggers/Bar.trigger", Type: "blob", Size: 40},
		{Path: "force-app/main/default/lwc/widget/widget.js", Type: "blob", Size: 80},
		{Path: "docs/README.md", Type: "blob", Size: 10},
	}}
	w := filesRequest(t, src, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp datatypes.FileListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "acme/crm", resp.Repository)
	assert.Equal(t, 3, resp.Count)

	paths := make([]string, 0, len(resp.Files))
	for _, f := range resp.Files {
		paths = append(paths, f.Path)
	}
	assert.Contains(t, paths, "force-app/main/default/classes/Foo.cls")
	assert.Contains(t, paths, "force-app/main/default/triggers/Bar.trigger")
	assert.Contains(t, paths, "force-app/main/default/lwc/widget/widget.js")
	assert.NotContains(t, paths, "docs/README.md")
}

func TestListFiles_GlobFilters(t *testing.T) {
	src := &stubTree{entries: []githubapi.TreeEntry{
		{Path: "force-app/main/default/classes/Foo.cls", Type: "blob"},
		{Path: "force-app/main/default/triggers/Bar.trigger", Type: "blob"},
	}}

	t.Run("include narrows to classes", func(t *testing.T) {
		w := filesRequest(t, src, "?include=**/classes/*")
		require.Equal(t, http.StatusOK, w.Code)
		var resp datatypes.FileListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "Foo", resp.Files[0].Name)
	})

	t.Run("exclude removes triggers", func(t *testing.T) {
		w := filesRequest(t, src, "?exclude=**/*.trigger")
		require.Equal(t, http.StatusOK, w.Code)
		var resp datatypes.FileListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, "Foo", resp.Files[0].Name)
	})

	t.Run("bad pattern rejected", func(t *testing.T) {
		w := filesRequest(t, src, "?include=%5Babc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListFiles_RepoNotFound(t *testing.T) {
	src := &stubTree{err: githubapi.ErrNotFound}
	w := filesRequest(t, src, "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "repository not found", resp.Error)
}

func TestHealthAndReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", HealthCheck)
	router.GET("/ready", ReadyCheck(func() error { return nil }))
	router.GET("/ready-broken", ReadyCheck(func() error { return errors.New("no token") }))

	for path, want := range map[string]int{
		"/health":       http.StatusOK,
		"/ready":        http.StatusOK,
		"/ready-broken": http.StatusServiceUnavailable,
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, w.Code, path)
	}
}
