// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package builder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/apexgraph/services/depgraph/githubapi"
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

// stubSource is an in-memory ContentSource. Files are keyed
// "repo\x00path"; search hits are matched by query substring.
type stubSource struct {
	mu         sync.Mutex
	files      map[string]string
	search     map[string][]githubapi.SearchHit
	searchErr  error
	fetchErr   error
	fetchCalls int
}

func newStubSource() *stubSource {
	return &stubSource{
		files:  make(map[string]string),
		search: make(map[string][]githubapi.SearchHit),
	}
}

func (s *stubSource) add(repo, path, content string) {
	s.files[repo+"\x00"+path] = content
}

func (s *stubSource) FetchFile(_ context.Context, repo, path string) (string, error) {
	s.mu.Lock()
	s.fetchCalls++
	s.mu.Unlock()
	if s.fetchErr != nil {
		return "", s.fetchErr
	}
	content, ok := s.files[repo+"\x00"+path]
	if !ok {
		return "", fmt.Errorf("%w: %s:%s", githubapi.ErrNotFound, repo, path)
	}
	return content, nil
}

func (s *stubSource) ListTree(_ context.Context, repo string) ([]githubapi.TreeEntry, error) {
	var out []githubapi.TreeEntry
	for key := range s.files {
		r, p, _ := strings.Cut(key, "\x00")
		if r == repo {
			out = append(out, githubapi.TreeEntry{Path: p, Type: "blob"})
		}
	}
	return out, nil
}

func (s *stubSource) SearchCode(_ context.Context, query string) ([]githubapi.SearchHit, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	for frag, hits := range s.search {
		if strings.Contains(query, frag) {
			return hits, nil
		}
	}
	return nil, nil
}

const (
	crmRepo     = "acme/crm"
	billingRepo = "acme/billing"

	triggerPath = "force-app/main/default/triggers/MyTrigger.trigger"
	handlerPath = "force-app/main/default/classes/MyHandler.cls"
	servicePath = "force-app/main/default/classes/OtherService.cls"
)

// fixtureSource wires a two-repo scenario: a trigger calling a handler
// which calls a service, plus a same-named service in the second repo
// that references the trigger.
func fixtureSource() *stubSource {
	src := newStubSource()
	src.add(crmRepo, triggerPath,
		"trigger MyTrigger on Account (before insert) {\n"+
			"  MyHandler.run(Trigger.new);\n"+
			"}\n")
	src.add(crmRepo, handlerPath,
		"public class MyHandler {\n"+
			"  public static void run(List<Account> records) {\n"+
			"    OtherService.help();\n"+
			"  }\n"+
			"}\n")
	src.add(crmRepo, servicePath,
		"public class OtherService {\n"+
			"  public static void help() {}\n"+
			"}\n")
	src.add(billingRepo, servicePath,
		"public class OtherService {\n"+
			"  Boolean active = MyTrigger.isActive;\n"+
			"}\n")
	return src
}

func buildFixture(t *testing.T, opts Options) *graph.Result {
	t.Helper()
	b := New(fixtureSource(), nil)
	res, err := b.Build(context.Background(), opts)
	require.NoError(t, err)
	return res
}

func findLink(res *graph.Result, source, target string, typ graph.LinkType) (graph.Link, bool) {
	for _, l := range res.Links {
		if l.Source == source && l.Target == target && l.Type == typ {
			return l, true
		}
	}
	return graph.Link{}, false
}

func TestBuild_EndToEnd(t *testing.T) {
	res := buildFixture(t, Options{
		Repositories: []string{crmRepo, billingRepo},
		TargetRepo:   crmRepo,
		TargetFile:   triggerPath,
	})

	triggerID := graph.NodeID(crmRepo, triggerPath)
	handlerID := graph.NodeID(crmRepo, handlerPath)
	crmServiceID := graph.NodeID(crmRepo, servicePath)
	billingServiceID := graph.NodeID(billingRepo, servicePath)

	ids := make(map[string]*graph.Node)
	for _, n := range res.Nodes {
		ids[n.ID] = n
	}
	require.Contains(t, ids, triggerID)
	require.Contains(t, ids, handlerID)
	require.Contains(t, ids, crmServiceID)
	require.Contains(t, ids, billingServiceID)

	call, ok := findLink(res, triggerID, handlerID, graph.LinkMethodCall)
	require.True(t, ok, "trigger must call handler")
	assert.Equal(t, "run", call.TargetMethod)
	assert.Equal(t, 7, call.Strength)
	assert.Equal(t, 2, call.Line)

	_, ok = findLink(res, handlerID, crmServiceID, graph.LinkMethodCall)
	assert.True(t, ok, "handler must call service at depth 2")

	// The trigger's SObject and context variables resolve to
	// placeholders, never to files.
	acct, ok := ids["unresolved:Account"]
	require.True(t, ok)
	assert.True(t, acct.Placeholder)
	_, ok = findLink(res, triggerID, "unresolved:Trigger", graph.LinkTriggerContext)
	assert.True(t, ok)

	// Reverse scan: the billing service references the trigger.
	rev, ok := findLink(res, billingServiceID, triggerID, graph.LinkReferences)
	require.True(t, ok, "dependents scan must find the billing reference")
	assert.True(t, rev.CrossRepo)

	assert.Equal(t, 1, res.Metadata.CrossRepoLinkCount)
	require.Len(t, res.Metadata.SharedComponents, 1)
	assert.Equal(t, "OtherService", res.Metadata.SharedComponents[0].Name)
	assert.Equal(t, []string{billingRepo, crmRepo}, res.Metadata.SharedComponents[0].Repos)

	assert.NotEmpty(t, res.Metadata.AnalysisID)
	assert.Equal(t, 2, res.Metadata.MaxDepth)
	assert.Equal(t, crmRepo, res.Metadata.TargetRepo)
	assert.Equal(t, triggerPath, res.Metadata.TargetFile)
}

func TestBuild_MaxDepthBounds(t *testing.T) {
	res := buildFixture(t, Options{
		Repositories:   []string{crmRepo},
		TargetRepo:     crmRepo,
		TargetFile:     triggerPath,
		MaxDepth:       1,
		SkipDependents: true,
	})

	handlerID := graph.NodeID(crmRepo, handlerPath)
	crmServiceID := graph.NodeID(crmRepo, servicePath)

	found := map[string]bool{}
	for _, n := range res.Nodes {
		found[n.ID] = true
	}
	assert.True(t, found[handlerID], "depth 1 reaches the handler")
	assert.False(t, found[crmServiceID], "depth 1 must not reach the service")
	assert.Equal(t, 1, res.Metadata.MaxDepth)
}

func TestBuild_TargetMissing(t *testing.T) {
	b := New(newStubSource(), nil)
	_, err := b.Build(context.Background(), Options{
		TargetRepo: crmRepo,
		TargetFile: triggerPath,
	})
	assert.ErrorIs(t, err, githubapi.ErrNotFound)
}

func TestBuild_BadOptions(t *testing.T) {
	b := New(newStubSource(), nil)
	_, err := b.Build(context.Background(), Options{TargetRepo: crmRepo})
	assert.ErrorIs(t, err, ErrBadOptions)
}

func TestBuild_AuthFailureAborts(t *testing.T) {
	src := fixtureSource()
	src.fetchErr = fmt.Errorf("wrapped: %w", githubapi.ErrAuth)
	b := New(src, nil)

	_, err := b.Build(context.Background(), Options{
		TargetRepo: crmRepo,
		TargetFile: triggerPath,
	})
	assert.ErrorIs(t, err, githubapi.ErrAuth)
}

func TestBuild_SearchFailureIsIsolated(t *testing.T) {
	src := fixtureSource()
	src.searchErr = errors.New("search unavailable")
	b := New(src, nil)

	res, err := b.Build(context.Background(), Options{
		Repositories:   []string{crmRepo},
		TargetRepo:     crmRepo,
		TargetFile:     triggerPath,
		SkipDependents: true,
	})
	require.NoError(t, err, "search failures must not abort the run")
	assert.Greater(t, res.Metadata.NodeCount, 1)
}

func TestBuild_SearchDiscovery(t *testing.T) {
	src := fixtureSource()
	testPath := "force-app/main/default/classes/MyTriggerTest.cls"
	src.search["@isTest"] = []githubapi.SearchHit{{
		Name:       "MyTriggerTest.cls",
		Path:       testPath,
		Repository: crmRepo,
		HTMLURL:    "https://example.test/MyTriggerTest.cls",
	}}
	b := New(src, nil)

	res, err := b.Build(context.Background(), Options{
		Repositories:   []string{crmRepo},
		TargetRepo:     crmRepo,
		TargetFile:     triggerPath,
		SkipDependents: true,
	})
	require.NoError(t, err)

	triggerID := graph.NodeID(crmRepo, triggerPath)
	testID := graph.NodeID(crmRepo, testPath)
	l, ok := findLink(res, triggerID, testID, graph.LinkTests)
	require.True(t, ok, "test-pattern search hit must produce a tests link")
	assert.Equal(t, graph.LinkTests.Strength(), l.Strength)
}

func TestBuild_IncludeContent(t *testing.T) {
	res := buildFixture(t, Options{
		Repositories:   []string{crmRepo},
		TargetRepo:     crmRepo,
		TargetFile:     triggerPath,
		IncludeContent: true,
		SkipDependents: true,
	})

	for _, n := range res.Nodes {
		if n.ID == graph.NodeID(crmRepo, handlerPath) {
			assert.Contains(t, n.Content, "class MyHandler")
			return
		}
	}
	t.Fatal("handler node not found")
}

func TestBuild_MetadataOnNodes(t *testing.T) {
	res := buildFixture(t, Options{
		Repositories:   []string{crmRepo},
		TargetRepo:     crmRepo,
		TargetFile:     triggerPath,
		SkipDependents: true,
	})

	for _, n := range res.Nodes {
		if n.ID == graph.NodeID(crmRepo, handlerPath) {
			assert.Equal(t, "MyHandler", n.Name)
			assert.Equal(t, graph.NodeTypeApex, n.Type)
			assert.Contains(t, n.Methods, "run")
			return
		}
	}
	t.Fatal("handler node not found")
}
