// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package builder assembles dependency graphs for a target Salesforce
// file across one or more repositories.
//
// Four strategies run in order: code-search discovery against the
// pattern catalog, depth-bounded content traversal of extracted
// references, a reverse scan for dependents, and cross-repository
// flagging. Per-file failures degrade to missing nodes; only
// authentication failures and retry exhaustion abort a run.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/apexgraph/services/depgraph/catalog"
	"github.com/AleutianAI/apexgraph/services/depgraph/extract"
	"github.com/AleutianAI/apexgraph/services/depgraph/githubapi"
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

// DefaultMaxDepth bounds content traversal when the request does not
// set one.
const DefaultMaxDepth = 2

// ContentSource is the repository access the builder needs. The GitHub
// client satisfies it; tests inject stubs.
type ContentSource interface {
	ListTree(ctx context.Context, repo string) ([]githubapi.TreeEntry, error)
	FetchFile(ctx context.Context, repo, path string) (string, error)
	SearchCode(ctx context.Context, query string) ([]githubapi.SearchHit, error)
}

// Options selects what to analyze.
type Options struct {
	// Repositories are the "owner/name" slugs to resolve references
	// across. TargetRepo is added if absent.
	Repositories []string

	// TargetRepo and TargetFile identify the file under analysis.
	TargetRepo string
	TargetFile string

	// MaxDepth bounds content traversal. 0 means DefaultMaxDepth.
	MaxDepth int

	// IncludeContent keeps raw source on non-placeholder nodes.
	IncludeContent bool

	// SkipDependents disables the reverse scan, which lists and reads
	// every Salesforce file in every repository.
	SkipDependents bool
}

// ErrBadOptions indicates Options that cannot identify a target.
var ErrBadOptions = errors.New("builder: target repo and file are required")

func (o *Options) normalize() error {
	if o.TargetRepo == "" || o.TargetFile == "" {
		return ErrBadOptions
	}
	o.TargetFile = strings.TrimPrefix(o.TargetFile, "/")
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	for _, r := range o.Repositories {
		if r == o.TargetRepo {
			return nil
		}
	}
	o.Repositories = append(o.Repositories, o.TargetRepo)
	return nil
}

// Builder runs analyses against a ContentSource.
//
// # Thread Safety
//
// Builder itself is stateless and safe for concurrent Build calls; each
// call assembles its own graph.
type Builder struct {
	src ContentSource
	log *slog.Logger
}

// New creates a Builder over src.
func New(src ContentSource, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{src: src, log: logger}
}

// build is the per-run state: the graph under construction plus the
// visited set shared by traversal and the dependents scan.
type build struct {
	opts    Options
	g       *graph.Graph
	visited map[string]bool
}

// Build analyzes the target file and returns the finished graph.
//
// # Description
//
// Fetches the target, discovers related files by code search, walks
// extracted references up to MaxDepth, scans every repository for
// dependents of the target, and flags cross-repository links and
// shared components.
//
// # Inputs
//
//   - ctx: Context for cancellation; propagated to every fetch.
//   - opts: What to analyze.
//
// # Outputs
//
//   - *graph.Result: Nodes, links, and run metadata.
//   - error: ErrBadOptions, or a fatal fetch error (auth, exhaustion,
//     target not found).
func (b *Builder) Build(ctx context.Context, opts Options) (*graph.Result, error) {
	if err := (&opts).normalize(); err != nil {
		return nil, err
	}

	run := &build{opts: opts, g: graph.New(), visited: make(map[string]bool)}

	content, err := b.src.FetchFile(ctx, opts.TargetRepo, opts.TargetFile)
	if err != nil {
		return nil, fmt.Errorf("fetch target %s:%s: %w", opts.TargetRepo, opts.TargetFile, err)
	}

	target := b.newNode(opts.TargetRepo, opts.TargetFile, content, opts.IncludeContent)
	run.g.AddNode(target)
	run.visited[target.ID] = true

	b.discover(ctx, run, target)

	if err := b.traverse(ctx, run, target, content, 1); err != nil {
		return nil, err
	}

	if !opts.SkipDependents {
		if err := b.scanDependents(ctx, run, target); err != nil {
			return nil, err
		}
	}

	shared := b.crossRepo(run)

	if err := run.g.Validate(); err != nil {
		return nil, fmt.Errorf("assembled graph is inconsistent: %w", err)
	}

	res := run.g.Finalize()
	res.Metadata.AnalysisID = uuid.NewString()
	res.Metadata.Repositories = opts.Repositories
	res.Metadata.TargetRepo = opts.TargetRepo
	res.Metadata.TargetFile = opts.TargetFile
	res.Metadata.GeneratedAt = time.Now().UTC()
	res.Metadata.MaxDepth = opts.MaxDepth
	res.Metadata.SharedComponents = shared

	b.log.Info("analysis complete",
		"analysis_id", res.Metadata.AnalysisID,
		"target", target.ID,
		"nodes", res.Metadata.NodeCount,
		"links", res.Metadata.LinkCount,
		"cross_repo_links", res.Metadata.CrossRepoLinkCount)
	return &res, nil
}

// discover runs the search-first strategy: one code search per
// critical/high catalog entry per repository, seeded with the target
// name. Search failures are logged and skipped.
func (b *Builder) discover(ctx context.Context, run *build, target *graph.Node) {
	for _, repo := range run.opts.Repositories {
		for _, entry := range catalog.CriticalAndHigh() {
			query := fmt.Sprintf("repo:%s %s %s", repo, entry.SearchQuery, target.Name)
			hits, err := b.src.SearchCode(ctx, query)
			if err != nil {
				b.log.Warn("code search failed", "repo", repo, "pattern", entry.Type, "error", err)
				continue
			}
			for _, hit := range hits {
				if !catalog.IsSalesforceSource(hit.Path) {
					continue
				}
				id := graph.NodeID(hit.Repository, hit.Path)
				if id == target.ID {
					continue
				}
				run.g.AddNode(&graph.Node{
					ID:   id,
					Name: nameFromPath(hit.Path),
					Path: hit.Path,
					Repo: hit.Repository,
					Type: catalog.InferNodeType(hit.Path, ""),
					URL:  hit.HTMLURL,
				})
				if entry.Relationship != "" {
					run.g.AddLink(graph.Link{
						Source:   target.ID,
						Target:   id,
						Type:     entry.Relationship,
						Strength: entry.Relationship.Strength(),
					})
				}
			}
		}
	}
}

// traverse extracts references from content and resolves them against
// conventional paths in every repository, recursing up to MaxDepth.
func (b *Builder) traverse(ctx context.Context, run *build, node *graph.Node, content string, depth int) error {
	if depth > run.opts.MaxDepth {
		return nil
	}

	for _, cand := range extract.Extract(content, node.Type) {
		var (
			found        *graph.Node
			foundContent string
			err          error
		)
		if resolvable(cand) {
			found, foundContent, err = b.resolve(ctx, run, cand.TargetClass)
			if err != nil {
				return err
			}
		}

		var targetID string
		if found != nil {
			targetID = found.ID
		} else {
			targetID = "unresolved:" + cand.TargetClass
			run.g.AddNode(&graph.Node{
				ID:          targetID,
				Name:        cand.TargetClass,
				Type:        graph.NodeTypeOther,
				Placeholder: true,
			})
		}

		run.g.AddLink(graph.Link{
			Source:       node.ID,
			Target:       targetID,
			Type:         cand.Type,
			Strength:     cand.Strength,
			SourceMethod: cand.SourceMethod,
			TargetMethod: cand.TargetMethod,
			Line:         cand.Line,
			CodeSnippet:  cand.CodeSnippet,
			Context:      cand.Context,
		})

		if found != nil && !run.visited[found.ID] {
			run.visited[found.ID] = true
			if err := b.traverse(ctx, run, found, foundContent, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolvable reports whether a candidate's target could be a source
// file worth probing. SObjects, custom settings, and platform classes
// have no file behind them; they become placeholders directly.
func resolvable(c extract.Candidate) bool {
	switch c.Type {
	case graph.LinkSOQLQuery, graph.LinkDatabaseOperation, graph.LinkTriggerContext,
		graph.LinkSystemMethod, graph.LinkSchemaReference, graph.LinkCustomSettings:
		return false
	}
	return !extract.IsSystemClass(c.TargetClass)
}

// resolve probes the conventional paths for name across every
// repository, target repository first. A hit adds (or upgrades) the
// node; a miss everywhere returns nil.
func (b *Builder) resolve(ctx context.Context, run *build, name string) (*graph.Node, string, error) {
	for _, repo := range orderedRepos(run.opts) {
		for _, p := range catalog.ConventionalPaths(name) {
			id := graph.NodeID(repo, p)
			if n, ok := run.g.Node(id); ok && !n.Placeholder && n.Content != "" {
				return n, n.Content, nil
			}

			content, err := b.src.FetchFile(ctx, repo, p)
			if err != nil {
				if isFatal(err) {
					return nil, "", err
				}
				continue
			}
			n := b.newNode(repo, p, content, run.opts.IncludeContent)
			return run.g.AddNode(n), content, nil
		}
	}
	return nil, "", nil
}

// newNode builds a node with extracted Apex metadata.
func (b *Builder) newNode(repo, filePath, content string, keepContent bool) *graph.Node {
	n := &graph.Node{
		ID:   graph.NodeID(repo, filePath),
		Name: nameFromPath(filePath),
		Path: filePath,
		Repo: repo,
		Type: catalog.InferNodeType(filePath, content),
	}
	if n.Type == graph.NodeTypeApex || n.Type == graph.NodeTypeTest {
		meta := extract.ApexMetadata(content)
		n.Methods = meta.Methods
		n.Properties = meta.Properties
		n.Interfaces = meta.Interfaces
		n.IsAbstract = meta.IsAbstract
	}
	if keepContent {
		n.Content = content
	}
	return n
}

// orderedRepos returns the repositories with the target repository
// first, so local resolution wins over cross-repo matches.
func orderedRepos(opts Options) []string {
	out := make([]string, 0, len(opts.Repositories))
	out = append(out, opts.TargetRepo)
	for _, r := range opts.Repositories {
		if r != opts.TargetRepo {
			out = append(out, r)
		}
	}
	return out
}

// isFatal reports whether a fetch error must abort the run rather than
// degrade to a missing file.
func isFatal(err error) bool {
	return errors.Is(err, githubapi.ErrAuth) ||
		errors.Is(err, githubapi.ErrExhausted) ||
		errors.Is(err, githubapi.ErrRateLimited) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// nameFromPath strips directories and the extension:
// "src/classes/Foo.cls" -> "Foo".
func nameFromPath(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}
