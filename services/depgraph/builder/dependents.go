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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/apexgraph/services/depgraph/catalog"
	"github.com/AleutianAI/apexgraph/services/depgraph/extract"
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

const (
	// dependentsBatchSize files are read per batch, then the scan
	// pauses, keeping sustained pressure off the content API.
	dependentsBatchSize = 10
	dependentsInFlight  = 5
	dependentsPause     = 100 * time.Millisecond
)

type repoFile struct {
	repo string
	path string
}

// scanDependents lists every Salesforce source file in every
// repository and records reverse links from files that reference the
// target. Unreadable files are skipped; unreachable repositories are
// logged and skipped.
func (b *Builder) scanDependents(ctx context.Context, run *build, target *graph.Node) error {
	var files []repoFile
	for _, repo := range run.opts.Repositories {
		tree, err := b.src.ListTree(ctx, repo)
		if err != nil {
			if isFatal(err) {
				return err
			}
			b.log.Warn("dependents scan: listing failed", "repo", repo, "error", err)
			continue
		}
		for _, e := range tree {
			if !e.IsBlob() || !catalog.IsSalesforceSource(e.Path) {
				continue
			}
			if run.visited[graph.NodeID(repo, e.Path)] {
				continue
			}
			files = append(files, repoFile{repo: repo, path: e.Path})
		}
	}
	b.log.Debug("dependents scan", "target", target.ID, "candidates", len(files))

	// Graph mutation is serialized; fetching is not.
	var mu sync.Mutex

	for start := 0; start < len(files); start += dependentsBatchSize {
		end := min(start+dependentsBatchSize, len(files))

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(dependentsInFlight)
		for _, f := range files[start:end] {
			eg.Go(func() error {
				content, err := b.src.FetchFile(egCtx, f.repo, f.path)
				if err != nil {
					if isFatal(err) {
						return err
					}
					return nil
				}
				ref, ok := extract.ClassifyReference(content, target.Name)
				if !ok {
					return nil
				}

				mu.Lock()
				defer mu.Unlock()
				n := run.g.AddNode(b.newNode(f.repo, f.path, content, run.opts.IncludeContent))
				run.g.AddLink(graph.Link{
					Source:      n.ID,
					Target:      target.ID,
					Type:        ref.Type,
					Strength:    ref.Strength,
					Line:        ref.Line,
					CodeSnippet: ref.CodeSnippet,
					Context:     ref.Context,
				})
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return err
		}

		if end < len(files) {
			select {
			case <-time.After(dependentsPause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
