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
	"sort"

	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

// crossRepo flags links whose endpoints live in different repositories
// and collects shared components: names that resolve to files in more
// than one repository.
func (b *Builder) crossRepo(run *build) []graph.SharedComponent {
	for _, l := range run.g.Links() {
		src, ok1 := run.g.Node(l.Source)
		dst, ok2 := run.g.Node(l.Target)
		if !ok1 || !ok2 || src.Placeholder || dst.Placeholder {
			continue
		}
		if src.Repo != dst.Repo {
			run.g.MarkCrossRepo(l.Source, l.Target, l.Type)
		}
	}

	byName := make(map[string]map[string]bool)
	for _, n := range run.g.Nodes() {
		if n.Placeholder || n.Name == "" || n.Repo == "" {
			continue
		}
		if byName[n.Name] == nil {
			byName[n.Name] = make(map[string]bool)
		}
		byName[n.Name][n.Repo] = true
	}

	var shared []graph.SharedComponent
	for name, repos := range byName {
		if len(repos) < 2 {
			continue
		}
		list := make([]string, 0, len(repos))
		for r := range repos {
			list = append(list, r)
		}
		sort.Strings(list)
		shared = append(shared, graph.SharedComponent{Name: name, Repos: list})
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i].Name < shared[j].Name })
	return shared
}
