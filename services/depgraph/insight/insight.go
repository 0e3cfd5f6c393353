// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package insight derives human-facing conclusions from an assembled
// dependency graph: a complexity score, risk factors, pattern counts,
// dependency cycles, and an optional generated narrative.
//
// Insight generation never fails an analysis. When the narrative
// backend is absent or errors, the heuristic summary stands in.
package insight

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	dgraph "github.com/dominikbraun/graph"

	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
	"github.com/AleutianAI/apexgraph/services/depgraph/llm"
)

// Narrative sources.
const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
)

// couplingThreshold is the links-per-node ratio above which coupling is
// flagged as a risk.
const couplingThreshold = 3.0

// Insights is the analysis summary attached to a graph result.
type Insights struct {
	// ComplexityScore is 0-100, from node, link, cross-repo, and
	// shared-component counts.
	ComplexityScore int `json:"complexity_score"`

	// RiskFactors are short findings worth a reviewer's attention.
	RiskFactors []string `json:"risk_factors,omitempty"`

	// PatternSummary counts links by relationship kind.
	PatternSummary map[string]int `json:"pattern_summary,omitempty"`

	// Cycles lists dependency cycles as node-ID sequences.
	Cycles [][]string `json:"cycles,omitempty"`

	// Narrative is the prose summary; NarrativeSource says whether a
	// model or the heuristic produced it.
	Narrative       string `json:"narrative,omitempty"`
	NarrativeSource string `json:"narrative_source"`
}

// Generator produces Insights. The LLM client is optional.
type Generator struct {
	llm llm.LLMClient
	log *slog.Logger
}

// New creates a Generator. client may be nil, in which case narratives
// are always heuristic.
func New(client llm.LLMClient, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: client, log: logger}
}

// Generate summarizes res. It always returns insights; narrative
// failures degrade, they do not propagate.
func (g *Generator) Generate(ctx context.Context, res *graph.Result) *Insights {
	ins := &Insights{
		ComplexityScore: complexityScore(res.Metadata),
		PatternSummary:  patternSummary(res.Links),
		Cycles:          findCycles(res),
		NarrativeSource: SourceHeuristic,
	}
	ins.RiskFactors = riskFactors(res, ins.Cycles)
	ins.Narrative = g.narrative(ctx, res, ins)
	return ins
}

// complexityScore implements the weighted count heuristic, capped at
// 100.
func complexityScore(m graph.Metadata) int {
	score := 2.0*float64(m.NodeCount) +
		1.5*float64(m.LinkCount) +
		5.0*float64(m.CrossRepoLinkCount) +
		3.0*float64(len(m.SharedComponents))
	return int(math.Round(math.Min(100, score)))
}

func patternSummary(links []graph.Link) map[string]int {
	if len(links) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, l := range links {
		out[string(l.Type)]++
	}
	return out
}

func riskFactors(res *graph.Result, cycles [][]string) []string {
	var out []string
	m := res.Metadata

	if m.CrossRepoLinkCount > 0 {
		out = append(out, fmt.Sprintf(
			"%d cross-repository dependencies: changes here require coordinated deploys",
			m.CrossRepoLinkCount))
	}
	if m.NodeCount > 0 {
		ratio := float64(m.LinkCount) / float64(m.NodeCount)
		if ratio > couplingThreshold {
			out = append(out, fmt.Sprintf(
				"high coupling: %.1f links per node", ratio))
		}
	}
	for _, sc := range m.SharedComponents {
		out = append(out, fmt.Sprintf(
			"component %q exists in %d repositories (%s): possible divergent copies",
			sc.Name, len(sc.Repos), strings.Join(sc.Repos, ", ")))
	}
	for _, cyc := range cycles {
		out = append(out, "dependency cycle: "+strings.Join(cyc, " -> "))
	}
	return out
}

// findCycles reports strongly connected components with more than one
// node, sorted for stable output.
func findCycles(res *graph.Result) [][]string {
	dg := dgraph.New(func(id string) string { return id }, dgraph.Directed())
	for _, n := range res.Nodes {
		_ = dg.AddVertex(n.ID)
	}
	for _, l := range res.Links {
		// Duplicate (source, target) pairs across link types are fine.
		_ = dg.AddEdge(l.Source, l.Target)
	}

	sccs, err := dgraph.StronglyConnectedComponents(dg)
	if err != nil {
		return nil
	}

	var cycles [][]string
	for _, comp := range sccs {
		if len(comp) < 2 {
			continue
		}
		sort.Strings(comp)
		cycles = append(cycles, comp)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// narrative asks the model for prose when a client is configured,
// falling back to the heuristic summary on any failure.
func (g *Generator) narrative(ctx context.Context, res *graph.Result, ins *Insights) string {
	if g.llm == nil {
		return heuristicNarrative(res, ins)
	}

	temp := float32(0.2)
	maxTokens := 500
	text, err := g.llm.Generate(ctx, buildPrompt(res, ins), llm.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		g.log.Warn("narrative generation failed, using heuristic summary", "error", err)
		return heuristicNarrative(res, ins)
	}
	ins.NarrativeSource = SourceLLM
	return strings.TrimSpace(text)
}

func heuristicNarrative(res *graph.Result, ins *Insights) string {
	m := res.Metadata
	var b strings.Builder
	fmt.Fprintf(&b, "%s depends on or is depended on by %d files across %d repositories (%d links",
		m.TargetFile, m.NodeCount-1, len(m.Repositories), m.LinkCount)
	if m.CrossRepoLinkCount > 0 {
		fmt.Fprintf(&b, ", %d of them cross-repository", m.CrossRepoLinkCount)
	}
	fmt.Fprintf(&b, "). Complexity score %d/100.", ins.ComplexityScore)
	if len(ins.RiskFactors) > 0 {
		fmt.Fprintf(&b, " %d risk factors were identified.", len(ins.RiskFactors))
	}
	return b.String()
}

// buildPrompt lays out the target's edges and run statistics for the
// model.
func buildPrompt(res *graph.Result, ins *Insights) string {
	targetID := graph.NodeID(res.Metadata.TargetRepo, res.Metadata.TargetFile)

	var b strings.Builder
	fmt.Fprintf(&b, "Target file: %s (repository %s)\n",
		res.Metadata.TargetFile, res.Metadata.TargetRepo)
	fmt.Fprintf(&b, "Repositories analyzed: %s\n", strings.Join(res.Metadata.Repositories, ", "))
	fmt.Fprintf(&b, "Graph: %d nodes, %d links, %d cross-repository links, complexity %d/100\n",
		res.Metadata.NodeCount, res.Metadata.LinkCount,
		res.Metadata.CrossRepoLinkCount, ins.ComplexityScore)

	b.WriteString("\nOutgoing dependencies of the target:\n")
	for _, l := range res.Links {
		if l.Source == targetID {
			fmt.Fprintf(&b, "- %s -> %s", l.Type, l.Target)
			if l.TargetMethod != "" {
				fmt.Fprintf(&b, " (method %s)", l.TargetMethod)
			}
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nIncoming dependents of the target:\n")
	for _, l := range res.Links {
		if l.Target == targetID {
			fmt.Fprintf(&b, "- %s <- %s (%s)\n", l.Target, l.Source, l.Type)
		}
	}

	if len(ins.RiskFactors) > 0 {
		b.WriteString("\nDetected risk factors:\n")
		for _, rf := range ins.RiskFactors {
			b.WriteString("- " + rf + "\n")
		}
	}

	b.WriteString("\nWrite a short assessment (3-6 sentences) of the blast radius of " +
		"changing the target file, naming the riskiest dependencies first.")
	return b.String()
}
