// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexgraph/services/depgraph/builder"
	"github.com/AleutianAI/apexgraph/services/depgraph/config"
	"github.com/AleutianAI/apexgraph/services/depgraph/datatypes"
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
	"github.com/AleutianAI/apexgraph/services/depgraph/insight"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	// Target flags
	analyzeRepo  string
	analyzeFile  string
	analyzeRepos []string

	// Analysis flags
	analyzeMaxDepth       int
	analyzeIncludeContent bool
	analyzeSkipDependents bool
	analyzeTimeout        time.Duration

	// Output flags
	analyzeJSON     bool
	analyzeInsights bool
	analyzeModel    string
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze the dependency graph of one Salesforce file",
	Long: `Analyze the dependency graph of one Salesforce file.

The target file is read from GitHub, its references are extracted and
resolved across the given repositories, and every other Salesforce file
is scanned for reverse dependencies.

Examples:
  apexgraph analyze --repo acme/crm --file force-app/main/default/classes/AccountService.cls
  apexgraph analyze --repo acme/crm --file classes/AccountService.cls --repos acme/billing --max-depth 3
  apexgraph analyze --repo acme/crm --file classes/AccountService.cls --json --insights`,
	Run: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeRepo, "repo", "",
		"Repository of the target file, as owner/name (required)")
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "",
		"Path of the target file inside the repository (required)")
	analyzeCmd.Flags().StringSliceVar(&analyzeRepos, "repos", nil,
		"Additional repositories to resolve references across")
	analyzeCmd.Flags().IntVar(&analyzeMaxDepth, "max-depth", 0,
		"Maximum traversal depth (0 = default 2)")
	analyzeCmd.Flags().BoolVar(&analyzeIncludeContent, "include-content", false,
		"Keep raw file content on resolved nodes")
	analyzeCmd.Flags().BoolVar(&analyzeSkipDependents, "skip-dependents", false,
		"Skip the reverse scan for dependents (faster on large repos)")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 5*time.Minute,
		"Overall analysis timeout")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false,
		"Output as JSON for scripting")
	analyzeCmd.Flags().BoolVar(&analyzeInsights, "insights", false,
		"Include complexity insights and narrative")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "",
		"Narrative model override (implies --insights)")

	analyzeCmd.MarkFlagRequired("repo")
	analyzeCmd.MarkFlagRequired("file")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		outputAnalyzeError("Failed to load configuration", err)
		os.Exit(1)
	}

	appLog := newLogger(cfg)
	defer appLog.Close()
	slogger := appLog.Slog()

	ctx, cancel := context.WithTimeout(context.Background(), analyzeTimeout)
	defer cancel()

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		outputAnalyzeError("No GitHub token available", err)
		os.Exit(1)
	}
	client, err := newGitHubClient(cfg, tokens, slogger)
	if err != nil {
		outputAnalyzeError("Failed to build GitHub client", err)
		os.Exit(1)
	}

	repos := analyzeRepos
	if len(repos) == 0 {
		repos = cfg.Analysis.Repositories
	}
	maxDepth := analyzeMaxDepth
	if maxDepth <= 0 {
		maxDepth = cfg.Analysis.MaxDepth
	}

	res, err := builder.New(client, slogger).Build(ctx, builder.Options{
		Repositories:   repos,
		TargetRepo:     analyzeRepo,
		TargetFile:     analyzeFile,
		MaxDepth:       maxDepth,
		IncludeContent: analyzeIncludeContent,
		SkipDependents: analyzeSkipDependents,
	})
	if err != nil {
		outputAnalyzeError("Analysis failed", err)
		os.Exit(1)
	}

	var ins *insight.Insights
	if analyzeInsights || analyzeModel != "" {
		ins = newInsightFunc(cfg, slogger)(ctx, res, analyzeModel)
	}

	if analyzeJSON {
		outputAnalyzeJSON(res, ins)
		return
	}
	outputAnalyzeText(res, ins)
}

// =============================================================================
// OUTPUT FUNCTIONS
// =============================================================================

func outputAnalyzeError(msg string, err error) {
	if analyzeJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(map[string]any{
			"success": false,
			"error":   fmt.Sprintf("%s: %v", msg, err),
		})
		return
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
}

func outputAnalyzeJSON(res *graph.Result, ins *insight.Insights) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(datatypes.AnalyzeResponse{Graph: *res, Insights: ins}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
		os.Exit(1)
	}
}

func outputAnalyzeText(res *graph.Result, ins *insight.Insights) {
	meta := res.Metadata

	// Header
	fmt.Printf("Dependency Analysis: %s %s\n", meta.TargetRepo, meta.TargetFile)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()

	fmt.Printf("Repositories:      %s\n", strings.Join(meta.Repositories, ", "))
	fmt.Printf("Nodes:             %d\n", meta.NodeCount)
	fmt.Printf("Links:             %d\n", meta.LinkCount)
	fmt.Printf("Cross-repo links:  %d\n", meta.CrossRepoLinkCount)
	fmt.Printf("Max depth:         %d\n", meta.MaxDepth)

	if len(meta.SharedComponents) > 0 {
		fmt.Println()
		fmt.Println("Shared Components:")
		for _, sc := range meta.SharedComponents {
			fmt.Printf("  %s  (%s)\n", sc.Name, strings.Join(sc.Repos, ", "))
		}
	}

	if len(res.Links) > 0 {
		fmt.Println()
		fmt.Println("Links:")
		for _, l := range res.Links {
			marker := ""
			if l.CrossRepo {
				marker = "  [cross-repo]"
			}
			fmt.Printf("  %-20s %s -> %s (strength %d)%s\n",
				l.Type, l.Source, l.Target, l.Strength, marker)
		}
	}

	if ins != nil {
		fmt.Println()
		fmt.Println("Insights:")
		fmt.Printf("  Complexity score: %d/100\n", ins.ComplexityScore)
		if len(ins.Cycles) > 0 {
			fmt.Printf("  Cycles:           %d\n", len(ins.Cycles))
		}
		for _, rf := range ins.RiskFactors {
			fmt.Printf("  - %s\n", rf)
		}
		if ins.Narrative != "" {
			fmt.Println()
			fmt.Printf("Narrative (%s):\n", ins.NarrativeSource)
			fmt.Printf("  %s\n", ins.Narrative)
		}
	}
}
