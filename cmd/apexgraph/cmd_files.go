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
	"path"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexgraph/services/depgraph/catalog"
	"github.com/AleutianAI/apexgraph/services/depgraph/config"
	"github.com/AleutianAI/apexgraph/services/depgraph/datatypes"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	filesRepo    string
	filesInclude string
	filesExclude string
	filesJSON    bool
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the Salesforce source files in a repository",
	Long: `List the Salesforce source files (Apex classes, triggers, Lightning
Web Components) in a GitHub repository.

Examples:
  apexgraph files --repo acme/crm
  apexgraph files --repo acme/crm --include '**/classes/*'
  apexgraph files --repo acme/crm --exclude '**/*Test.cls' --json`,
	Run: runFiles,
}

func init() {
	filesCmd.Flags().StringVar(&filesRepo, "repo", "",
		"Repository to list, as owner/name (required)")
	filesCmd.Flags().StringVar(&filesInclude, "include", "",
		"Glob pattern a path must match ('/'-separated)")
	filesCmd.Flags().StringVar(&filesExclude, "exclude", "",
		"Glob pattern that removes matching paths")
	filesCmd.Flags().BoolVar(&filesJSON, "json", false,
		"Output as JSON for scripting")

	filesCmd.MarkFlagRequired("repo")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runFiles(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	include, err := compilePattern(filesInclude)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --include pattern: %v\n", err)
		os.Exit(1)
	}
	exclude, err := compilePattern(filesExclude)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid --exclude pattern: %v\n", err)
		os.Exit(1)
	}

	appLog := newLogger(cfg)
	defer appLog.Close()
	slogger := appLog.Slog()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: no GitHub token available: %v\n", err)
		os.Exit(1)
	}
	client, err := newGitHubClient(cfg, tokens, slogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	entries, err := client.ListTree(ctx, filesRepo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: listing %s failed: %v\n", filesRepo, err)
		os.Exit(1)
	}

	files := make([]datatypes.FileEntry, 0)
	for _, e := range entries {
		if !e.IsBlob() || !catalog.IsSalesforceSource(e.Path) {
			continue
		}
		if include != nil && !include.Match(e.Path) {
			continue
		}
		if exclude != nil && exclude.Match(e.Path) {
			continue
		}
		base := path.Base(e.Path)
		files = append(files, datatypes.FileEntry{
			Path: e.Path,
			Name: strings.TrimSuffix(base, path.Ext(base)),
			Type: string(catalog.InferNodeType(e.Path, "")),
			Size: e.Size,
		})
	}

	if filesJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		encoder.Encode(datatypes.FileListResponse{
			Repository: filesRepo,
			Count:      len(files),
			Files:      files,
		})
		return
	}

	fmt.Printf("Salesforce files in %s: %d\n", filesRepo, len(files))
	fmt.Println(strings.Repeat("=", 60))
	for _, f := range files {
		fmt.Printf("  %-8s %s\n", f.Type, f.Path)
	}
}

func compilePattern(pattern string) (glob.Glob, error) {
	if pattern == "" {
		return nil, nil
	}
	return glob.Compile(pattern, '/')
}
