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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "apexgraph",
		Short: "Analyze Salesforce dependency graphs across GitHub repositories",
		Long: `Apexgraph reads Apex classes, triggers, and Lightning Web Components
straight from GitHub, extracts their references, and assembles a
dependency graph with complexity insights. Point it at a target file
and the repositories it may depend on; no local checkout is required.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to a YAML configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(filesCmd)
}
