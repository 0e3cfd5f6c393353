// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds the static Salesforce dependency pattern table.
//
// Each entry describes one Salesforce construct: the regexes that detect
// it in source text, the GitHub code-search query fragment used for
// search-first discovery, and a priority. Only critical and high
// priority entries participate in the search-driven discovery pass; all
// entries are available to the content extractor. The table is
// configuration data, not computed state.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

// Priority ranks an entry for the discovery pass.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Entry is one dependency pattern definition.
type Entry struct {
	// Type names the Salesforce construct, e.g. "apex-class".
	Type string

	// Priority controls whether the entry joins search-first discovery.
	Priority Priority

	// Patterns detect the construct in raw source text.
	Patterns []*regexp.Regexp

	// SearchQuery is the GitHub code-search fragment for this construct.
	SearchQuery string

	// Relationship is the link type recorded for a search hit of this
	// construct, empty when a hit carries no edge semantics.
	Relationship graph.LinkType

	// Description is a human-readable summary for diagnostics.
	Description string
}

// entries is the fixed catalog. Order is stable and reflects scan order
// in the discovery pass.
var entries = []Entry{
	{
		Type:     "apex-class",
		Priority: PriorityCritical,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*(?:public|private|global)\s+(?:virtual\s+|abstract\s+)?(?:with\s+sharing\s+|without\s+sharing\s+|inherited\s+sharing\s+)?class\s+(\w+)`),
		},
		SearchQuery:  "extension:cls",
		Relationship: graph.LinkReferences,
		Description:  "Apex class definitions and references",
	},
	{
		Type:     "apex-trigger",
		Priority: PriorityCritical,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?m)^\s*trigger\s+(\w+)\s+on\s+(\w+)`),
		},
		SearchQuery:  "extension:trigger",
		Relationship: graph.LinkReferences,
		Description:  "Apex triggers on SObjects",
	},
	{
		Type:     "apex-test",
		Priority: PriorityHigh,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`@(?:isTest|IsTest)\b`),
			regexp.MustCompile(`\btestMethod\b`),
		},
		SearchQuery:  "extension:cls @isTest",
		Relationship: graph.LinkTests,
		Description:  "Apex test classes referencing the target",
	},
	{
		Type:     "lwc-component",
		Priority: PriorityHigh,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`import\s+\w+\s+from\s+['"]@salesforce/apex/(\w+)\.(\w+)['"]`),
			regexp.MustCompile(`import\s+\w+\s+from\s+['"]c/(\w+)['"]`),
		},
		SearchQuery:  "path:lwc extension:js",
		Relationship: graph.LinkWireService,
		Description:  "Lightning Web Components importing the target",
	},
	{
		Type:     "batch-job",
		Priority: PriorityHigh,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`implements\s+(?:Database\.Batchable|Schedulable|Queueable)`),
		},
		SearchQuery:  "extension:cls Database.Batchable",
		Relationship: graph.LinkReferences,
		Description:  "Batch, schedulable, and queueable jobs",
	},
	{
		Type:     "rest-endpoint",
		Priority: PriorityHigh,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`@RestResource\s*\(`),
		},
		SearchQuery:  "extension:cls @RestResource",
		Relationship: graph.LinkReferences,
		Description:  "Apex REST endpoint classes",
	},
	{
		Type:     "custom-object",
		Priority: PriorityMedium,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b(\w+__c)\b`),
		},
		SearchQuery: "extension:object-meta.xml",
		Description: "Custom object definitions and field references",
	},
	{
		Type:     "flow",
		Priority: PriorityLow,
		Patterns: []*regexp.Regexp{
			regexp.MustCompile(`<Flow\s+xmlns`),
		},
		SearchQuery: "extension:flow-meta.xml",
		Description: "Flow metadata referencing Apex actions",
	},
}

// All returns every catalog entry.
func All() []Entry {
	return entries
}

// CriticalAndHigh returns the discovery subset. Lower priority entries
// are skipped in the search pass to keep the GitHub search budget small.
func CriticalAndHigh() []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Priority == PriorityCritical || e.Priority == PriorityHigh {
			out = append(out, e)
		}
	}
	return out
}

// ByType returns the entry for the given construct type.
func ByType(typ string) (Entry, bool) {
	for _, e := range entries {
		if e.Type == typ {
			return e, true
		}
	}
	return Entry{}, false
}

// Validate checks catalog integrity. Called from init paths so a bad
// edit fails fast rather than silently skipping constructs.
func Validate() error {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Type == "" {
			return fmt.Errorf("catalog entry with empty type")
		}
		if seen[e.Type] {
			return fmt.Errorf("duplicate catalog entry %q", e.Type)
		}
		seen[e.Type] = true
		if len(e.Patterns) == 0 {
			return fmt.Errorf("catalog entry %q has no patterns", e.Type)
		}
		if strings.TrimSpace(e.SearchQuery) == "" {
			return fmt.Errorf("catalog entry %q has no search query", e.Type)
		}
		if e.Relationship != "" && !e.Relationship.Valid() {
			return fmt.Errorf("catalog entry %q has unknown relationship %q", e.Type, e.Relationship)
		}
		switch e.Priority {
		case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		default:
			return fmt.Errorf("catalog entry %q has unknown priority %q", e.Type, e.Priority)
		}
	}
	return nil
}

// InferNodeType classifies a repository path (with optional content for
// test detection) into a graph node type.
func InferNodeType(path, content string) graph.NodeType {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".cls"):
		if isTestContent(content) {
			return graph.NodeTypeTest
		}
		return graph.NodeTypeApex
	case strings.HasSuffix(lower, ".trigger"):
		return graph.NodeTypeApex
	case strings.Contains(lower, "/lwc/"):
		return graph.NodeTypeLWC
	case strings.HasSuffix(lower, ".js"), strings.HasSuffix(lower, ".html"):
		return graph.NodeTypeLWC
	default:
		return graph.NodeTypeOther
	}
}

var testAnnotation = regexp.MustCompile(`@(?:isTest|IsTest)\b|\btestMethod\b`)

func isTestContent(content string) bool {
	return content != "" && testAnnotation.MatchString(content)
}

// IsSalesforceSource reports whether a path is a Salesforce source file
// the analyzer cares about (Apex classes, triggers, LWC JavaScript).
func IsSalesforceSource(path string) bool {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".cls") || strings.HasSuffix(lower, ".trigger") {
		return true
	}
	return strings.Contains(lower, "/lwc/") && strings.HasSuffix(lower, ".js")
}

// ConventionalPaths lists the places a named class, trigger, or
// component conventionally lives in a Salesforce repository, checked in
// order during content-based traversal.
func ConventionalPaths(name string) []string {
	lowerFirst := strings.ToLower(name[:1]) + name[1:]
	return []string{
		"force-app/main/default/classes/" + name + ".cls",
		"force-app/main/default/triggers/" + name + ".trigger",
		"force-app/main/default/lwc/" + lowerFirst + "/" + lowerFirst + ".js",
		"src/classes/" + name + ".cls",
		"src/triggers/" + name + ".trigger",
	}
}
