// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract pulls typed dependency candidates out of Salesforce
// source text.
//
// Extraction is heuristic text scanning over tagged regex rules, not
// parsing: it can both over- and under-match (the field-reference rule
// overlaps the method-call rule, for one), and comment/string exclusion
// is a best-effort single-line scan. Every candidate carries its line,
// code snippet, surrounding context, and enclosing method purely for
// explainability downstream; correctness never depends on them.
package extract

import (
	"sort"
	"strings"

	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
)

// Candidate is one extracted dependency reference before resolution.
type Candidate struct {
	// TargetClass is the referenced class, trigger, component, or
	// SObject identifier.
	TargetClass string

	// TargetMethod is set when the relationship names a specific
	// method (method calls, apex imports, wire adapters).
	TargetMethod string

	// Type and Strength describe the relationship.
	Type     graph.LinkType
	Strength int

	// SourceMethod is the enclosing method at the reference site,
	// empty at class or trigger scope.
	SourceMethod string

	// Line is 1-based; CodeSnippet is the trimmed source line;
	// Context holds ±2 surrounding lines.
	Line        int
	CodeSnippet string
	Context     []string
}

// Extract returns deduplicated dependency candidates for the given file
// content and node type. LWC JavaScript goes through ES6 import
// analysis; everything else through the Apex rules.
func Extract(content string, nodeType graph.NodeType) []Candidate {
	var raw []Candidate
	switch nodeType {
	case graph.NodeTypeLWC:
		raw = extractLWC(content)
	default:
		raw = extractApex(content)
	}
	return dedupe(raw)
}

// dedupe collapses candidates by (target, type), keeping the highest
// strength; on equal strength the earliest line wins.
func dedupe(candidates []Candidate) []Candidate {
	best := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		key := c.TargetClass + "\x00" + string(c.Type)
		prev, ok := best[key]
		if !ok || c.Strength > prev.Strength || (c.Strength == prev.Strength && c.Line < prev.Line) {
			best[key] = c
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		if out[i].TargetClass != out[j].TargetClass {
			return out[i].TargetClass < out[j].TargetClass
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// systemClasses is the Salesforce platform class denylist. These never
// produce generic reference edges; Database, Schema, Trigger, and
// system-method rules target them explicitly instead.
var systemClasses = map[string]bool{
	"String": true, "Integer": true, "Boolean": true, "Decimal": true,
	"Double": true, "Long": true, "Date": true, "Datetime": true,
	"Time": true, "Id": true, "Blob": true, "Object": true,
	"List": true, "Set": true, "Map": true, "Math": true, "JSON": true,
	"System": true, "Database": true, "Schema": true, "Test": true,
	"Trigger": true, "Limits": true, "UserInfo": true, "ApexPages": true,
	"Messaging": true, "Http": true, "HttpRequest": true, "HttpResponse": true,
	"Url": true, "EncodingUtil": true, "Crypto": true, "Pattern": true,
	"Matcher": true, "Exception": true, "SObject": true, "SObjectType": true,
}

// IsSystemClass reports whether name is on the platform denylist.
func IsSystemClass(name string) bool {
	return systemClasses[name]
}

// systemMethodClasses are the platform classes whose method calls are
// still recorded, as system-method edges, because they carry
// architectural signal (test setup, limits checks, outbound callouts).
var systemMethodClasses = map[string]bool{
	"System": true, "Test": true, "Limits": true, "UserInfo": true,
	"Messaging": true, "Http": true, "JSON": true, "EncodingUtil": true,
	"Crypto": true, "Math": true,
}

type site struct {
	line    int
	snippet string
	context []string
	method  string
}

// siteResolver converts byte offsets in cleaned content into provenance.
type siteResolver struct {
	offsets []int
	lines   []string
	methods []string
}

func newSiteResolver(content, cleaned string) *siteResolver {
	return &siteResolver{
		offsets: lineOffsets(content),
		lines:   strings.Split(content, "\n"),
		methods: enclosingMethods(cleaned),
	}
}

func (r *siteResolver) at(pos int) site {
	line := lineAt(r.offsets, pos)
	s := site{line: line, context: contextLines(r.lines, line)}
	if line-1 < len(r.lines) {
		s.snippet = strings.TrimSpace(r.lines[line-1])
	}
	if line-1 < len(r.methods) {
		s.method = r.methods[line-1]
	}
	return s
}

func (r *siteResolver) candidate(target string, typ graph.LinkType, pos int) Candidate {
	s := r.at(pos)
	return Candidate{
		TargetClass:  target,
		Type:         typ,
		Strength:     typ.Strength(),
		SourceMethod: s.method,
		Line:         s.line,
		CodeSnippet:  s.snippet,
		Context:      s.context,
	}
}
