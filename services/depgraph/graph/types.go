// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph defines the Salesforce dependency graph model and the
// builder that assembles it from GitHub-hosted sources.
//
// A graph is the result of one analysis run: nodes identified by
// "repo:path", typed directed links with strength scores, and run
// metadata. Graphs live in memory only; nothing is persisted.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// NodeType classifies a file in the dependency graph.
type NodeType string

const (
	// NodeTypeApex is an Apex class or trigger (.cls, .trigger).
	NodeTypeApex NodeType = "apex"

	// NodeTypeLWC is a Lightning Web Component bundle member.
	NodeTypeLWC NodeType = "lwc"

	// NodeTypeTest is an Apex test class.
	NodeTypeTest NodeType = "test"

	// NodeTypeOther is anything else (metadata, flows, layouts).
	NodeTypeOther NodeType = "other"
)

// LinkType is the closed set of dependency relationship kinds.
type LinkType string

const (
	LinkExtends           LinkType = "extends"
	LinkImplements        LinkType = "implements"
	LinkReferences        LinkType = "references"
	LinkTests             LinkType = "tests"
	LinkMethodCall        LinkType = "method-call"
	LinkWire              LinkType = "wire"
	LinkImperativeApex    LinkType = "imperative-apex"
	LinkSOQLQuery         LinkType = "soql-query"
	LinkDatabaseOperation LinkType = "database-operation"
	LinkSchemaReference   LinkType = "schema-reference"
	LinkFieldReference    LinkType = "field-reference"
	LinkTriggerContext    LinkType = "trigger-context"
	LinkSystemMethod      LinkType = "system-method"
	LinkCustomSettings    LinkType = "custom-settings"
	LinkWireService       LinkType = "wire-service"
	LinkImport            LinkType = "import"
)

// linkStrengths maps each relationship kind to its default strength on
// the 0-10 scale. Structural relationships (inheritance, test coverage)
// score highest; incidental references lowest.
var linkStrengths = map[LinkType]int{
	LinkExtends:           9,
	LinkImplements:        8,
	LinkTests:             8,
	LinkImperativeApex:    8,
	LinkWire:              8,
	LinkWireService:       7,
	LinkMethodCall:        7,
	LinkSOQLQuery:         6,
	LinkDatabaseOperation: 6,
	LinkTriggerContext:    6,
	LinkSchemaReference:   5,
	LinkCustomSettings:    5,
	LinkImport:            5,
	LinkFieldReference:    4,
	LinkReferences:        3,
	LinkSystemMethod:      3,
}

// Strength returns the default strength for the link type, or 0 for an
// unknown type.
func (t LinkType) Strength() int {
	return linkStrengths[t]
}

// Valid reports whether t belongs to the closed relationship set.
func (t LinkType) Valid() bool {
	_, ok := linkStrengths[t]
	return ok
}

// Node is a file participating in the dependency graph.
//
// Identity is "repo:path". Nodes are created when first discovered
// (target file, search hit, or traversal hit) and never mutated after
// metadata extraction.
type Node struct {
	// ID is "repo:path", e.g. "org/repo1:force-app/main/default/classes/Foo.cls".
	ID string `json:"id"`

	// Name is the class/trigger/component name without extension.
	Name string `json:"name"`

	// Path is the repository-relative file path.
	Path string `json:"path"`

	// Repo is the "org/name" repository slug.
	Repo string `json:"repo"`

	// Type is the inferred node type.
	Type NodeType `json:"type"`

	// Methods and Properties are extracted from Apex class bodies.
	Methods    []string `json:"methods,omitempty"`
	Properties []string `json:"properties,omitempty"`

	// Interfaces lists implemented interfaces; IsAbstract marks
	// abstract or virtual classes.
	Interfaces []string `json:"interfaces,omitempty"`
	IsAbstract bool     `json:"is_abstract,omitempty"`

	// Content is the raw source, populated only when the analysis was
	// requested with IncludeContent.
	Content string `json:"content,omitempty"`

	// URL is the html_url of the file when known.
	URL string `json:"url,omitempty"`

	// Placeholder marks a referenced file that could not be located.
	// The node preserves the edge; it has no content or metadata.
	Placeholder bool `json:"placeholder,omitempty"`
}

// NodeID builds the canonical node identity for a repo and path.
func NodeID(repo, path string) string {
	return repo + ":" + strings.TrimPrefix(path, "/")
}

// Link is a directed, typed dependency edge between two nodes.
type Link struct {
	// Source and Target are node IDs.
	Source string `json:"source"`
	Target string `json:"target"`

	// Type is the relationship kind; Strength its 0-10 score.
	Type     LinkType `json:"type"`
	Strength int      `json:"strength"`

	// Provenance, for explainability in the UI. SourceMethod is the
	// enclosing method at the reference site, TargetMethod the callee
	// where the relationship names one.
	SourceMethod string   `json:"source_method,omitempty"`
	TargetMethod string   `json:"target_method,omitempty"`
	Line         int      `json:"line,omitempty"`
	CodeSnippet  string   `json:"code_snippet,omitempty"`
	Context      []string `json:"context,omitempty"`

	// CrossRepo is set when source and target live in different
	// repositories.
	CrossRepo bool `json:"cross_repo,omitempty"`
}

// SharedComponent records a file name that appears in more than one
// repository, a duplication-risk signal.
type SharedComponent struct {
	Name  string   `json:"name"`
	Repos []string `json:"repos"`
}

// Metadata describes one analysis run.
type Metadata struct {
	AnalysisID         string            `json:"analysis_id"`
	Repositories       []string          `json:"repositories"`
	TargetFile         string            `json:"target_file"`
	TargetRepo         string            `json:"target_repo"`
	GeneratedAt        time.Time         `json:"generated_at"`
	MaxDepth           int               `json:"max_depth"`
	NodeCount          int               `json:"node_count"`
	LinkCount          int               `json:"link_count"`
	CrossRepoLinkCount int               `json:"cross_repo_link_count"`
	SharedComponents   []SharedComponent `json:"shared_components,omitempty"`
}

// Graph is the assembled dependency graph for one analysis run.
//
// Invariant: every link's source and target correspond to a node in the
// node set (placeholder nodes stand in for unresolved references).
// Graph is not safe for concurrent mutation; the builder serializes all
// writes.
type Graph struct {
	nodes map[string]*Node
	links map[string]*Link

	Metadata Metadata
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		links: make(map[string]*Link),
	}
}

// AddNode inserts n, deduplicating by ID. When the node already exists,
// a non-placeholder insert upgrades a placeholder in place (metadata and
// content are filled in); otherwise the existing node wins. Returns the
// node stored in the graph.
func (g *Graph) AddNode(n *Node) *Node {
	existing, ok := g.nodes[n.ID]
	if !ok {
		g.nodes[n.ID] = n
		return n
	}
	if existing.Placeholder && !n.Placeholder {
		*existing = *n
	}
	return existing
}

// HasNode reports whether a node with the given ID exists.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// AddLink inserts l, deduplicating by (source, target, type). When a
// duplicate occurs the higher-strength link wins. Returns true when the
// graph changed.
func (g *Graph) AddLink(l Link) bool {
	key := l.Source + "\x00" + l.Target + "\x00" + string(l.Type)
	existing, ok := g.links[key]
	if !ok {
		stored := l
		g.links[key] = &stored
		return true
	}
	if l.Strength > existing.Strength {
		*existing = l
		return true
	}
	return false
}

// Nodes returns all nodes sorted by ID.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Links returns all links sorted by (source, target, type).
func (g *Graph) Links() []Link {
	out := make([]Link, 0, len(g.links))
	for _, l := range g.links {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// MarkCrossRepo flags the identified link as spanning repositories.
// Unknown links are ignored.
func (g *Graph) MarkCrossRepo(source, target string, typ LinkType) {
	key := source + "\x00" + target + "\x00" + string(typ)
	if l, ok := g.links[key]; ok {
		l.CrossRepo = true
	}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// LinkCount returns the number of links.
func (g *Graph) LinkCount() int { return len(g.links) }

// ErrDanglingLink indicates a link endpoint without a node.
var ErrDanglingLink = errors.New("link endpoint has no node")

// Validate checks the endpoint invariant.
func (g *Graph) Validate() error {
	for _, l := range g.links {
		if !g.HasNode(l.Source) {
			return fmt.Errorf("%w: source %q (%s)", ErrDanglingLink, l.Source, l.Type)
		}
		if !g.HasNode(l.Target) {
			return fmt.Errorf("%w: target %q (%s)", ErrDanglingLink, l.Target, l.Type)
		}
	}
	return nil
}

// Result is the JSON shape returned to callers.
type Result struct {
	Nodes    []*Node  `json:"nodes"`
	Links    []Link   `json:"links"`
	Metadata Metadata `json:"metadata"`
}

// Finalize counts, stamps metadata, and returns the caller-facing view.
func (g *Graph) Finalize() Result {
	g.Metadata.NodeCount = g.NodeCount()
	g.Metadata.LinkCount = g.LinkCount()
	cross := 0
	for _, l := range g.links {
		if l.CrossRepo {
			cross++
		}
	}
	g.Metadata.CrossRepoLinkCount = cross
	return Result{
		Nodes:    g.Nodes(),
		Links:    g.Links(),
		Metadata: g.Metadata,
	}
}
