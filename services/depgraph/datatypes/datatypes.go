// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the JSON request and response shapes of the
// depgraph HTTP API.
package datatypes

import (
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
	"github.com/AleutianAI/apexgraph/services/depgraph/insight"
)

// AnalyzeRequest is the body of POST /v1/depgraph/analyze.
type AnalyzeRequest struct {
	// Repositories lists the "owner/name" slugs to resolve references
	// across. TargetRepo is added automatically if absent.
	Repositories []string `json:"repositories" binding:"omitempty,dive,min=3"`

	// TargetRepo and TargetFile identify the file to analyze.
	TargetRepo string `json:"target_repo" binding:"required"`
	TargetFile string `json:"target_file" binding:"required"`

	// MaxDepth bounds reference traversal. Zero means the server
	// default.
	MaxDepth int `json:"max_depth" binding:"omitempty,gte=1,lte=10"`

	// IncludeMethodLevel keeps per-method detail (source/target method
	// names) on links. Defaults to true when omitted.
	IncludeMethodLevel *bool `json:"include_method_level"`

	// IncludeContent returns raw file content on resolved nodes.
	IncludeContent bool `json:"include_content"`

	// SelectedModel overrides the narrative model for this request.
	SelectedModel string `json:"selected_model"`
}

// MethodLevel resolves the optional IncludeMethodLevel flag.
func (r *AnalyzeRequest) MethodLevel() bool {
	return r.IncludeMethodLevel == nil || *r.IncludeMethodLevel
}

// AnalyzeResponse pairs the assembled graph with its insights.
type AnalyzeResponse struct {
	Graph    graph.Result      `json:"graph"`
	Insights *insight.Insights `json:"insights"`
}

// FileEntry is one Salesforce source file in a repository listing.
type FileEntry struct {
	Path string `json:"path"`
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

// FileListResponse is the body of GET /v1/depgraph/repos/:owner/:repo/files.
type FileListResponse struct {
	Repository string      `json:"repository"`
	Count      int         `json:"count"`
	Files      []FileEntry `json:"files"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
