// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/AleutianAI/apexgraph/services/depgraph/builder"
	"github.com/AleutianAI/apexgraph/services/depgraph/datatypes"
	"github.com/AleutianAI/apexgraph/services/depgraph/githubapi"
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
	"github.com/AleutianAI/apexgraph/services/depgraph/insight"
	"github.com/AleutianAI/apexgraph/services/depgraph/telemetry"
)

// Create a new tracer
var depgraphTracer = otel.Tracer("apexgraph.depgraph.handlers")

// GraphBuilder assembles a dependency graph for one analysis request.
type GraphBuilder interface {
	Build(ctx context.Context, opts builder.Options) (*graph.Result, error)
}

// InsightFunc produces insights for a finished graph. The model
// argument is the per-request narrative override; "" means the
// configured default.
type InsightFunc func(ctx context.Context, res *graph.Result, model string) *insight.Insights

// Analyze handles POST /v1/depgraph/analyze.
//
// # Description
//
//	Binds and validates the analysis request, runs the graph builder,
//	attaches insights, and translates builder failures into the HTTP
//	error taxonomy (400 for bad input, 404 for a missing target, 502
//	for upstream GitHub failures).
func Analyze(b GraphBuilder, insights InsightFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
			return
		}

		ctx, span := depgraphTracer.Start(c.Request.Context(), "depgraph.analyze")
		defer span.End()

		slog.Info("Received analysis request",
			"repo", req.TargetRepo, "file", req.TargetFile, "repos", len(req.Repositories))

		start := time.Now()
		res, err := b.Build(ctx, builder.Options{
			Repositories:   req.Repositories,
			TargetRepo:     req.TargetRepo,
			TargetFile:     req.TargetFile,
			MaxDepth:       req.MaxDepth,
			IncludeContent: req.IncludeContent,
		})
		if err != nil {
			telemetry.RecordAnalysis(telemetry.StatusError, time.Since(start).Seconds(), 0, 0)
			status, msg := statusForError(err)
			slog.Error("analysis failed",
				"repo", req.TargetRepo, "file", req.TargetFile, "error", err)
			c.JSON(status, datatypes.ErrorResponse{Error: msg})
			return
		}
		if !req.MethodLevel() {
			stripMethodDetail(res)
		}

		ins := insights(ctx, res, req.SelectedModel)
		telemetry.RecordAnalysis(telemetry.StatusOK, time.Since(start).Seconds(),
			res.Metadata.NodeCount, res.Metadata.LinkCount)
		c.JSON(http.StatusOK, datatypes.AnalyzeResponse{Graph: *res, Insights: ins})
	}
}

// stripMethodDetail removes per-method attribution from every link.
func stripMethodDetail(res *graph.Result) {
	for i := range res.Links {
		res.Links[i].SourceMethod = ""
		res.Links[i].TargetMethod = ""
	}
}

// statusForError maps builder and GitHub client failures to HTTP
// status codes and caller-safe messages.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, builder.ErrBadOptions):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, githubapi.ErrNotFound):
		return http.StatusNotFound, "target file not found"
	case errors.Is(err, githubapi.ErrAuth):
		return http.StatusBadGateway, "github authentication failed"
	case errors.Is(err, githubapi.ErrRateLimited):
		return http.StatusBadGateway, "github rate limit exceeded"
	case errors.Is(err, githubapi.ErrExhausted):
		return http.StatusBadGateway, "github retries exhausted"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "analysis timed out"
	default:
		return http.StatusInternalServerError, "analysis failed"
	}
}
