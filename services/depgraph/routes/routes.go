// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/apexgraph/services/depgraph/handlers"
	"github.com/AleutianAI/apexgraph/services/depgraph/telemetry"
)

// Deps are the wired dependencies of the depgraph HTTP API.
type Deps struct {
	Builder  handlers.GraphBuilder
	Source   handlers.TreeLister
	Insights handlers.InsightFunc

	// Ready verifies serve-traffic dependencies (e.g. token custody).
	Ready func() error
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.Use(otelgin.Middleware("depgraph-service"))

	// The Prometheus handler exists only when that exporter is active.
	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}

	// API version 1 group
	v1 := router.Group("/v1/depgraph")
	{
		v1.POST("/analyze", handlers.Analyze(deps.Builder, deps.Insights))
		v1.GET("/repos/:owner/:repo/files", handlers.ListFiles(deps.Source))
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/ready", handlers.ReadyCheck(deps.Ready))
	}
}
