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
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/apexgraph/services/depgraph/builder"
	"github.com/AleutianAI/apexgraph/services/depgraph/config"
	"github.com/AleutianAI/apexgraph/services/depgraph/routes"
	"github.com/AleutianAI/apexgraph/services/depgraph/telemetry"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var serveAddr string

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dependency-graph HTTP API",
	Long: `Run the depgraph HTTP API.

Endpoints:
  POST /v1/depgraph/analyze                     Run a dependency analysis
  GET  /v1/depgraph/repos/:owner/:repo/files    List Salesforce source files
  GET  /v1/depgraph/health                      Liveness
  GET  /v1/depgraph/ready                       Readiness (token custody)
  GET  /metrics                                 Prometheus metrics (when enabled)

The GitHub token is read from the environment variable or file named in
the configuration (GITHUB_TOKEN by default) and sealed in memory.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "",
		"Listen address (overrides the config file)")
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	appLog := newLogger(cfg)
	defer appLog.Close()
	slogger := appLog.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		appLog.Warn("telemetry init failed, continuing without it", "error", err)
	}

	tokens, err := newTokenProvider(cfg)
	if err != nil {
		appLog.Error("token custody failed", "error", err)
		os.Exit(1)
	}
	client, err := newGitHubClient(cfg, tokens, slogger)
	if err != nil {
		appLog.Error("github client init failed", "error", err)
		os.Exit(1)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	routes.SetupRoutes(router, routes.Deps{
		Builder:  builder.New(client, slogger),
		Source:   client,
		Insights: newInsightFunc(cfg, slogger),
		Ready: func() error {
			return tokens.WithToken(func(string) error { return nil })
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info("depgraph API listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLog.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		appLog.Error("server shutdown failed", "error", err)
	}
	if shutdownTelemetry != nil {
		if err := shutdownTelemetry(shutCtx); err != nil {
			appLog.Warn("telemetry shutdown failed", "error", err)
		}
	}
}
