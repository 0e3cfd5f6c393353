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
	"log/slog"
	"os"

	"github.com/AleutianAI/apexgraph/pkg/logging"
	"github.com/AleutianAI/apexgraph/pkg/throttle"
	"github.com/AleutianAI/apexgraph/services/depgraph/config"
	"github.com/AleutianAI/apexgraph/services/depgraph/githubapi"
	"github.com/AleutianAI/apexgraph/services/depgraph/graph"
	"github.com/AleutianAI/apexgraph/services/depgraph/handlers"
	"github.com/AleutianAI/apexgraph/services/depgraph/insight"
	"github.com/AleutianAI/apexgraph/services/depgraph/llm"
	"github.com/AleutianAI/apexgraph/services/depgraph/token"
)

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config) *logging.Logger {
	return logging.New(logging.Config{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		LogDir:    cfg.Logging.Dir,
		Service:   "depgraph",
		ForceJSON: cfg.Logging.JSON,
	})
}

// newTokenProvider seals the GitHub token from the configured file or
// environment variable.
func newTokenProvider(cfg *config.Config) (token.Provider, error) {
	if cfg.GitHub.TokenFile != "" {
		return token.FromFile(cfg.GitHub.TokenFile)
	}
	return token.FromEnv(cfg.GitHub.TokenEnv)
}

// newGitHubClient assembles the throttled, caching content client.
func newGitHubClient(cfg *config.Config, tokens token.Provider,
	logger *slog.Logger) (*githubapi.Client, error) {

	return githubapi.NewClient(githubapi.Config{
		BaseURL: cfg.GitHub.BaseURL,
		Tokens:  tokens,
		Gate: throttle.NewGate(throttle.Config{
			MaxConcurrent: cfg.GitHub.MaxConcurrent,
			MinInterval:   cfg.GitHub.MinInterval(),
		}),
		Logger:         logger,
		RequestTimeout: cfg.GitHub.RequestTimeout(),
		ContentsTTL:    cfg.GitHub.ContentsTTL(),
		FileTTL:        cfg.GitHub.FileTTL(),
		SearchTTL:      cfg.GitHub.SearchTTL(),
	})
}

// newInsightFunc produces the per-request insight generator. The
// narrative client is rebuilt per request so a selected_model override
// takes effect without restarting.
func newInsightFunc(cfg *config.Config, logger *slog.Logger) handlers.InsightFunc {
	return func(ctx context.Context, res *graph.Result, model string) *insight.Insights {
		return insight.New(narrativeClient(cfg, model, logger), logger).Generate(ctx, res)
	}
}

// narrativeClient returns nil when the LLM narrative is disabled or
// unusable; insights then fall back to the heuristic summary.
func narrativeClient(cfg *config.Config, model string, logger *slog.Logger) llm.LLMClient {
	if !cfg.LLM.Enabled {
		return nil
	}
	key := os.Getenv(cfg.LLM.APIKeyEnv)
	if key == "" {
		logger.Warn("narrative disabled, api key env is empty", "env", cfg.LLM.APIKeyEnv)
		return nil
	}
	if model == "" {
		model = cfg.LLM.Model
	}
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:  key,
		BaseURL: cfg.LLM.BaseURL,
		Model:   model,
	}, logger)
	if err != nil {
		logger.Warn("narrative client init failed", "error", err)
		return nil
	}
	return client
}
