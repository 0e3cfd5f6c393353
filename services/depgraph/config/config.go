// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the analyzer's configuration: defaults, then an
// optional YAML file, then APEXGRAPH_* environment overrides, validated
// before use. Secrets are never stored here; the config carries the
// names of the environment variables or files that hold them.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// maxConfigBytes caps the config file read.
const maxConfigBytes = 1 << 20

// Config is the full analyzer configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	GitHub   GitHubConfig   `yaml:"github"`
	Analysis AnalysisConfig `yaml:"analysis"`
	LLM      LLMConfig      `yaml:"llm"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// GitHubConfig configures the content client. Times are plain integers
// with the unit in the field name, so the YAML stays obvious.
type GitHubConfig struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`

	// TokenEnv names the environment variable holding the bearer
	// token; TokenFile, when set, wins and names a file instead.
	TokenEnv  string `yaml:"token_env"`
	TokenFile string `yaml:"token_file"`

	RequestTimeoutSeconds int `yaml:"request_timeout_seconds" validate:"gte=0,lte=300"`
	MaxConcurrent         int `yaml:"max_concurrent" validate:"gte=0,lte=32"`
	MinIntervalMillis     int `yaml:"min_interval_ms" validate:"gte=0,lte=60000"`

	ContentsTTLMinutes int `yaml:"contents_ttl_minutes" validate:"gte=0,lte=1440"`
	FileTTLMinutes     int `yaml:"file_ttl_minutes" validate:"gte=0,lte=1440"`
	SearchTTLMinutes   int `yaml:"search_ttl_minutes" validate:"gte=0,lte=1440"`
}

// RequestTimeout returns the configured per-request timeout.
func (g GitHubConfig) RequestTimeout() time.Duration {
	return time.Duration(g.RequestTimeoutSeconds) * time.Second
}

// MinInterval returns the configured dispatch spacing.
func (g GitHubConfig) MinInterval() time.Duration {
	return time.Duration(g.MinIntervalMillis) * time.Millisecond
}

// ContentsTTL returns the directory/tree cache TTL.
func (g GitHubConfig) ContentsTTL() time.Duration {
	return time.Duration(g.ContentsTTLMinutes) * time.Minute
}

// FileTTL returns the file-content cache TTL.
func (g GitHubConfig) FileTTL() time.Duration {
	return time.Duration(g.FileTTLMinutes) * time.Minute
}

// SearchTTL returns the search cache TTL.
func (g GitHubConfig) SearchTTL() time.Duration {
	return time.Duration(g.SearchTTLMinutes) * time.Minute
}

// AnalysisConfig sets analysis defaults a request can override.
type AnalysisConfig struct {
	MaxDepth     int      `yaml:"max_depth" validate:"gte=1,lte=10"`
	Repositories []string `yaml:"repositories"`
}

// LLMConfig configures the optional narrative backend.
type LLMConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url" validate:"omitempty,url"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: "0.0.0.0:8095"},
		GitHub: GitHubConfig{
			TokenEnv:              "GITHUB_TOKEN",
			RequestTimeoutSeconds: 20,
			MaxConcurrent:         2,
			MinIntervalMillis:     500,
			ContentsTTLMinutes:    10,
			FileTTLMinutes:        30,
			SearchTTLMinutes:      10,
		},
		Analysis: AnalysisConfig{MaxDepth: 2},
		LLM: LLMConfig{
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load builds the effective configuration: defaults, the YAML file at
// path (optional, "" skips), then environment overrides, validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := readFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readFile(path string, cfg *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if info.Size() > maxConfigBytes {
		return fmt.Errorf("config: %s is %d bytes, limit is %d", path, info.Size(), maxConfigBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays APEXGRAPH_* variables onto cfg.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "APEXGRAPH_ADDR")
	setString(&cfg.GitHub.BaseURL, "APEXGRAPH_GITHUB_BASE_URL")
	setString(&cfg.GitHub.TokenEnv, "APEXGRAPH_GITHUB_TOKEN_ENV")
	setString(&cfg.GitHub.TokenFile, "APEXGRAPH_GITHUB_TOKEN_FILE")
	setInt(&cfg.Analysis.MaxDepth, "APEXGRAPH_MAX_DEPTH")
	setBool(&cfg.LLM.Enabled, "APEXGRAPH_LLM_ENABLED")
	setString(&cfg.LLM.BaseURL, "APEXGRAPH_LLM_BASE_URL")
	setString(&cfg.LLM.Model, "APEXGRAPH_LLM_MODEL")
	setString(&cfg.Logging.Level, "APEXGRAPH_LOG_LEVEL")
	setBool(&cfg.Logging.JSON, "APEXGRAPH_LOG_JSON")

	if v := os.Getenv("APEXGRAPH_REPOSITORIES"); v != "" {
		var repos []string
		for _, r := range strings.Split(v, ",") {
			if r = strings.TrimSpace(r); r != "" {
				repos = append(repos, r)
			}
		}
		cfg.Analysis.Repositories = repos
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks field constraints and repository slugs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, r := range c.Analysis.Repositories {
		if !validRepo(r) {
			return fmt.Errorf("config: repository %q is not owner/name", r)
		}
	}
	return nil
}

func validRepo(r string) bool {
	owner, name, ok := strings.Cut(r, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}
