// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Prometheus Metrics for Dependency Analysis
// =============================================================================

// Analysis status labels shared with the recorders' callers.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

var (
	// githubRequests counts upstream GitHub requests.
	// Labels: operation (tree, contents, file, search), outcome
	// (ok, not_found, rate_limited, auth, error)
	githubRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "apexgraph",
		Subsystem: "github",
		Name:      "requests_total",
		Help:      "Total GitHub API requests by operation and outcome",
	}, []string{"operation", "outcome"})

	// cacheEvents counts cache hits and misses per cache kind.
	// Labels: kind (trees, contents, files, search), event (hit, miss)
	cacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "apexgraph",
		Subsystem: "cache",
		Name:      "events_total",
		Help:      "Cache hits and misses by cache kind",
	}, []string{"kind", "event"})

	// analysisDuration measures end-to-end analysis latency.
	// Labels: status (success, error)
	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "apexgraph",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End-to-end dependency analysis duration in seconds",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{"status"})

	// analysisNodes tracks graph sizes produced per analysis.
	analysisNodes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "apexgraph",
		Subsystem: "analysis",
		Name:      "nodes",
		Help:      "Nodes per assembled dependency graph",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	// analysisLinks tracks link counts per analysis.
	analysisLinks = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "apexgraph",
		Subsystem: "analysis",
		Name:      "links",
		Help:      "Links per assembled dependency graph",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)

// RecordGitHubRequest counts one upstream request.
func RecordGitHubRequest(operation, outcome string) {
	githubRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordCacheEvent counts hits or misses for a cache kind.
//
// Inputs:
//
//	kind - "trees", "contents", "files", or "search".
//	hit - Whether the lookup was served from cache.
func RecordCacheEvent(kind string, hit bool) {
	event := "miss"
	if hit {
		event = "hit"
	}
	cacheEvents.WithLabelValues(kind, event).Inc()
}

// RecordAnalysis records one completed analysis run.
//
// Inputs:
//
//	status - "ok" or "error". Graph-size histograms are observed only
//	  for "ok" runs; failed runs have no meaningful size.
func RecordAnalysis(status string, durationSec float64, nodes, links int) {
	analysisDuration.WithLabelValues(status).Observe(durationSec)
	if status == StatusOK {
		analysisNodes.Observe(float64(nodes))
		analysisLinks.Observe(float64(links))
	}
}
