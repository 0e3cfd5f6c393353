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
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // the nil guard is the behavior under test
	_, err := Init(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_PrometheusMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer shutdown(context.Background())

	assert.NotNil(t, MetricsHandler(), "prometheus exporter must expose a handler")
}

func TestInit_UnknownExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "carrier-pigeon"

	_, err := Init(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestRecorders(t *testing.T) {
	// Counters and histograms must accept any documented label value
	// without panicking.
	RecordGitHubRequest("file", "ok")
	RecordGitHubRequest("search", "rate_limited")
	RecordCacheEvent("files", true)
	RecordCacheEvent("search", false)
	RecordAnalysis(StatusOK, 1.5, 10, 25)
	RecordAnalysis(StatusError, 0.2, 0, 0)
}

func TestRecordAnalysis_SizeHistograms(t *testing.T) {
	before := histogramSamples(t, analysisNodes)

	RecordAnalysis(StatusOK, 0.1, 12, 30)
	assert.Equal(t, before+1, histogramSamples(t, analysisNodes),
		"an ok run must observe the graph-size histograms")

	RecordAnalysis(StatusError, 0.1, 0, 0)
	assert.Equal(t, before+1, histogramSamples(t, analysisNodes),
		"a failed run has no meaningful size to observe")
}

func histogramSamples(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, h.Write(&m))
	return m.GetHistogram().GetSampleCount()
}
