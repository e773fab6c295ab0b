// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.Nil(t, p.tp)
	require.NoError(t, p.Shutdown(context.Background()))

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestNewProviderInvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{Enabled: true, ExporterType: "invalid"})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: invalid (supported: grpc, http)", err.Error())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased"},
	}
	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(sampler(tt.rate).Description(), tt.want), sampler(tt.rate).Description())
	}
}

func TestProviderExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := newProvider(context.Background(), Config{ServiceName: "dmaic", SamplingRate: 1}, exp)
	require.NoError(t, err)

	_, span := Tracer("test").Start(context.Background(), "analysis.run")
	span.SetAttributes(AnalysisAttributes("ttest", "water", 3)...)
	span.End()
	require.NoError(t, p.tp.ForceFlush(context.Background()))

	// The in-memory exporter drops its spans on Shutdown.
	spans := exp.GetSpans()
	require.NoError(t, p.Shutdown(context.Background()))
	require.Len(t, spans, 1)
	assert.Equal(t, "analysis.run", spans[0].Name)
	assert.Contains(t, spans[0].Attributes, attribute.String(DatasetNameKey, "water"))
	assert.Contains(t, spans[0].Attributes, attribute.Int64(DatasetVersionKey, 3))
}

func TestRecordError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	_, span := tp.Tracer("test").Start(context.Background(), "op")
	RecordError(span, nil, "ignored")
	RecordError(span, errors.New("boom"), "analysis")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.String(ErrorTypeKey, "analysis"))
	assert.Len(t, ended[0].Events(), 1)
}

func TestAnalysisAttributesOmitEmpty(t *testing.T) {
	assert.Len(t, AnalysisAttributes("describe", "", 0), 1)
	assert.Len(t, ReportAttributes("final", []string{"html", "pdf"}), 2)
	assert.Len(t, HTTPAttributes("GET", "/api/v1/runs", 200), 3)
}
