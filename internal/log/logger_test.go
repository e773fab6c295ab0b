// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNewAttachesServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Service: "dmaic-test", Version: "1.2.3", Level: "debug"})
	l.Debug().Str(FieldDataset, "ph_lab").Msg("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "dmaic-test", lines[0]["service"])
	assert.Equal(t, "1.2.3", lines[0]["version"])
	assert.Equal(t, "ph_lab", lines[0][FieldDataset])
	assert.Equal(t, "debug", lines[0]["level"])
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf, Level: "loud"})
	l.Debug().Msg("hidden")
	l.Info().Msg("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
}

func TestContextIDs(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		want string
	}{
		{name: "nil context", ctx: nil, want: "req-1"},
		{name: "background context", ctx: context.Background(), want: "req-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithRequestID(tt.ctx, "req-1") //nolint:staticcheck // nil ctx is part of the contract
			assert.Equal(t, tt.want, RequestIDFromContext(ctx))
			assert.Empty(t, JobIDFromContext(ctx))
		})
	}

	ctx := ContextWithJobID(context.Background(), "job-9")
	ctx = ContextWithCorrelationID(ctx, "corr-3")
	assert.Equal(t, "job-9", JobIDFromContext(ctx))
	assert.Equal(t, "corr-3", CorrelationIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "abc")
	ctx = ContextWithJobID(ctx, "run-1")
	enriched := WithContext(ctx, l)
	enriched.Info().Msg("x")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "abc", lines[0][FieldRequestID])
	assert.Equal(t, "run-1", lines[0][FieldJobID])
	_, hasCorr := lines[0][FieldCorrelationID]
	assert.False(t, hasCorr)
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled,
	}))
	ctx = ContextWithCorrelationID(ctx, "batch-12")
	WithContext(ctx, l).Info().Msg("x")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", lines[0][FieldTraceID])
	assert.Equal(t, "00f067aa0ba902b7", lines[0][FieldSpanID])
	assert.Equal(t, "batch-12", lines[0][FieldCorrelationID])

	traceID, spanID := TraceContext(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}

func TestFromContextFallsBackToBase(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	assert.NotEqual(t, zerolog.Disabled, l.GetLevel())
}

func TestMiddlewareLogsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Output: &buf})

	r := chi.NewRouter()
	r.Use(middlewareWith(l))
	r.Get("/datasets/{name}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/datasets/ph_lab", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "rid-7"))
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "request.handled", lines[0][FieldEvent])
	assert.Equal(t, "/datasets/{name}", lines[0][FieldRoute])
	assert.Equal(t, float64(http.StatusTeapot), lines[0][FieldStatus])
	assert.Equal(t, float64(2), lines[0][FieldBytes])
	assert.Equal(t, "rid-7", lines[0][FieldRequestID])
	assert.Equal(t, "warn", lines[0]["level"])
}
