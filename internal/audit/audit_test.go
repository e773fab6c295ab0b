// SPDX-License-Identifier: MIT

package audit

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dmaic/internal/log"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLoggerWith(zerolog.New(&buf)), &buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger()
	assert.NotNil(t, logger)
}

func TestLogger_Log(t *testing.T) {
	logger, buf := newTestLogger()

	logger.Log(Event{
		Type:       EventDocumentSave,
		Actor:      "analyst",
		Action:     "saved charter",
		Resource:   "p-1",
		RemoteAddr: "192.168.1.100",
		UserAgent:  "curl/8.5.0",
		RequestID:  "req-123",
		Details:    map[string]string{"document": "charter"},
	})

	entry := lastEntry(t, buf)
	assert.Equal(t, "audit", entry["log_type"])
	assert.Equal(t, "project.document", entry["event_type"])
	assert.Equal(t, "success", entry["result"], "empty result defaults to success")
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "charter", entry["document"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestLogger_NilIsNoop(t *testing.T) {
	var logger *Logger
	assert.NotPanics(t, func() { logger.Log(Event{Type: EventProjectCreate}) })
}

func TestLogger_LogFromContext(t *testing.T) {
	logger, buf := newTestLogger()
	ctx := log.ContextWithRequestID(t.Context(), "req-456")

	logger.LogFromContext(ctx, Event{Type: EventDatasetCurate, Resource: "agua"})

	entry := lastEntry(t, buf)
	assert.Equal(t, "req-456", entry["request_id"])
	assert.Equal(t, "cli", entry["actor"])
}

func TestLogger_RequestEvents(t *testing.T) {
	logger, buf := newTestLogger()
	req := httptest.NewRequest("POST", "/api/v1/projects", nil)
	req.RemoteAddr = "10.0.0.1:51234"
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req = req.WithContext(log.ContextWithRequestID(req.Context(), "req-789"))

	logger.ProjectChanged(req, EventProjectAdvance, "p-1", "measure")
	entry := lastEntry(t, buf)
	assert.Equal(t, "10.0.0.1", entry["actor"])
	assert.Equal(t, "10.0.0.1", entry["remote_addr"])
	assert.Equal(t, "Mozilla/5.0", entry["user_agent"])
	assert.Equal(t, "req-789", entry["request_id"])
	assert.Equal(t, "advance project", entry["action"])
	assert.Equal(t, "measure", entry["phase"])

	logger.FileIngested(req, "abc123", "agua.csv", true)
	entry = lastEntry(t, buf)
	assert.Equal(t, "file.ingest", entry["event_type"])
	assert.Equal(t, "true", entry["duplicate"])

	logger.DatasetCurated(req, "abc123", "agua", 1700000000)
	assert.Equal(t, "1700000000", lastEntry(t, buf)["version"])

	logger.KPIRecorded(req, "p-1", "turbidez")
	assert.Equal(t, "turbidez", lastEntry(t, buf)["kpi"])

	logger.SimulationRecorded(req, "p-1", 7)
	assert.Equal(t, "7", lastEntry(t, buf)["simulation_id"])

	logger.ReportGenerated(req, "p-1", "charter", []string{"a.html", "a.pdf"})
	entry = lastEntry(t, buf)
	assert.Equal(t, "generated charter report", entry["action"])
	assert.Equal(t, "a.html,a.pdf", entry["files"])
}

func TestClientAddrWithoutPort(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientAddr(req))
}

func TestEvent_TimestampKept(t *testing.T) {
	logger, buf := newTestLogger()
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	logger.Log(Event{Timestamp: ts, Type: EventReportGenerate})

	got, err := time.Parse(time.RFC3339, lastEntry(t, buf)["timestamp"].(string))
	require.NoError(t, err)
	assert.True(t, got.Equal(ts))
}

func BenchmarkLogger_Log(b *testing.B) {
	logger := NewLoggerWith(zerolog.Nop())
	event := Event{
		Type:       EventKPIRecord,
		Actor:      "benchmark",
		Action:     "test",
		Resource:   "p-1",
		RemoteAddr: "127.0.0.1",
		Details: map[string]string{
			"key1": "value1",
			"key2": "value2",
		},
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.Log(event)
	}
}
