// SPDX-License-Identifier: MIT

// Package audit provides structured audit logging for operations that
// change stored state: uploads, curation, project documents and reports.
// It follows the WHO/WHAT/WHEN pattern.
package audit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/dmaic/internal/log"
	"github.com/rs/zerolog"
)

// EventType represents the type of audit event.
type EventType string

const (
	// Data events
	EventFileIngest    EventType = "file.ingest"
	EventDatasetCurate EventType = "dataset.curate"

	// Project events
	EventProjectCreate  EventType = "project.create"
	EventProjectUpdate  EventType = "project.update"
	EventProjectAdvance EventType = "project.advance"
	EventDocumentSave   EventType = "project.document"
	EventKPIRecord      EventType = "project.kpi"
	EventSimulation     EventType = "project.simulation"

	// Report events
	EventReportGenerate EventType = "report.generate"
)

// Event represents a structured audit event.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	Type       EventType         `json:"type"`
	Actor      string            `json:"actor"`             // WHO: remote address or "cli"
	Action     string            `json:"action"`            // WHAT: human-readable action description
	Resource   string            `json:"resource"`          // project, file or dataset affected
	Result     string            `json:"result"`            // success, failure
	RemoteAddr string            `json:"remote_addr"`       // Client IP address
	UserAgent  string            `json:"user_agent"`        // Client user agent
	RequestID  string            `json:"request_id"`        // Correlation ID
	Details    map[string]string `json:"details,omitempty"` // Additional context
}

// Logger provides audit logging functionality.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new audit logger with a dedicated "audit" component.
func NewLogger() *Logger {
	return NewLoggerWith(log.WithComponent("audit"))
}

// NewLoggerWith tags base as the audit log.
func NewLoggerWith(base zerolog.Logger) *Logger {
	return &Logger{
		logger: base.With().Str("log_type", "audit").Logger(),
	}
}

// Log writes an audit event to the audit log.
func (l *Logger) Log(event Event) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Result == "" {
		event.Result = "success"
	}

	logEvent := l.logger.Info().
		Time("timestamp", event.Timestamp).
		Str("event_type", string(event.Type)).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("resource", event.Resource).
		Str("result", event.Result)

	if event.RemoteAddr != "" {
		logEvent.Str("remote_addr", event.RemoteAddr)
	}
	if event.UserAgent != "" {
		logEvent.Str("user_agent", event.UserAgent)
	}
	if event.RequestID != "" {
		logEvent.Str("request_id", event.RequestID)
	}

	// Details are flattened
	for key, value := range event.Details {
		logEvent.Str(key, value)
	}

	logEvent.Msg("audit event")
}

// LogFromContext fills the request ID from ctx before logging.
func (l *Logger) LogFromContext(ctx context.Context, event Event) {
	if event.RequestID == "" {
		event.RequestID = log.RequestIDFromContext(ctx)
	}
	if event.Actor == "" {
		event.Actor = "cli"
	}
	l.Log(event)
}

// LogRequest fills actor, address, agent and request ID from r.
func (l *Logger) LogRequest(r *http.Request, event Event) {
	addr := clientAddr(r)
	if event.Actor == "" {
		event.Actor = addr
	}
	event.RemoteAddr = addr
	event.UserAgent = r.UserAgent()
	l.LogFromContext(r.Context(), event)
}

// FileIngested logs a stored upload.
func (l *Logger) FileIngested(r *http.Request, fileID, filename string, duplicate bool) {
	l.LogRequest(r, Event{
		Type:     EventFileIngest,
		Action:   "stored file",
		Resource: fileID,
		Details: map[string]string{
			"filename":  filename,
			"duplicate": strconv.FormatBool(duplicate),
		},
	})
}

// DatasetCurated logs a new dataset version.
func (l *Logger) DatasetCurated(r *http.Request, fileID, name string, version int64) {
	l.LogRequest(r, Event{
		Type:     EventDatasetCurate,
		Action:   "curated dataset",
		Resource: name,
		Details: map[string]string{
			"source_file_id": fileID,
			"version":        strconv.FormatInt(version, 10),
		},
	})
}

// ProjectChanged logs a create, update or phase advance.
func (l *Logger) ProjectChanged(r *http.Request, typ EventType, projectID, phase string) {
	l.LogRequest(r, Event{
		Type:     typ,
		Action:   strings.TrimPrefix(string(typ), "project.") + " project",
		Resource: projectID,
		Details:  map[string]string{"phase": phase},
	})
}

// DocumentSaved logs a phase document write.
func (l *Logger) DocumentSaved(r *http.Request, projectID, kind string) {
	l.LogRequest(r, Event{
		Type:     EventDocumentSave,
		Action:   "saved " + kind,
		Resource: projectID,
		Details:  map[string]string{"document": kind},
	})
}

// KPIRecorded logs a KPI measurement.
func (l *Logger) KPIRecorded(r *http.Request, projectID, name string) {
	l.LogRequest(r, Event{
		Type:     EventKPIRecord,
		Action:   "recorded kpi",
		Resource: projectID,
		Details:  map[string]string{"kpi": name},
	})
}

// SimulationRecorded logs a stored what-if simulation.
func (l *Logger) SimulationRecorded(r *http.Request, projectID string, id int64) {
	l.LogRequest(r, Event{
		Type:     EventSimulation,
		Action:   "recorded simulation",
		Resource: projectID,
		Details:  map[string]string{"simulation_id": strconv.FormatInt(id, 10)},
	})
}

// ReportGenerated logs the written report outputs.
func (l *Logger) ReportGenerated(r *http.Request, projectID, kind string, files []string) {
	l.LogRequest(r, Event{
		Type:     EventReportGenerate,
		Action:   "generated " + kind + " report",
		Resource: projectID,
		Details:  map[string]string{"files": strings.Join(files, ",")},
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
