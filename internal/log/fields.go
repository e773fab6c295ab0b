// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"
	FieldRunID         = "run_id"
	FieldFileID        = "file_id"
	FieldProjectID     = "project_id"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldKind      = "kind"
	FieldPhase     = "phase"

	// Dataset fields
	FieldDataset = "dataset"
	FieldVersion = "dataset_version"
	FieldRows    = "rows"
	FieldColumns = "columns"

	// Path / HTTP fields
	FieldPath     = "path"
	FieldRoute    = "route"
	FieldMethod   = "method"
	FieldStatus   = "status"
	FieldBytes    = "bytes"
	FieldDuration = "duration_ms"
)
