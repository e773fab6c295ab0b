// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Analysis attributes
	AnalysisKindKey    = "analysis.kind"
	AnalysisCachedKey  = "analysis.cached"
	AnalysisRunIDKey   = "analysis.run_id"
	DatasetNameKey     = "dataset.name"
	DatasetVersionKey  = "dataset.version"
	DatasetRowsKey     = "dataset.rows"
	ReportKindKey      = "report.kind"
	ReportFormatsKey   = "report.formats"
	UploadPurposeKey   = "upload.purpose"
	UploadSizeBytesKey = "upload.size_bytes"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// AnalysisAttributes describes one analysis request.
func AnalysisAttributes(kind, dataset string, version int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AnalysisKindKey, kind)}
	if dataset != "" {
		attrs = append(attrs, attribute.String(DatasetNameKey, dataset))
	}
	if version > 0 {
		attrs = append(attrs, attribute.Int64(DatasetVersionKey, version))
	}
	return attrs
}

// ReportAttributes describes a report rendering.
func ReportAttributes(kind string, formats []string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ReportKindKey, kind),
		attribute.StringSlice(ReportFormatsKey, formats),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}

// RecordError marks span as failed with err.
func RecordError(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetAttributes(ErrorAttributes(errorType)...)
	span.SetStatus(codes.Error, err.Error())
}
