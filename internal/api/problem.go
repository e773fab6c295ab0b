// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/ManuGH/dmaic/internal/analysis"
	"github.com/ManuGH/dmaic/internal/api/middleware"
	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/fsutil"
	"github.com/ManuGH/dmaic/internal/ingest"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/project"
	"github.com/ManuGH/dmaic/internal/report"
	"github.com/ManuGH/dmaic/internal/stats"
	"github.com/ManuGH/dmaic/internal/validate"
)

// problemTypeBase prefixes the type URI of every problem document.
const problemTypeBase = "https://dmaic.dev/problems/"

// Problem is an RFC 7807 problem details document.
type Problem struct {
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	Status    int          `json:"status"`
	Code      string       `json:"code"`
	Detail    string       `json:"detail,omitempty"`
	Instance  string       `json:"instance,omitempty"`
	RequestID string       `json:"requestId"`
	Errors    []FieldError `json:"errors,omitempty"`
}

// FieldError is one failed validation rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// apiError is a classified error ready to be written.
type apiError struct {
	status int
	code   string
	err    error
}

func (e *apiError) Error() string { return e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

func badRequest(code string, err error) error {
	return &apiError{status: http.StatusBadRequest, code: code, err: err}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem writes an RFC 7807 problem details response.
func writeProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	p.Instance = r.URL.EscapedPath()
	p.RequestID = log.RequestIDFromContext(r.Context())
	if p.RequestID == "" {
		p.RequestID = w.Header().Get(middleware.HeaderRequestID)
	}
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.FromContext(r.Context()).Error().Err(err).Int(log.FieldStatus, p.Status).Msg("failed to encode problem response")
	}
}

// classify maps domain errors to HTTP status codes and stable codes.
func classify(err error) (int, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.code
	}
	var ve validate.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, "VALIDATION_FAILED"
	}
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr), errors.Is(err, ingest.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, ingest.ErrUnsupportedFormat), errors.Is(err, dataset.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_FORMAT"
	case errors.Is(err, ingest.ErrEmptyFile):
		return http.StatusBadRequest, "EMPTY_FILE"
	case errors.Is(err, dataset.ErrNoHeader):
		return http.StatusUnprocessableEntity, "NO_HEADER"
	case errors.Is(err, dataset.ErrInvalidName):
		return http.StatusBadRequest, "INVALID_NAME"
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, project.ErrNotFound),
		errors.Is(err, project.ErrDocumentNotFound), errors.Is(err, fsutil.ErrNotRegular),
		errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, fsutil.ErrEscapesRoot):
		return http.StatusBadRequest, "INVALID_PATH"
	case errors.Is(err, project.ErrFinalPhase), errors.Is(err, project.ErrConcurrentChange),
		errors.Is(err, catalog.ErrVersionExists):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, analysis.ErrUnknownKind), errors.Is(err, analysis.ErrInvalidParams),
		errors.Is(err, report.ErrDatasetRequired):
		return http.StatusBadRequest, "INVALID_PARAMS"
	case errors.Is(err, stats.ErrInsufficientData), errors.Is(err, stats.ErrInsufficientGroups):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_DATA"
	case errors.Is(err, analysis.ErrColumnNotFound), errors.Is(err, analysis.ErrNotNumeric),
		errors.Is(err, stats.ErrNoNumericColumns):
		return http.StatusUnprocessableEntity, "INVALID_COLUMN"
	case analysis.IsInputError(err):
		return http.StatusUnprocessableEntity, "ANALYSIS_REJECTED"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

// writeError classifies err and writes it as a problem document. Server
// errors are logged and their detail is not exposed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	p := Problem{Type: problemTypeBase + code, Status: status, Code: code, Detail: err.Error()}
	var ve validate.ValidationError
	if errors.As(err, &ve) {
		for _, fe := range ve.Errors() {
			p.Errors = append(p.Errors, FieldError{Field: fe.Field, Message: fe.Message})
		}
	}
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).Error().Err(err).Str(log.FieldEvent, "request.failed").Msg("request failed")
		p.Detail = "internal error"
	}
	writeProblem(w, r, p)
}
