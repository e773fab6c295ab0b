// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"
	"path/filepath"

	"github.com/ManuGH/dmaic/internal/report"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	kind, err := report.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, r, badRequest("INVALID_REPORT_KIND", err))
		return
	}
	formats, err := report.ParseFormats(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, badRequest("INVALID_REPORT_FORMAT", err))
		return
	}
	version, err := queryInt(r, "version", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	gen, err := s.deps.Reports.Generate(r.Context(), report.Request{
		ProjectID: chi.URLParam(r, "id"),
		Kind:      kind,
		Formats:   formats,
		Dataset:   r.URL.Query().Get("dataset"),
		Version:   version,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	names := make([]string, 0, len(gen.Outputs))
	for _, out := range gen.Outputs {
		names = append(names, out.Name)
	}
	s.deps.Audit.ReportGenerated(r, chi.URLParam(r, "id"), string(kind), names)
	writeJSON(w, http.StatusCreated, gen)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Projects.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.deps.Projects.Reports(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleDownloadReport serves a generated report file by name. Names are
// confined to the results directory.
func (s *Server) handleDownloadReport(w http.ResponseWriter, r *http.Request) {
	path, err := s.deps.Results.Locate(chi.URLParam(r, "file"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	switch filepath.Ext(path) {
	case ".pdf":
		w.Header().Set("Content-Type", "application/pdf")
	case ".html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case ".json":
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}
