// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/dmaic/internal/analysis"
	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/ingest"
	"github.com/go-chi/chi/v5"
)

const (
	defaultRowLimit = 100
	maxRowLimit     = 1000
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, fmt.Errorf("%w: limit is %d bytes", ingest.ErrTooLarge, s.cfg.MaxUploadBytes))
			return
		}
		writeError(w, r, badRequest("INVALID_MULTIPART", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, badRequest("MISSING_FILE", errors.New("multipart field \"file\" is required")))
		return
	}
	defer func() { _ = file.Close() }()

	purpose := catalog.Purpose(r.FormValue("purpose"))
	switch purpose {
	case "":
		purpose = catalog.PurposeData
	case catalog.PurposeData, catalog.PurposeDocument:
	default:
		writeError(w, r, badRequest("INVALID_PURPOSE", fmt.Errorf("purpose must be %q or %q", catalog.PurposeData, catalog.PurposeDocument)))
		return
	}

	res, err := s.deps.Files.Save(r.Context(), header.Filename, file, ingest.SaveOptions{
		Purpose: purpose,
		Notes:   r.FormValue("notes"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Audit.FileIngested(r, res.ID, res.Filename, res.Duplicate)
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.deps.Catalog.ListFiles(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleProfileFile(w http.ResponseWriter, r *http.Request) {
	prof, err := s.deps.Curator.ProfileFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prof)
}

type curateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCurate(w http.ResponseWriter, r *http.Request) {
	var req curateRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Curator.Curate(r.Context(), chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Audit.DatasetCurated(r, chi.URLParam(r, "id"), res.Dataset.Name, res.Dataset.Version)
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Catalog.ListDatasets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleDatasetVersions(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Catalog.DatasetVersions(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type rowsResponse struct {
	Dataset   catalog.DatasetVersion `json:"dataset"`
	TotalRows int                    `json:"total_rows"`
	Offset    int                    `json:"offset"`
	Limit     int                    `json:"limit"`
	Rows      []map[string]any       `json:"rows"`
}

func (s *Server) handleDatasetRows(w http.ResponseWriter, r *http.Request) {
	version, err := queryInt(r, "version", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", defaultRowLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit = min(max(limit, 1), maxRowLimit)

	v, frame, err := s.deps.Curator.Open(r.Context(), chi.URLParam(r, "name"), version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rowsResponse{
		Dataset:   v,
		TotalRows: frame.Rows(),
		Offset:    int(offset),
		Limit:     int(limit),
		Rows:      frame.Records(int(offset), int(limit)),
	})
}

func (s *Server) handleRunAnalysis(w http.ResponseWriter, r *http.Request) {
	version, err := queryInt(r, "version", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	raw := map[string]any{}
	if err := decodeJSON(w, r, &raw, true); err != nil {
		writeError(w, r, err)
		return
	}
	params, err := analysis.ParamsFromAny(raw)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.deps.Analysis.Run(r.Context(), analysis.Request{
		Kind:    analysis.Kind(chi.URLParam(r, "kind")),
		Dataset: chi.URLParam(r, "name"),
		Version: version,
		Params:  params,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type analysisKind struct {
	Kind  analysis.Kind `json:"kind"`
	Phase string        `json:"phase"`
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, _ *http.Request) {
	kinds := analysis.Kinds()
	out := make([]analysisKind, len(kinds))
	for i, k := range kinds {
		out[i] = analysisKind{Kind: k, Phase: k.Phase()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	runs, err := s.deps.Catalog.ListRuns(r.Context(), catalog.RunFilter{
		Phase:   r.URL.Query().Get("phase"),
		Dataset: r.URL.Query().Get("dataset"),
		Limit:   int(limit),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}
