// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"net/http"

	"github.com/ManuGH/dmaic/internal/audit"
	"github.com/ManuGH/dmaic/internal/project"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var p project.Project
	if err := decodeJSON(w, r, &p, false); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.deps.Projects.Create(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Audit.ProjectChanged(r, audit.EventProjectCreate, created.ID, string(created.Phase))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	var phase project.Phase
	if raw := r.URL.Query().Get("phase"); raw != "" {
		p, err := project.ParsePhase(raw)
		if err != nil {
			writeError(w, r, badRequest("INVALID_QUERY", err))
			return
		}
		phase = p
	}
	list, err := s.deps.Projects.List(r.Context(), phase)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Projects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	var patch project.Patch
	if err := decodeJSON(w, r, &patch, false); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.deps.Projects.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Audit.ProjectChanged(r, audit.EventProjectUpdate, p.ID, string(p.Phase))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAdvanceProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Projects.AdvancePhase(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Audit.ProjectChanged(r, audit.EventProjectAdvance, p.ID, string(p.Phase))
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleProjectSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Projects.Summary(r.Context(), chi.URLParam(r, "id"), s.deps.Catalog)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// putDocument stores a validated phase document of type T.
func putDocument[T any](s *Server, kind project.DocumentKind, validate func(T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc T
		if err := decodeJSON(w, r, &doc, false); err != nil {
			writeError(w, r, err)
			return
		}
		if err := validate(doc); err != nil {
			writeError(w, r, err)
			return
		}
		if err := s.deps.Projects.SaveDocument(r.Context(), chi.URLParam(r, "id"), kind, doc); err != nil {
			writeError(w, r, err)
			return
		}
		s.deps.Audit.DocumentSaved(r, chi.URLParam(r, "id"), string(kind))
		writeJSON(w, http.StatusOK, doc)
	}
}

// getDocument loads a phase document of type T and renders it through view.
func getDocument[T any](s *Server, kind project.DocumentKind, view func(T) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var doc T
		if err := s.deps.Projects.LoadDocument(r.Context(), chi.URLParam(r, "id"), kind, &doc); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(doc))
	}
}

func identity[T any](v T) any { return v }

type charterResponse struct {
	project.Charter
	ImprovementNeeded float64 `json:"improvement_needed_pct"`
}

func charterView(c project.Charter) any {
	return charterResponse{Charter: c, ImprovementNeeded: c.ImprovementNeeded()}
}

type ishikawaResponse struct {
	project.Ishikawa
	Prioritized []project.Cause `json:"prioritized"`
	Top         []project.Cause `json:"top"`
}

func ishikawaView(d project.Ishikawa) any {
	return ishikawaResponse{Ishikawa: d, Prioritized: d.Prioritized(), Top: d.Top(3)}
}

type actionPlanResponse struct {
	project.ActionPlan
	TotalCost float64                      `json:"total_cost"`
	Completed int                          `json:"completed"`
	ByStatus  map[project.ActionStatus]int `json:"by_status"`
}

func actionPlanView(a project.ActionPlan) any {
	return actionPlanResponse{ActionPlan: a, TotalCost: a.TotalCost(), Completed: a.Completed(), ByStatus: a.CountByStatus()}
}

func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	var values map[string]float64
	if err := decodeJSON(w, r, &values, false); err != nil {
		writeError(w, r, err)
		return
	}
	var plan project.ControlPlan
	if err := s.deps.Projects.LoadDocument(r.Context(), chi.URLParam(r, "id"), project.DocControlPlan, &plan); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan.CheckAlerts(values))
}

func (s *Server) handleRecordKPI(w http.ResponseWriter, r *http.Request) {
	var k project.KPI
	if err := decodeJSON(w, r, &k, false); err != nil {
		writeError(w, r, err)
		return
	}
	stored, err := s.deps.Projects.RecordKPI(r.Context(), chi.URLParam(r, "id"), k)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Audit.KPIRecorded(r, chi.URLParam(r, "id"), stored.Name)
	writeJSON(w, http.StatusCreated, stored.Evaluate())
}

func (s *Server) handleListKPIs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Projects.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	history, err := s.deps.Projects.KPIs(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleKPIStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Projects.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	history, err := s.deps.Projects.KPIs(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project.NewDashboard(history))
}

type simulationRequest struct {
	Baseline  project.WaterQuality `json:"baseline"`
	Simulated project.WaterQuality `json:"simulated"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	sim, err := s.deps.Projects.SaveSimulation(r.Context(), chi.URLParam(r, "id"), req.Baseline, req.Simulated)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.deps.Audit.SimulationRecorded(r, chi.URLParam(r, "id"), sim.ID)
	writeJSON(w, http.StatusCreated, sim)
}
