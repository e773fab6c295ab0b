// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api implements the dmaic HTTP interface under /api/v1.
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ManuGH/dmaic/internal/analysis"
	"github.com/ManuGH/dmaic/internal/api/middleware"
	"github.com/ManuGH/dmaic/internal/audit"
	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/config"
	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/health"
	"github.com/ManuGH/dmaic/internal/ingest"
	"github.com/ManuGH/dmaic/internal/project"
	"github.com/ManuGH/dmaic/internal/report"
	"github.com/go-chi/chi/v5"
)

// multipartOverhead is allowed on top of the upload ceiling for form fields
// and part headers.
const multipartOverhead = 1 << 20

// ErrMissingDependency is returned by New when a dependency is nil.
var ErrMissingDependency = errors.New("api: missing dependency")

// Config configures the HTTP layer.
type Config struct {
	MaxUploadBytes int64
	AllowedOrigins []string
	RateLimitRPM   int
	// TracingService enables otelhttp spans when non-empty.
	TracingService string
	EnableMetrics  bool
}

// ConfigFrom derives the HTTP configuration from the application config.
func ConfigFrom(cfg config.AppConfig) Config {
	c := Config{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: cfg.API.AllowedOrigins,
		RateLimitRPM:   cfg.API.RateLimitRPM,
		EnableMetrics:  true,
	}
	if cfg.Telemetry.Enabled {
		c.TracingService = cfg.Telemetry.ServiceName
	}
	return c
}

// Deps are the services behind the handlers.
type Deps struct {
	Catalog  *catalog.Store
	Files    *ingest.Repository
	Curator  *dataset.Curator
	Analysis *analysis.Service
	Projects *project.Store
	Reports  *report.Generator
	Results  *report.Writer
	Health   *health.Manager
	// Audit defaults to the "audit" component logger.
	Audit *audit.Logger
}

func (d Deps) validate() error {
	checks := []struct {
		name    string
		missing bool
	}{
		{"catalog", d.Catalog == nil},
		{"files", d.Files == nil},
		{"curator", d.Curator == nil},
		{"analysis", d.Analysis == nil},
		{"projects", d.Projects == nil},
		{"reports", d.Reports == nil},
		{"results", d.Results == nil},
		{"health", d.Health == nil},
	}
	for _, c := range checks {
		if c.missing {
			return fmt.Errorf("%w: %s", ErrMissingDependency, c.name)
		}
	}
	return nil
}

// Server routes HTTP requests to the dmaic services.
type Server struct {
	cfg    Config
	deps   Deps
	router chi.Router
}

// New builds the router with the full middleware stack.
func New(cfg Config, deps Deps) (*Server, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Audit == nil {
		deps.Audit = audit.NewLogger()
	}
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  s.cfg.EnableMetrics,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
		RateLimitRPM:   s.cfg.RateLimitRPM,
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, Problem{Type: problemTypeBase + "NOT_FOUND", Status: http.StatusNotFound, Code: "NOT_FOUND"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, Problem{Type: problemTypeBase + "METHOD_NOT_ALLOWED", Status: http.StatusMethodNotAllowed, Code: "METHOD_NOT_ALLOWED"})
	})

	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.yaml", serveOpenAPI)

		r.Route("/files", func(r chi.Router) {
			r.Post("/", s.handleUpload)
			r.Get("/", s.handleListFiles)
			r.Get("/{id}/profile", s.handleProfileFile)
			r.Post("/{id}/curate", s.handleCurate)
		})

		r.Route("/datasets", func(r chi.Router) {
			r.Get("/", s.handleListDatasets)
			r.Get("/{name}", s.handleDatasetVersions)
			r.Get("/{name}/rows", s.handleDatasetRows)
			r.Post("/{name}/analyses/{kind}", s.handleRunAnalysis)
		})
		r.Get("/analyses", s.handleListAnalyses)
		r.Get("/runs", s.handleListRuns)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.handleCreateProject)
			r.Get("/", s.handleListProjects)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetProject)
				r.Patch("/", s.handleUpdateProject)
				r.Post("/advance", s.handleAdvanceProject)
				r.Get("/summary", s.handleProjectSummary)

				r.Put("/charter", putDocument(s, project.DocCharter, project.Charter.Validate))
				r.Get("/charter", getDocument(s, project.DocCharter, charterView))
				r.Put("/stakeholders", putDocument(s, project.DocStakeholders, project.ValidateStakeholders))
				r.Get("/stakeholders", getDocument(s, project.DocStakeholders, identity[[]project.Stakeholder]))
				r.Put("/ishikawa", putDocument(s, project.DocIshikawa, project.Ishikawa.Validate))
				r.Get("/ishikawa", getDocument(s, project.DocIshikawa, ishikawaView))
				r.Put("/action-plan", putDocument(s, project.DocActionPlan, project.ActionPlan.Validate))
				r.Get("/action-plan", getDocument(s, project.DocActionPlan, actionPlanView))
				r.Put("/control-plan", putDocument(s, project.DocControlPlan, project.ControlPlan.Validate))
				r.Get("/control-plan", getDocument(s, project.DocControlPlan, identity[project.ControlPlan]))
				r.Post("/control-plan/check", s.handleCheckAlerts)

				r.Post("/kpis", s.handleRecordKPI)
				r.Get("/kpis", s.handleListKPIs)
				r.Get("/kpis/status", s.handleKPIStatus)

				r.Post("/simulations", s.handleSimulate)

				r.Post("/reports/{kind}", s.handleGenerateReport)
				r.Get("/reports", s.handleListReports)
			})
		})

		r.Get("/reports/{file}", s.handleDownloadReport)
	})
	return r
}
