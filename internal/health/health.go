// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks with per-component
// status.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/persistence/sqlite"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{
		version:  version,
		checkers: make([]Checker, 0),
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// run executes every checker and folds the results into one status.
func (m *Manager) run(ctx context.Context) (Status, map[string]CheckResult) {
	status := StatusHealthy
	checks := make(map[string]CheckResult, len(m.checkers))
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		checks[checker.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status == StatusHealthy {
				status = StatusDegraded
			}
		}
	}
	return status, checks
}

// Health performs a liveness check. Component checks only run when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
	}
	if verbose && len(m.checkers) > 0 {
		resp.Status, resp.Checks = m.run(ctx)
	}
	return resp
}

// Ready performs a readiness check. Any unhealthy component makes the
// service not ready; degraded components do not.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Status, resp.Checks = m.run(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

func verbose(r *http.Request) bool {
	v := strings.ToLower(r.URL.Query().Get("verbose"))
	return v == "1" || v == "true"
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	resp := m.Health(r.Context(), verbose(r))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}
	if !resp.Ready {
		logger.Warn().
			Str(log.FieldEvent, "readiness.failed").
			Str("status", string(resp.Status)).
			Msg("service not ready")
	}
}

// SQLiteChecker runs PRAGMA quick_check on an open database.
type SQLiteChecker struct {
	name string
	db   *sql.DB
}

// NewSQLiteChecker creates a checker for db.
func NewSQLiteChecker(name string, db *sql.DB) *SQLiteChecker {
	return &SQLiteChecker{name: name, db: db}
}

func (c *SQLiteChecker) Name() string { return c.name }

func (c *SQLiteChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	problems, err := sqlite.CheckIntegrity(ctx, c.db, "quick")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if len(problems) > 0 {
		return CheckResult{Status: StatusUnhealthy, Error: strings.Join(problems, "; "), Message: "integrity check failed"}
	}
	return CheckResult{Status: StatusHealthy, Message: "integrity ok"}
}

// DirChecker verifies that storage directories exist and are writable.
type DirChecker struct {
	dirs []string
}

// NewDirChecker creates a checker for dirs.
func NewDirChecker(dirs ...string) *DirChecker {
	return &DirChecker{dirs: dirs}
}

func (c *DirChecker) Name() string { return "storage" }

func (c *DirChecker) Check(context.Context) CheckResult {
	for _, dir := range c.dirs {
		if err := writable(dir); err != nil {
			return CheckResult{Status: StatusUnhealthy, Error: err.Error(), Message: dir}
		}
	}
	return CheckResult{Status: StatusHealthy, Message: "storage writable"}
}

func writable(dir string) error {
	f, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}

// Pinger is implemented by remote cache backends.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// CacheChecker pings the result cache. A failing cache only degrades the
// service since analyses still run uncached.
type CacheChecker struct {
	backend string
	pinger  Pinger
}

// NewCacheChecker creates a cache checker. A nil pinger reports the
// in-process backend as healthy.
func NewCacheChecker(backend string, pinger Pinger) *CacheChecker {
	return &CacheChecker{backend: backend, pinger: pinger}
}

func (c *CacheChecker) Name() string { return "cache" }

func (c *CacheChecker) Check(ctx context.Context) CheckResult {
	if c.pinger == nil {
		return CheckResult{Status: StatusHealthy, Message: c.backend}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.pinger.HealthCheck(ctx); err != nil {
		return CheckResult{Status: StatusDegraded, Error: err.Error(), Message: c.backend}
	}
	return CheckResult{Status: StatusHealthy, Message: c.backend}
}
