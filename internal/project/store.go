// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/dmaic/internal/metrics"
	"github.com/ManuGH/dmaic/internal/persistence/sqlite"
	"github.com/google/uuid"
)

var migrations = []string{
	`
	CREATE TABLE projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		company TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		start_date TEXT,
		target_date TEXT,
		champion TEXT NOT NULL DEFAULT '',
		leader TEXT NOT NULL DEFAULT '',
		expected_savings REAL NOT NULL DEFAULT 0,
		phase TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE project_documents (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (project_id, kind)
	);

	CREATE TABLE kpis (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		target REAL NOT NULL,
		current REAL NOT NULL,
		unit TEXT NOT NULL DEFAULT '',
		direction TEXT NOT NULL,
		tolerance REAL NOT NULL DEFAULT 0,
		measured_at TEXT NOT NULL
	);

	CREATE TABLE reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		format TEXT NOT NULL,
		path TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE simulations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX idx_kpis_project ON kpis(project_id, measured_at);
	CREATE INDEX idx_reports_project ON reports(project_id, created_at);
	CREATE INDEX idx_simulations_project ON simulations(project_id, created_at);
	`,
}

// Store persists projects and their phase documents.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the project database and migrates it.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	s, err := NewStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open pool and runs migrations.
func NewStore(ctx context.Context, db *sql.DB) (*Store, error) {
	if err := sqlite.Migrate(ctx, db, migrations); err != nil {
		return nil, fmt.Errorf("project: run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.DateOnly), Valid: true}
}

func parseDate(ns sql.NullString) time.Time {
	if !ns.Valid {
		return time.Time{}
	}
	t, err := time.Parse(time.DateOnly, ns.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Create assigns an id, fills defaults and stores a new project in Define.
func (s *Store) Create(ctx context.Context, p Project) (Project, error) {
	now := s.now().UTC()
	p.ID = uuid.NewString()
	p.Phase = PhaseDefine
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.Type == "" {
		p.Type = TypeOther
	}
	if p.StartDate.IsZero() {
		p.StartDate = now.Truncate(24 * time.Hour)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	if err := p.Validate(); err != nil {
		return Project{}, err
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO projects (id, name, description, company, department, type, start_date, target_date,
		champion, leader, expected_savings, phase, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Company, p.Department, string(p.Type),
		formatDate(p.StartDate), formatDate(p.TargetDate), p.Champion, p.Leader, p.ExpectedSavings,
		string(p.Phase), string(p.Status), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		return Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

const projectColumns = `id, name, description, company, department, type, start_date, target_date,
	champion, leader, expected_savings, phase, status, created_at, updated_at`

func scanProject(sc interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var typ, phase, status, created, updated string
	var start, target sql.NullString
	err := sc.Scan(&p.ID, &p.Name, &p.Description, &p.Company, &p.Department, &typ, &start, &target,
		&p.Champion, &p.Leader, &p.ExpectedSavings, &phase, &status, &created, &updated)
	p.Type, p.Phase, p.Status = Type(typ), Phase(phase), Status(status)
	p.StartDate, p.TargetDate = parseDate(start), parseDate(target)
	p.CreatedAt, p.UpdatedAt = parseTime(created), parseTime(updated)
	return p, err
}

// Get loads one project.
func (s *Store) Get(ctx context.Context, id string) (Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	return p, nil
}

// List returns projects, most recently updated first. An empty phase lists all.
func (s *Store) List(ctx context.Context, phase Phase) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if phase != "" {
		query += ` WHERE phase = ?`
		args = append(args, string(phase))
	}
	query += ` ORDER BY updated_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// maxUpdateAttempts bounds the optimistic retries of Update.
const maxUpdateAttempts = 5

// Update applies a patch and stores the result. The phase column is never
// written here, so a concurrent AdvancePhase is not reverted; a concurrent
// write to the other columns makes Update re-read and re-apply the patch.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Project, error) {
	for range maxUpdateAttempts {
		p, err := s.Get(ctx, id)
		if err != nil {
			return Project{}, err
		}
		seen := p.UpdatedAt
		p = patch.Apply(p)
		p.UpdatedAt = s.now().UTC()
		if err := p.Validate(); err != nil {
			return Project{}, err
		}
		ok, err := s.saveFields(ctx, p, seen)
		if err != nil {
			return Project{}, err
		}
		if ok {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("update %s: %w", id, ErrConcurrentChange)
}

// saveFields writes every column except phase, provided updated_at still
// holds seen.
func (s *Store) saveFields(ctx context.Context, p Project, seen time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
	UPDATE projects SET name = ?, description = ?, company = ?, department = ?, type = ?,
		start_date = ?, target_date = ?, champion = ?, leader = ?, expected_savings = ?,
		status = ?, updated_at = ?
	WHERE id = ? AND updated_at = ?`,
		p.Name, p.Description, p.Company, p.Department, string(p.Type),
		formatDate(p.StartDate), formatDate(p.TargetDate), p.Champion, p.Leader, p.ExpectedSavings,
		string(p.Status), formatTime(p.UpdatedAt), p.ID, formatTime(seen))
	if err != nil {
		return false, fmt.Errorf("update project %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update project %s: %w", p.ID, err)
	}
	return n == 1, nil
}

// AdvancePhase moves the project exactly one phase forward. The move only
// applies when the stored phase is still the one read; otherwise another
// advance won and ErrConcurrentChange is returned.
func (s *Store) AdvancePhase(ctx context.Context, id string) (Project, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Project{}, err
	}
	next, err := p.Phase.Next()
	if err != nil {
		return Project{}, err
	}
	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET phase = ?, updated_at = ? WHERE id = ? AND phase = ?`,
		string(next), formatTime(now), id, string(p.Phase))
	if err != nil {
		return Project{}, fmt.Errorf("advance project %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Project{}, fmt.Errorf("advance project %s: %w", id, err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return Project{}, err
		}
		return Project{}, fmt.Errorf("advance %s from %s: %w", id, p.Phase, ErrConcurrentChange)
	}
	metrics.RecordPhaseTransition(string(next))
	p.Phase = next
	p.UpdatedAt = now
	return p, nil
}

// SaveDocument stores a phase document as JSON, replacing any previous one.
func (s *Store) SaveDocument(ctx context.Context, id string, kind DocumentKind, doc any) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO project_documents (project_id, kind, body, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(project_id, kind) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		id, string(kind), string(body), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("save %s for %s: %w", kind, id, err)
	}
	return nil
}

// LoadDocument decodes a stored phase document into dst.
func (s *Store) LoadDocument(ctx context.Context, id string, kind DocumentKind, dst any) error {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM project_documents WHERE project_id = ? AND kind = ?`, id, string(kind)).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return gerr
		}
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, kind)
	}
	if err != nil {
		return fmt.Errorf("load %s for %s: %w", kind, id, err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("decode %s for %s: %w", kind, id, err)
	}
	return nil
}

// RecordKPI appends a KPI measurement.
func (s *Store) RecordKPI(ctx context.Context, id string, k KPI) (KPI, error) {
	if k.Direction == "" {
		k.Direction = DirectionTarget
	}
	if k.MeasuredAt.IsZero() {
		k.MeasuredAt = s.now().UTC()
	}
	if err := k.Validate(); err != nil {
		return KPI{}, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return KPI{}, err
	}
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO kpis (project_id, name, target, current, unit, direction, tolerance, measured_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, k.Name, k.Target, k.Current, k.Unit, string(k.Direction), k.Tolerance, formatTime(k.MeasuredAt))
	if err != nil {
		return KPI{}, fmt.Errorf("record kpi: %w", err)
	}
	k.ID, _ = res.LastInsertId()
	return k, nil
}

// KPIs returns the measurement history in measurement order.
func (s *Store) KPIs(ctx context.Context, id string) ([]KPI, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, name, target, current, unit, direction, tolerance, measured_at
	FROM kpis WHERE project_id = ? ORDER BY measured_at, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list kpis: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []KPI{}
	for rows.Next() {
		var k KPI
		var dir, measured string
		if err := rows.Scan(&k.ID, &k.Name, &k.Target, &k.Current, &k.Unit, &dir, &k.Tolerance, &measured); err != nil {
			return nil, err
		}
		k.Direction, k.MeasuredAt = Direction(dir), parseTime(measured)
		out = append(out, k)
	}
	return out, rows.Err()
}

// ReportRecord is a generated report file.
type ReportRecord struct {
	ID        int64     `json:"id"`
	ProjectID string    `json:"project_id"`
	Kind      string    `json:"kind"`
	Format    string    `json:"format"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordReport registers a generated report.
func (s *Store) RecordReport(ctx context.Context, r ReportRecord) (ReportRecord, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (project_id, kind, format, path, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ProjectID, r.Kind, r.Format, r.Path, formatTime(r.CreatedAt))
	if err != nil {
		return ReportRecord{}, fmt.Errorf("record report: %w", err)
	}
	r.ID, _ = res.LastInsertId()
	return r, nil
}

// Reports lists a project's reports, newest first.
func (s *Store) Reports(ctx context.Context, id string) ([]ReportRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, project_id, kind, format, path, created_at
	FROM reports WHERE project_id = ? ORDER BY created_at DESC, id DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []ReportRecord{}
	for rows.Next() {
		var r ReportRecord
		var created string
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Kind, &r.Format, &r.Path, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SaveSimulation runs and stores a what-if simulation.
func (s *Store) SaveSimulation(ctx context.Context, id string, baseline, simulated WaterQuality) (Simulation, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return Simulation{}, err
	}
	sim := Simulate(baseline, simulated)
	sim.CreatedAt = s.now().UTC()
	body, err := json.Marshal(sim)
	if err != nil {
		return Simulation{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO simulations (project_id, body, created_at) VALUES (?, ?, ?)`,
		id, string(body), formatTime(sim.CreatedAt))
	if err != nil {
		return Simulation{}, fmt.Errorf("save simulation: %w", err)
	}
	sim.ID, _ = res.LastInsertId()
	return sim, nil
}

func (s *Store) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}
