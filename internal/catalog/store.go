// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package catalog is the SQLite registry of uploaded files, curated dataset
// versions and analysis runs.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/dmaic/internal/persistence/sqlite"
)

var migrations = []string{
	`
	CREATE TABLE files (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		stored_path TEXT NOT NULL,
		ext TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		purpose TEXT NOT NULL CHECK(purpose IN ('data', 'document')),
		notes TEXT NOT NULL DEFAULT '',
		uploaded_at TEXT NOT NULL
	);

	CREATE TABLE datasets (
		name TEXT NOT NULL,
		version INTEGER NOT NULL,
		parquet_path TEXT NOT NULL,
		source_file_id TEXT,
		created_at TEXT NOT NULL,
		row_count INTEGER NOT NULL,
		col_count INTEGER NOT NULL,
		columns_json TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (name, version)
	);

	CREATE TABLE analysis_runs (
		run_id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		kind TEXT NOT NULL,
		dataset_name TEXT,
		dataset_version INTEGER,
		parameters TEXT NOT NULL DEFAULT '{}',
		result_path TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX idx_files_uploaded ON files(uploaded_at);
	CREATE INDEX idx_datasets_created ON datasets(created_at);
	CREATE INDEX idx_runs_phase ON analysis_runs(phase, created_at);
	CREATE INDEX idx_runs_dataset ON analysis_runs(dataset_name, created_at);
	`,
}

// Store provides SQLite persistence for the catalog.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the catalog at dbPath and migrates it.
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
		return nil, fmt.Errorf("catalog: run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RegisterFile inserts or replaces a file record keyed by content id.
func (s *Store) RegisterFile(ctx context.Context, rec FileRecord) error {
	query := `
	INSERT INTO files (id, filename, stored_path, ext, size_bytes, purpose, notes, uploaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		filename = excluded.filename,
		stored_path = excluded.stored_path,
		ext = excluded.ext,
		size_bytes = excluded.size_bytes,
		purpose = excluded.purpose,
		notes = excluded.notes,
		uploaded_at = excluded.uploaded_at
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Filename, rec.StoredPath, rec.Ext, rec.SizeBytes, string(rec.Purpose), rec.Notes, formatTime(rec.UploadedAt))
	if err != nil {
		return fmt.Errorf("register file %s: %w", rec.ID, err)
	}
	return nil
}

const fileColumns = `id, filename, stored_path, ext, size_bytes, purpose, notes, uploaded_at`

func scanFile(sc interface{ Scan(...any) error }) (FileRecord, error) {
	var rec FileRecord
	var purpose, uploaded string
	err := sc.Scan(&rec.ID, &rec.Filename, &rec.StoredPath, &rec.Ext, &rec.SizeBytes, &purpose, &rec.Notes, &uploaded)
	rec.Purpose = Purpose(purpose)
	rec.UploadedAt = parseTime(uploaded)
	return rec, err
}

// GetFile returns a file record by id.
func (s *Store) GetFile(ctx context.Context, id string) (FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	rec, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FileRecord{}, fmt.Errorf("file %s: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListFiles returns all files, newest first.
func (s *Store) ListFiles(ctx context.Context) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []FileRecord{}
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RegisterDataset inserts a new dataset version.
func (s *Store) RegisterDataset(ctx context.Context, v DatasetVersion) error {
	cols, err := json.Marshal(v.Columns)
	if err != nil {
		return err
	}
	if v.Columns == nil {
		cols = []byte("[]")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM datasets WHERE name = ? AND version = ?`, v.Name, v.Version).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("%s@%d: %w", v.Name, v.Version, ErrVersionExists)
	case !errors.Is(err, sql.ErrNoRows):
		return err
	}

	var source any
	if v.SourceFileID != "" {
		source = v.SourceFileID
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO datasets (name, version, parquet_path, source_file_id, created_at, row_count, col_count, columns_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.Name, v.Version, v.ParquetPath, source, formatTime(v.CreatedAt), v.RowCount, v.ColCount, string(cols))
	if err != nil {
		return fmt.Errorf("register dataset %s@%d: %w", v.Name, v.Version, err)
	}
	return tx.Commit()
}

const datasetColumns = `name, version, parquet_path, source_file_id, created_at, row_count, col_count, columns_json`

func scanDataset(sc interface{ Scan(...any) error }) (DatasetVersion, error) {
	var v DatasetVersion
	var source sql.NullString
	var created, cols string
	if err := sc.Scan(&v.Name, &v.Version, &v.ParquetPath, &source, &created, &v.RowCount, &v.ColCount, &cols); err != nil {
		return v, err
	}
	v.SourceFileID = source.String
	v.CreatedAt = parseTime(created)
	if err := json.Unmarshal([]byte(cols), &v.Columns); err != nil {
		return v, fmt.Errorf("decode columns of %s@%d: %w", v.Name, v.Version, err)
	}
	return v, nil
}

func (s *Store) queryDatasets(ctx context.Context, query string, args ...any) ([]DatasetVersion, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []DatasetVersion{}
	for rows.Next() {
		v, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListDatasets returns the latest version of every dataset, newest first.
func (s *Store) ListDatasets(ctx context.Context) ([]DatasetVersion, error) {
	return s.queryDatasets(ctx, `
	SELECT d.name, d.version, d.parquet_path, d.source_file_id, d.created_at, d.row_count, d.col_count, d.columns_json
	FROM datasets d
	JOIN (SELECT name, MAX(version) AS version FROM datasets GROUP BY name) latest
		ON latest.name = d.name AND latest.version = d.version
	ORDER BY d.version DESC, d.name`)
}

// DatasetVersions lists every version of name, newest first.
func (s *Store) DatasetVersions(ctx context.Context, name string) ([]DatasetVersion, error) {
	out, err := s.queryDatasets(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE name = ? ORDER BY version DESC`, name)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return out, nil
}

// LatestDataset returns the newest version of name.
func (s *Store) LatestDataset(ctx context.Context, name string) (DatasetVersion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE name = ? ORDER BY version DESC LIMIT 1`, name)
	v, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetVersion{}, fmt.Errorf("dataset %s: %w", name, ErrNotFound)
	}
	return v, err
}

// DatasetVersion returns one specific version.
func (s *Store) DatasetVersion(ctx context.Context, name string, version int64) (DatasetVersion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE name = ? AND version = ?`, name, version)
	v, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DatasetVersion{}, fmt.Errorf("dataset %s@%d: %w", name, version, ErrNotFound)
	}
	return v, err
}

// ResolveDataset returns version when non-zero, the latest otherwise.
func (s *Store) ResolveDataset(ctx context.Context, name string, version int64) (DatasetVersion, error) {
	if version == 0 {
		return s.LatestDataset(ctx, name)
	}
	return s.DatasetVersion(ctx, name, version)
}

// NextVersion returns the version to use for a new snapshot of name: the
// candidate (unix seconds) unless an equal or newer version already exists.
func (s *Store) NextVersion(ctx context.Context, name string, candidate int64) (int64, error) {
	var latest sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM datasets WHERE name = ?`, name).Scan(&latest); err != nil {
		return 0, err
	}
	if latest.Valid && latest.Int64 >= candidate {
		return latest.Int64 + 1, nil
	}
	return candidate, nil
}

// RecordRun stores an analysis run.
func (s *Store) RecordRun(ctx context.Context, r Run) error {
	params := string(r.Parameters)
	if params == "" {
		params = "{}"
	}
	var dsName, dsVersion, resultPath any
	if r.DatasetName != "" {
		dsName = r.DatasetName
		dsVersion = r.DatasetVersion
	}
	if r.ResultPath != "" {
		resultPath = r.ResultPath
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO analysis_runs (run_id, phase, kind, dataset_name, dataset_version, parameters, result_path, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Phase, r.Kind, dsName, dsVersion, params, resultPath, formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns returns runs matching f, newest first.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	var where []string
	var args []any
	if f.Phase != "" {
		where = append(where, "phase = ?")
		args = append(args, f.Phase)
	}
	if f.Dataset != "" {
		where = append(where, "dataset_name = ?")
		args = append(args, f.Dataset)
	}
	query := `SELECT run_id, phase, kind, dataset_name, dataset_version, parameters, result_path, created_at FROM analysis_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, run_id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Run{}
	for rows.Next() {
		var r Run
		var dsName, resultPath sql.NullString
		var dsVersion sql.NullInt64
		var params, created string
		if err := rows.Scan(&r.ID, &r.Phase, &r.Kind, &dsName, &dsVersion, &params, &resultPath, &created); err != nil {
			return nil, err
		}
		r.DatasetName = dsName.String
		r.DatasetVersion = dsVersion.Int64
		r.Parameters = json.RawMessage(params)
		r.ResultPath = resultPath.String
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns catalog totals.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
	SELECT
		(SELECT COUNT(*) FROM files),
		(SELECT COUNT(DISTINCT name) FROM datasets),
		(SELECT COUNT(*) FROM datasets),
		(SELECT COUNT(*) FROM analysis_runs)`).Scan(&c.Files, &c.Datasets, &c.Versions, &c.Runs)
	return c, err
}
