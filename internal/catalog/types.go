// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a file, dataset or run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionExists is returned when a dataset version is registered twice.
	ErrVersionExists = errors.New("dataset version already exists")
)

// Purpose tells what an uploaded file is for.
type Purpose string

const (
	PurposeData     Purpose = "data"
	PurposeDocument Purpose = "document"
)

// FileRecord is a raw upload kept in the file repository.
type FileRecord struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	StoredPath string    `json:"stored_path"`
	Ext        string    `json:"ext"`
	SizeBytes  int64     `json:"size_bytes"`
	Purpose    Purpose   `json:"purpose"`
	Notes      string    `json:"notes"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// ColumnInfo describes one curated column.
type ColumnInfo struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// DatasetVersion is one curated, immutable snapshot of a dataset.
type DatasetVersion struct {
	Name         string       `json:"name"`
	Version      int64        `json:"version"`
	ParquetPath  string       `json:"parquet_path"`
	SourceFileID string       `json:"source_file_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	RowCount     int          `json:"row_count"`
	ColCount     int          `json:"col_count"`
	Columns      []ColumnInfo `json:"columns"`
}

// Run records one executed analysis.
type Run struct {
	ID             string          `json:"run_id"`
	Phase          string          `json:"phase"`
	Kind           string          `json:"kind"`
	DatasetName    string          `json:"dataset,omitempty"`
	DatasetVersion int64           `json:"dataset_version,omitempty"`
	Parameters     json.RawMessage `json:"parameters"`
	ResultPath     string          `json:"result_path,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RunFilter narrows ListRuns. Zero values match everything.
type RunFilter struct {
	Phase   string
	Dataset string
	Limit   int
}

// Counts is used by dashboards.
type Counts struct {
	Files    int `json:"files"`
	Datasets int `json:"datasets"`
	Versions int `json:"versions"`
	Runs     int `json:"runs"`
}
