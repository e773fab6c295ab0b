// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/fsutil"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/metrics"
)

// FileLocator resolves stored uploads.
type FileLocator interface {
	Locate(ctx context.Context, id string) (catalog.FileRecord, error)
}

// VersionStore is the subset of the catalog used for dataset versions.
type VersionStore interface {
	NextVersion(ctx context.Context, name string, candidate int64) (int64, error)
	RegisterDataset(ctx context.Context, v catalog.DatasetVersion) error
	ResolveDataset(ctx context.Context, name string, version int64) (catalog.DatasetVersion, error)
}

// Curator turns stored uploads into versioned Parquet datasets.
type Curator struct {
	files  FileLocator
	store  VersionStore
	outDir string
	now    func() time.Time
}

// NewCurator writes curated files to outDir.
func NewCurator(files FileLocator, store VersionStore, outDir string) *Curator {
	return &Curator{files: files, store: store, outDir: outDir, now: time.Now}
}

// Curated is the outcome of a curation.
type Curated struct {
	Dataset catalog.DatasetVersion `json:"dataset"`
	Report  CurationReport         `json:"report"`
	Profile Profile                `json:"profile"`
}

// LoadFile parses a stored upload without curating it.
func (c *Curator) LoadFile(ctx context.Context, fileID string) (*Frame, error) {
	rec, err := c.files.Locate(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return Load(rec.StoredPath)
}

// ProfileFile returns the quality report of a stored upload.
func (c *Curator) ProfileFile(ctx context.Context, fileID string) (Profile, error) {
	f, err := c.LoadFile(ctx, fileID)
	if err != nil {
		return Profile{}, err
	}
	return ProfileFrame(f), nil
}

// Curate loads fileID, curates it and registers a new version of name.
func (c *Curator) Curate(ctx context.Context, fileID, name string) (Curated, error) {
	if err := ValidateName(name); err != nil {
		return Curated{}, err
	}
	logger := log.WithComponentFromContext(ctx, "curator")

	raw, err := c.LoadFile(ctx, fileID)
	if err != nil {
		metrics.RecordCuration(false, 0)
		return Curated{}, err
	}
	curated, report := Curate(raw)

	fill, err := parquetEncoder(curated)
	if err != nil {
		metrics.RecordCuration(false, 0)
		return Curated{}, err
	}
	staged, err := fsutil.Stage(c.outDir, 0o640, fill)
	if err != nil {
		metrics.RecordCuration(false, 0)
		return Curated{}, fmt.Errorf("write parquet: %w", err)
	}
	defer func() { _ = staged.Cleanup() }()

	cols := make([]catalog.ColumnInfo, len(curated.Columns))
	for i, col := range curated.Columns {
		cols[i] = catalog.ColumnInfo{Name: col.Name, Kind: string(col.Kind)}
	}
	now := c.now().UTC()
	v := catalog.DatasetVersion{
		Name:         name,
		SourceFileID: fileID,
		CreatedAt:    now,
		RowCount:     curated.Rows(),
		ColCount:     len(curated.Columns),
		Columns:      cols,
	}
	if err := c.publish(ctx, staged, &v, now.Unix()); err != nil {
		metrics.RecordCuration(false, 0)
		return Curated{}, err
	}
	version := v.Version

	metrics.RecordCuration(true, v.RowCount)
	logger.Info().
		Str(log.FieldEvent, "dataset.curated").
		Str(log.FieldDataset, name).
		Int64(log.FieldVersion, version).
		Str(log.FieldFileID, fileID).
		Int(log.FieldRows, v.RowCount).
		Int("dropped_rows", report.DroppedRows).
		Msg("dataset version registered")

	return Curated{Dataset: v, Report: report, Profile: ProfileFrame(curated)}, nil
}

// maxPublishAttempts bounds the retries when concurrent curations of the
// same name race for a version.
const maxPublishAttempts = 16

// publish claims the first free version at or after candidate. A version is
// claimed by linking the staged file to its path, which fails when another
// curation got there first; the catalog row is written only after that.
func (c *Curator) publish(ctx context.Context, staged *fsutil.Staged, v *catalog.DatasetVersion, candidate int64) error {
	for range maxPublishAttempts {
		version, err := c.store.NextVersion(ctx, v.Name, candidate)
		if err != nil {
			return err
		}
		path := filepath.Join(c.outDir, fmt.Sprintf("%s_%d.parquet", v.Name, version))
		if err := staged.Publish(path); err != nil {
			if errors.Is(err, fs.ErrExist) {
				candidate = version + 1
				continue
			}
			return err
		}

		v.Version = version
		v.ParquetPath = path
		err = c.store.RegisterDataset(ctx, *v)
		if err == nil {
			return nil
		}
		_ = os.Remove(path)
		if !errors.Is(err, catalog.ErrVersionExists) {
			return err
		}
		candidate = version + 1
	}
	return fmt.Errorf("%s: no free version after %d attempts: %w", v.Name, maxPublishAttempts, catalog.ErrVersionExists)
}

// Open loads a curated version (latest when version is 0).
func (c *Curator) Open(ctx context.Context, name string, version int64) (catalog.DatasetVersion, *Frame, error) {
	v, err := c.store.ResolveDataset(ctx, name, version)
	if err != nil {
		return v, nil, err
	}
	f, err := ReadParquet(v.ParquetPath)
	if err != nil {
		return v, nil, err
	}
	return v, f, nil
}
