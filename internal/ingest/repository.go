// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ingest stores uploaded files on disk under a content-derived id
// and registers them in the catalog.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/fsutil"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/metrics"
)

var (
	// ErrUnsupportedFormat is returned for extensions outside the allowlist.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrTooLarge is returned when an upload exceeds the size ceiling.
	ErrTooLarge = errors.New("file too large")
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("file is empty")
)

// FileCatalog is the subset of the catalog the repository needs.
type FileCatalog interface {
	RegisterFile(ctx context.Context, rec catalog.FileRecord) error
	GetFile(ctx context.Context, id string) (catalog.FileRecord, error)
}

// Config bounds what the repository accepts.
type Config struct {
	Dir                string
	MaxBytes           int64
	DataExtensions     []string
	DocumentExtensions []string
}

// Repository writes uploads to Dir as <id>_<unixSeconds><ext>.
type Repository struct {
	cfg     Config
	catalog FileCatalog
	now     func() time.Time
}

// NewRepository creates the upload directory if needed.
func NewRepository(cfg Config, cat FileCatalog) (*Repository, error) {
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create file repository: %w", err)
	}
	return &Repository{cfg: cfg, catalog: cat, now: time.Now}, nil
}

// SaveOptions carries the upload metadata.
type SaveOptions struct {
	Purpose catalog.Purpose
	Notes   string
}

// Result is returned by Save.
type Result struct {
	catalog.FileRecord
	// Duplicate is set when identical content was already stored.
	Duplicate bool `json:"duplicate"`
}

// ContentID is the first 16 hex characters of the SHA-256 of data.
func ContentID(sum []byte) string {
	return hex.EncodeToString(sum)[:16]
}

// Accepts reports whether filename has an extension allowed for purpose.
func (r *Repository) Accepts(filename string, purpose catalog.Purpose) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	if purpose == catalog.PurposeDocument {
		return slices.Contains(r.cfg.DocumentExtensions, ext)
	}
	return slices.Contains(r.cfg.DataExtensions, ext)
}

// Save streams src into the repository. Content already stored is not
// written twice; its record is refreshed with the new name and notes.
func (r *Repository) Save(ctx context.Context, filename string, src io.Reader, opts SaveOptions) (Result, error) {
	if opts.Purpose == "" {
		opts.Purpose = catalog.PurposeData
	}
	logger := log.WithComponentFromContext(ctx, "ingest")
	filename = filepath.Base(strings.TrimSpace(filename))

	if !r.Accepts(filename, opts.Purpose) {
		metrics.RecordUpload(string(opts.Purpose), "rejected", 0)
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	ext := strings.ToLower(filepath.Ext(filename))

	h := sha256.New()
	var n int64
	staged, err := fsutil.Stage(r.cfg.Dir, 0o640, func(w io.Writer) error {
		var err error
		n, err = io.Copy(io.MultiWriter(w, h), io.LimitReader(src, r.cfg.MaxBytes+1))
		return err
	})
	if err != nil {
		metrics.RecordUpload(string(opts.Purpose), "error", 0)
		return Result{}, fmt.Errorf("write upload: %w", err)
	}
	defer func() { _ = staged.Cleanup() }()

	switch {
	case n == 0:
		metrics.RecordUpload(string(opts.Purpose), "rejected", 0)
		return Result{}, ErrEmptyFile
	case n > r.cfg.MaxBytes:
		metrics.RecordUpload(string(opts.Purpose), "rejected", 0)
		return Result{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, r.cfg.MaxBytes)
	}

	id := ContentID(h.Sum(nil))
	now := r.now().UTC()

	if existing, err := r.catalog.GetFile(ctx, id); err == nil && fsutil.IsRegularFile(existing.StoredPath) == nil {
		existing.Filename = filename
		existing.Purpose = opts.Purpose
		if opts.Notes != "" {
			existing.Notes = opts.Notes
		}
		existing.UploadedAt = now
		if err := r.catalog.RegisterFile(ctx, existing); err != nil {
			return Result{}, err
		}
		metrics.RecordUpload(string(opts.Purpose), "duplicate", 0)
		logger.Info().Str(log.FieldEvent, "upload.duplicate").Str(log.FieldFileID, id).Msg("identical content already stored")
		return Result{FileRecord: existing, Duplicate: true}, nil
	} else if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return Result{}, err
	}

	// The name derives from the content hash, so an existing file at final
	// already holds identical bytes.
	final := filepath.Join(r.cfg.Dir, fmt.Sprintf("%s_%d%s", id, now.Unix(), ext))
	published := true
	if err := staged.Publish(final); errors.Is(err, fs.ErrExist) {
		published = false
	} else if err != nil {
		return Result{}, fmt.Errorf("store upload: %w", err)
	}

	rec := catalog.FileRecord{
		ID:         id,
		Filename:   filename,
		StoredPath: final,
		Ext:        ext,
		SizeBytes:  n,
		Purpose:    opts.Purpose,
		Notes:      opts.Notes,
		UploadedAt: now,
	}
	if err := r.catalog.RegisterFile(ctx, rec); err != nil {
		if published {
			_ = os.Remove(final)
		}
		return Result{}, err
	}

	metrics.RecordUpload(string(opts.Purpose), "stored", n)
	logger.Info().
		Str(log.FieldEvent, "upload.stored").
		Str(log.FieldFileID, id).
		Str(log.FieldPath, final).
		Int64(log.FieldBytes, n).
		Msg("file stored")
	return Result{FileRecord: rec}, nil
}

// Open returns the record for id and a reader over its content.
func (r *Repository) Open(ctx context.Context, id string) (catalog.FileRecord, io.ReadCloser, error) {
	rec, err := r.Locate(ctx, id)
	if err != nil {
		return rec, nil, err
	}
	f, err := os.Open(rec.StoredPath)
	if err != nil {
		return rec, nil, fmt.Errorf("open stored file: %w", err)
	}
	return rec, f, nil
}

// Locate returns the record for id after checking the stored path stays
// within the repository directory.
func (r *Repository) Locate(ctx context.Context, id string) (catalog.FileRecord, error) {
	rec, err := r.catalog.GetFile(ctx, id)
	if err != nil {
		return rec, err
	}
	abs, err := filepath.Abs(rec.StoredPath)
	if err != nil {
		return rec, err
	}
	if _, err := fsutil.ConfineAbsPath(r.cfg.Dir, abs); err != nil {
		return rec, err
	}
	return rec, nil
}
