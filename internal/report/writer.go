// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ManuGH/dmaic/internal/fsutil"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/metrics"
)

// Output is one written report file.
type Output struct {
	Format Format `json:"format"`
	Path   string `json:"path"`
	Name   string `json:"name"`
}

// Writer renders reports and manifests into the results directory.
type Writer struct {
	dir string
	now func() time.Time
}

// NewWriter returns a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

// Dir returns the results directory.
func (w *Writer) Dir() string { return w.dir }

// Write renders doc in each format to <dir>/<name>.<format>, replacing
// files atomically.
func (w *Writer) Write(ctx context.Context, name string, doc Document, formats []Format) ([]Output, error) {
	logger := log.WithComponentFromContext(ctx, "report")
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	out := make([]Output, 0, len(formats))
	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		file := name + "." + string(f)
		path, err := fsutil.ConfineRelPath(w.dir, file)
		if err != nil {
			return out, fmt.Errorf("report name %q: %w", name, err)
		}
		var render func(io.Writer, Document) error
		switch f {
		case FormatHTML:
			render = RenderHTML
		case FormatPDF:
			render = RenderPDF
		default:
			return out, fmt.Errorf("unknown report format %q", f)
		}
		if err := fsutil.WriteAtomic(path, 0o640, func(wr io.Writer) error { return render(wr, doc) }); err != nil {
			return out, err
		}
		metrics.RecordReport(string(doc.Kind), string(f))
		logger.Info().
			Str(log.FieldEvent, "report.written").
			Str(log.FieldKind, string(doc.Kind)).
			Str(log.FieldPath, path).
			Msg("report written")
		out = append(out, Output{Format: f, Path: path, Name: file})
	}
	return out, nil
}

// Locate resolves a report file name inside the results directory.
func (w *Writer) Locate(file string) (string, error) {
	path, err := fsutil.ConfineRelPath(w.dir, file)
	if err != nil {
		return "", err
	}
	if err := fsutil.IsRegularFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// Manifest records the inputs and outputs of one analysis run.
type Manifest struct {
	RunID      string          `json:"run_id"`
	Phase      string          `json:"phase"`
	DatasetID  string          `json:"dataset_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Parameters json.RawMessage `json:"parameters"`
	Results    json.RawMessage `json:"results"`
}

// NewRunID builds <phase>_<YYYYMMDD_HHMMSS>.
func NewRunID(phase string, t time.Time) string {
	return phase + "_" + t.Format("20060102_150405")
}

// ManifestName is the file name of a run's manifest.
func ManifestName(runID string) string {
	return "manifest_" + runID + ".json"
}

// SaveManifest writes results/manifest_<runID>.json, assigning a run id
// and timestamp when missing. It returns the stored manifest and its path.
func (w *Writer) SaveManifest(m Manifest) (Manifest, string, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = w.now()
	}
	if m.RunID == "" {
		m.RunID = NewRunID(m.Phase, m.Timestamp)
	}
	if len(m.Parameters) == 0 {
		m.Parameters = json.RawMessage("{}")
	}
	if len(m.Results) == 0 {
		m.Results = json.RawMessage("null")
	}
	if err := os.MkdirAll(w.dir, 0o750); err != nil {
		return Manifest{}, "", fmt.Errorf("create results dir: %w", err)
	}
	path, err := fsutil.ConfineRelPath(w.dir, ManifestName(m.RunID))
	if err != nil {
		return Manifest{}, "", fmt.Errorf("manifest %q: %w", m.RunID, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return Manifest{}, "", fmt.Errorf("encode manifest: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o640); err != nil {
		return Manifest{}, "", err
	}
	return m, path, nil
}

// LoadManifest reads a manifest by run id.
func (w *Writer) LoadManifest(runID string) (Manifest, error) {
	path, err := w.Locate(ManifestName(runID))
	if err != nil {
		return Manifest{}, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- confined to the results directory
	if err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest %s: %w", runID, err)
	}
	return m, nil
}
