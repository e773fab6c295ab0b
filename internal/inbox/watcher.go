// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package inbox ingests data files dropped into a watched directory.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/ingest"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/metrics"
)

// FailedDir is the subdirectory that receives files which could not be ingested.
const FailedDir = "failed"

// Notes is stored on every file ingested from the inbox.
const Notes = "inbox"

const defaultDebounce = 500 * time.Millisecond

// Saver stores uploads; implemented by ingest.Repository.
type Saver interface {
	Accepts(filename string, purpose catalog.Purpose) bool
	Save(ctx context.Context, filename string, src io.Reader, opts ingest.SaveOptions) (ingest.Result, error)
}

// Config configures a Watcher.
type Config struct {
	Dir      string
	Debounce time.Duration
}

// Watcher moves files from the inbox into the file repository.
type Watcher struct {
	cfg     Config
	saver   Saver
	logger  zerolog.Logger
	pending map[string]time.Time
	now     func() time.Time
}

// New returns a watcher for cfg.Dir. The directory and its failed/
// subdirectory are created by Run.
func New(cfg Config, saver Saver) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = defaultDebounce
	}
	return &Watcher{
		cfg:     cfg,
		saver:   saver,
		logger:  log.WithComponent("inbox"),
		pending: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Run processes files already present, then watches for new ones until
// ctx is cancelled. A file is ingested once no write was seen on it for
// the debounce period.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Join(w.cfg.Dir, FailedDir), 0o750); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify.NewWatcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()
	if err := watcher.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch inbox %s: %w", w.cfg.Dir, err)
	}

	w.logger.Info().
		Str(log.FieldEvent, "inbox.started").
		Str(log.FieldPath, w.cfg.Dir).
		Dur("debounce", w.cfg.Debounce).
		Msg("watching inbox")

	w.scan(ctx)

	tick := w.cfg.Debounce / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Str(log.FieldEvent, "inbox.stopped").Msg("inbox watcher stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("inbox watcher closed")
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 && w.candidate(ev.Name) {
				w.pending[ev.Name] = w.now()
			}
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				delete(w.pending, ev.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("inbox watcher closed")
			}
			w.logger.Warn().Err(err).Msg("fsnotify watcher error")
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// scan queues every file present in the inbox for immediate processing.
func (w *Watcher) scan(ctx context.Context) {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		w.logger.Warn().Err(err).Msg("inbox scan failed")
		return
	}
	for _, e := range entries {
		path := filepath.Join(w.cfg.Dir, e.Name())
		if e.Type().IsRegular() && w.candidate(path) {
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) flush(ctx context.Context) {
	now := w.now()
	for path, last := range w.pending {
		if now.Sub(last) < w.cfg.Debounce {
			continue
		}
		delete(w.pending, path)
		w.process(ctx, path)
	}
}

// candidate filters out the failed/ directory, hidden files and partial
// downloads.
func (w *Watcher) candidate(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.cfg.Dir) {
		return false
	}
	name := filepath.Base(path)
	return name != FailedDir && !strings.HasPrefix(name, ".") && !strings.HasSuffix(name, ".part")
}

func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	name := filepath.Base(path)
	logger := w.logger.With().Str(log.FieldPath, path).Logger()

	if !w.saver.Accepts(name, catalog.PurposeData) {
		metrics.RecordInboxEvent("ignored")
		logger.Debug().Msg("inbox file ignored: not a data file")
		return
	}

	res, err := w.ingest(ctx, path, name)
	if err != nil && ctx.Err() != nil {
		logger.Info().Err(err).Msg("inbox ingestion interrupted by shutdown; file left for the next run")
		return
	}
	if err != nil {
		metrics.RecordInboxEvent("failed")
		dst, mvErr := w.moveToFailed(path)
		logger.Warn().
			Err(err).
			Str(log.FieldEvent, "inbox.failed").
			Str("moved_to", dst).
			AnErr("move_error", mvErr).
			Msg("inbox file rejected")
		return
	}
	if err := os.Remove(path); err != nil {
		logger.Warn().Err(err).Msg("remove ingested inbox file")
	}
	metrics.RecordInboxEvent("ingested")
	logger.Info().
		Str(log.FieldEvent, "inbox.ingested").
		Str(log.FieldFileID, res.ID).
		Bool("duplicate", res.Duplicate).
		Msg("inbox file ingested")
}

func (w *Watcher) ingest(ctx context.Context, path, name string) (ingest.Result, error) {
	f, err := os.Open(path) // #nosec G304 -- path is a direct child of the inbox directory
	if err != nil {
		return ingest.Result{}, err
	}
	defer func() { _ = f.Close() }()
	return w.saver.Save(ctx, name, f, ingest.SaveOptions{Purpose: catalog.PurposeData, Notes: Notes})
}

func (w *Watcher) moveToFailed(path string) (string, error) {
	dst := filepath.Join(w.cfg.Dir, FailedDir, filepath.Base(path))
	if _, err := os.Stat(dst); err == nil {
		dst = filepath.Join(w.cfg.Dir, FailedDir, fmt.Sprintf("%d_%s", w.now().Unix(), filepath.Base(path)))
	}
	return dst, os.Rename(path, dst)
}
