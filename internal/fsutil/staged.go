// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// Staged is synced content in a pending file whose final name is chosen
// once the content is known.
type Staged struct {
	pf *renameio.PendingFile
}

// Stage streams fill into a pending file in dir. The caller must Cleanup
// the result whether or not it was published.
func Stage(dir string, perm os.FileMode, fill func(io.Writer) error) (*Staged, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create parent dir: %w", err)
	}
	pf, err := renameio.NewPendingFile(filepath.Join(dir, ".staged"),
		renameio.WithTempDir(dir), renameio.WithPermissions(perm))
	if err != nil {
		return nil, fmt.Errorf("create pending file: %w", err)
	}
	s := &Staged{pf: pf}
	if err := fill(pf); err != nil {
		_ = s.Cleanup()
		return nil, err
	}
	if err := pf.Sync(); err != nil {
		_ = s.Cleanup()
		return nil, fmt.Errorf("sync pending file: %w", err)
	}
	return s, nil
}

// Publish makes the staged content visible at path. It never replaces an
// existing file: when path exists the error matches fs.ErrExist and the
// staged content can be published under another name.
func (s *Staged) Publish(path string) error {
	if err := os.Link(s.pf.Name(), path); err != nil {
		return fmt.Errorf("publish %s: %w", filepath.Base(path), err)
	}
	return syncDir(filepath.Dir(path))
}

// Cleanup removes the pending file. Published paths are not affected.
func (s *Staged) Cleanup() error {
	if s == nil {
		return nil
	}
	return s.pf.Cleanup()
}

func syncDir(dir string) error {
	d, err := os.Open(dir) // #nosec G304 -- parent of a path we just created
	if err != nil {
		return fmt.Errorf("open dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
