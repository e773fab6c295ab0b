// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package inbox

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/ingest"
)

type fakeSaver struct {
	mu    sync.Mutex
	saved map[string]string
}

func (f *fakeSaver) Accepts(name string, _ catalog.Purpose) bool {
	return slices.Contains([]string{".csv", ".xlsx"}, strings.ToLower(filepath.Ext(name)))
}

func (f *fakeSaver) Save(_ context.Context, name string, src io.Reader, opts ingest.SaveOptions) (ingest.Result, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return ingest.Result{}, err
	}
	if len(data) == 0 {
		return ingest.Result{}, ingest.ErrEmptyFile
	}
	if opts.Notes != Notes || opts.Purpose != catalog.PurposeData {
		return ingest.Result{}, errors.New("unexpected save options")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved[name] = string(data)
	return ingest.Result{FileRecord: catalog.FileRecord{ID: name}}, nil
}

func (f *fakeSaver) has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.saved[name]
	return ok
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestWatcherIngestsAndQuarantines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "startup.csv"), []byte("a\n1\n"), 0o600))

	saver := &fakeSaver{saved: map[string]string{}}
	w := New(Config{Dir: dir, Debounce: 20 * time.Millisecond}, saver)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return saver.has("startup.csv") }, 2*time.Second, 10*time.Millisecond)
	assert.False(t, exists(filepath.Join(dir, "startup.csv")))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.csv"), []byte("b\n2\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.csv"), nil, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool { return saver.has("new.csv") }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return exists(filepath.Join(dir, FailedDir, "empty.csv"))
	}, 2*time.Second, 10*time.Millisecond)
	assert.False(t, exists(filepath.Join(dir, "new.csv")))
	assert.True(t, exists(filepath.Join(dir, "notes.txt")))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestCandidate(t *testing.T) {
	w := New(Config{Dir: "/srv/inbox"}, &fakeSaver{})
	assert.True(t, w.candidate("/srv/inbox/lab.csv"))
	assert.False(t, w.candidate("/srv/inbox/.lab.csv"))
	assert.False(t, w.candidate("/srv/inbox/lab.csv.part"))
	assert.False(t, w.candidate("/srv/inbox/failed"))
	assert.False(t, w.candidate("/srv/inbox/failed/lab.csv"))
}

func TestMoveToFailedAvoidsOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, FailedDir), 0o750))
	w := New(Config{Dir: dir}, &fakeSaver{})
	w.now = func() time.Time { return time.Unix(1700000000, 0) }

	require.NoError(t, os.WriteFile(filepath.Join(dir, FailedDir, "x.csv"), []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.csv"), []byte("new"), 0o600))

	dst, err := w.moveToFailed(filepath.Join(dir, "x.csv"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FailedDir, "1700000000_x.csv"), dst)
}

type ctxSaver struct{ fakeSaver }

func (c *ctxSaver) Save(ctx context.Context, name string, src io.Reader, opts ingest.SaveOptions) (ingest.Result, error) {
	if err := ctx.Err(); err != nil {
		return ingest.Result{}, err
	}
	return c.fakeSaver.Save(ctx, name, src, opts)
}

func TestProcessKeepsFileWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lab.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n1\n"), 0o600))
	w := New(Config{Dir: dir}, &ctxSaver{fakeSaver{saved: map[string]string{}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.process(ctx, path)

	assert.True(t, exists(path), "valid file stays in the inbox")
	assert.False(t, exists(filepath.Join(dir, FailedDir, "lab.csv")))

	w.process(context.Background(), path)
	assert.False(t, exists(path))
}
