// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "report.html"), []byte("x"), 0o600))

	got, err := ConfineRelPath(root, "report.html")
	require.NoError(t, err)
	realRoot, _ := filepath.EvalSymlinks(root)
	assert.Equal(t, filepath.Join(realRoot, "report.html"), got)

	// Files that do not exist yet resolve through their parent.
	_, err = ConfineRelPath(root, "new..name.pdf")
	require.NoError(t, err)

	for _, bad := range []string{"../etc/passwd", "..", "a\\b", "/abs"} {
		_, err := ConfineRelPath(root, bad)
		assert.Error(t, err, bad)
	}
}

func TestConfineRelPathSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link")))

	_, err := ConfineRelPath(root, "link")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEscapesRoot))
}

func TestConfineAbsPath(t *testing.T) {
	root := t.TempDir()
	_, err := ConfineAbsPath(root, filepath.Join(root, "sub", "file.parquet"))
	require.NoError(t, err)

	_, err = ConfineAbsPath(root, filepath.Join(root, "..", "x"))
	assert.ErrorIs(t, err, ErrEscapesRoot)

	_, err = ConfineAbsPath(root, "relative")
	assert.Error(t, err)
}

func TestWriteAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")
	require.NoError(t, WriteFileAtomic(path, []byte(`{"ok":true}`), 0o640))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))
	require.NoError(t, IsRegularFile(path))

	// A failing fill leaves the previous content untouched.
	err = WriteAtomic(path, 0o640, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	require.Error(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(data))

	assert.Error(t, IsRegularFile(filepath.Dir(path)))
}

func TestStagePublishNeverReplaces(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "agua_1.parquet")
	require.NoError(t, os.WriteFile(first, []byte("winner"), 0o600))

	staged, err := Stage(dir, 0o640, func(w io.Writer) error {
		_, err := w.Write([]byte("loser"))
		return err
	})
	require.NoError(t, err)
	defer staged.Cleanup()

	err = staged.Publish(first)
	assert.ErrorIs(t, err, fs.ErrExist)
	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "winner", string(data))

	second := filepath.Join(dir, "agua_2.parquet")
	require.NoError(t, staged.Publish(second))
	require.NoError(t, staged.Cleanup())

	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, "loser", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "pending file is removed by Cleanup")
}

func TestStageFailedFillLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := Stage(dir, 0o640, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("boom")
	})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
