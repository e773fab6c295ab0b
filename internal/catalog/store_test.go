// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	older := FileRecord{ID: "aaaa", Filename: "lab.csv", StoredPath: "/d/aaaa_1.csv", Ext: ".csv", SizeBytes: 10, Purpose: PurposeData, UploadedAt: t0}
	newer := FileRecord{ID: "bbbb", Filename: "charter.pdf", StoredPath: "/d/bbbb_2.pdf", Ext: ".pdf", SizeBytes: 20, Purpose: PurposeDocument, Notes: "signed", UploadedAt: t0.Add(time.Hour)}
	require.NoError(t, s.RegisterFile(ctx, older))
	require.NoError(t, s.RegisterFile(ctx, newer))

	files, err := s.ListFiles(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff([]FileRecord{newer, older}, files); diff != "" {
		t.Fatalf("ListFiles mismatch (-want +got):\n%s", diff)
	}

	// Same content id replaces the record.
	older.Notes = "re-uploaded"
	require.NoError(t, s.RegisterFile(ctx, older))
	got, err := s.GetFile(ctx, "aaaa")
	require.NoError(t, err)
	assert.Equal(t, "re-uploaded", got.Notes)

	_, err = s.GetFile(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDatasetVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mk := func(name string, version int64) DatasetVersion {
		return DatasetVersion{
			Name: name, Version: version, ParquetPath: "/c/" + name + ".parquet",
			CreatedAt: time.Unix(version, 0).UTC(), RowCount: 5, ColCount: 2,
			Columns: []ColumnInfo{{Name: "ph", Kind: "numeric"}, {Name: "site", Kind: "text"}},
		}
	}
	require.NoError(t, s.RegisterDataset(ctx, mk("water", 100)))
	require.NoError(t, s.RegisterDataset(ctx, mk("water", 200)))
	require.NoError(t, s.RegisterDataset(ctx, mk("waste", 150)))

	err := s.RegisterDataset(ctx, mk("water", 200))
	assert.ErrorIs(t, err, ErrVersionExists)

	latest, err := s.LatestDataset(ctx, "water")
	require.NoError(t, err)
	assert.Equal(t, int64(200), latest.Version)
	assert.Equal(t, []ColumnInfo{{Name: "ph", Kind: "numeric"}, {Name: "site", Kind: "text"}}, latest.Columns)

	v, err := s.ResolveDataset(ctx, "water", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v.Version)
	v, err = s.ResolveDataset(ctx, "water", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(200), v.Version)

	all, err := s.ListDatasets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "water", all[0].Name)
	assert.Equal(t, int64(200), all[0].Version)
	assert.Equal(t, "waste", all[1].Name)

	versions, err := s.DatasetVersions(ctx, "water")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, int64(200), versions[0].Version)

	_, err = s.DatasetVersions(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DatasetVersion(ctx, "water", 999)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.LatestDataset(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextVersion(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	v, err := s.NextVersion(ctx, "water", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), v)

	require.NoError(t, s.RegisterDataset(ctx, DatasetVersion{Name: "water", Version: 1000, ParquetPath: "p", CreatedAt: time.Now()}))

	// Two curations within the same second still get distinct versions.
	v, err = s.NextVersion(ctx, "water", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), v)

	v, err = s.NextVersion(ctx, "water", 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), v)
}

func TestRunsAndCounts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	runs := []Run{
		{ID: "analyze_1", Phase: "analyze", Kind: "ttest", DatasetName: "water", DatasetVersion: 1, Parameters: json.RawMessage(`{"value":"ph"}`), CreatedAt: base},
		{ID: "measure_1", Phase: "measure", Kind: "describe", DatasetName: "water", DatasetVersion: 1, CreatedAt: base.Add(time.Minute)},
		{ID: "control_1", Phase: "control", Kind: "capability", DatasetName: "waste", DatasetVersion: 2, ResultPath: "/r/m.json", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range runs {
		require.NoError(t, s.RecordRun(ctx, r))
	}

	all, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "control_1", all[0].ID)
	assert.Equal(t, "/r/m.json", all[0].ResultPath)
	assert.JSONEq(t, `{}`, string(all[1].Parameters))
	assert.JSONEq(t, `{"value":"ph"}`, string(all[2].Parameters))

	water, err := s.ListRuns(ctx, RunFilter{Dataset: "water"})
	require.NoError(t, err)
	assert.Len(t, water, 2)

	analyze, err := s.ListRuns(ctx, RunFilter{Phase: "analyze", Dataset: "water", Limit: 10})
	require.NoError(t, err)
	require.Len(t, analyze, 1)
	assert.Equal(t, "ttest", analyze[0].Kind)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.RegisterFile(ctx, FileRecord{ID: "f1", Filename: "a.csv", StoredPath: "x", Ext: ".csv", Purpose: PurposeData, UploadedAt: base}))
	require.NoError(t, s.RegisterDataset(ctx, DatasetVersion{Name: "water", Version: 1, ParquetPath: "p", CreatedAt: base}))
	require.NoError(t, s.RegisterDataset(ctx, DatasetVersion{Name: "water", Version: 2, ParquetPath: "p", CreatedAt: base}))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Files: 1, Datasets: 1, Versions: 2, Runs: 3}, c)
}
