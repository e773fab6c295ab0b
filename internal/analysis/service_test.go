// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package analysis

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/dmaic/internal/cache"
	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/report"
	"github.com/ManuGH/dmaic/internal/stats"
)

type fixture struct {
	svc     *Service
	store   *catalog.Store
	results string
}

func testFrame() *dataset.Frame {
	values := make([]float64, 15)
	group2 := make([]string, 15)
	group3 := make([]string, 15)
	for i := range values {
		values[i] = float64(i + 1)
		group3[i] = string(rune('a' + i/5))
		if i < 10 {
			group2[i] = group3[i]
		}
	}
	noise := []float64{2.1, 3.9, 6.2, 8.1, 9.8, 12.2, 13.9, 16.1, 18.0, 20.2, 21.8, 24.1, 26.0, 27.9, 30.1}
	return &dataset.Frame{Columns: []*dataset.Column{
		dataset.NumericColumn("value", values),
		dataset.NumericColumn("y", noise),
		dataset.TextColumn("group2", group2),
		dataset.TextColumn("group3", group3),
	}}
}

func newFixture(t *testing.T, ttl time.Duration) fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	store, err := catalog.Open(ctx, filepath.Join(dir, "catalog.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	path := filepath.Join(dir, "water_1.parquet")
	require.NoError(t, dataset.WriteParquet(path, testFrame()))
	require.NoError(t, store.RegisterDataset(ctx, catalog.DatasetVersion{
		Name: "water", Version: 1, ParquetPath: path, CreatedAt: time.Now(), RowCount: 15, ColCount: 4,
	}))

	mem := cache.NewMemoryCache(0)
	t.Cleanup(func() { _ = mem.Close() })
	results := filepath.Join(dir, "results")
	svc := NewService(store, store, report.NewWriter(results), mem, Config{Stats: stats.DefaultConfig(), CacheTTL: ttl})
	return fixture{svc: svc, store: store, results: results}
}

func TestRunRecordsRunAndManifest(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)

	res, err := fx.svc.Run(ctx, Request{Kind: KindDescribe, Dataset: "water", Params: Params{"columns": "value"}})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, "measure", res.Phase)
	assert.Equal(t, int64(1), res.Version)
	assert.Regexp(t, `^measure_\d{8}_\d{6}_[0-9a-f]{8}$`, res.RunID)

	var summaries []stats.Summary
	require.NoError(t, json.Unmarshal(res.Output, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, stats.Float(8), summaries[0].Mean)

	runs, err := fx.store.ListRuns(ctx, catalog.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.JSONEq(t, `{"columns":"value"}`, string(runs[0].Parameters))

	m, err := report.NewWriter(fx.results).LoadManifest(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, "water@1", m.DatasetID)
	assert.JSONEq(t, string(res.Output), string(m.Results))
}

func TestRunServesCachedResult(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)

	req := Request{Kind: KindOutliers, Dataset: "water", Params: Params{"column": "value"}}
	first, err := fx.svc.Run(ctx, req)
	require.NoError(t, err)
	second, err := fx.svc.Run(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.RunID, second.RunID)
	assert.JSONEq(t, string(first.Output), string(second.Output))

	runs, err := fx.store.ListRuns(ctx, catalog.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	// Different parameters miss the cache.
	third, err := fx.svc.Run(ctx, Request{Kind: KindOutliers, Dataset: "water", Params: Params{"column": "value", "method": "zscore"}})
	require.NoError(t, err)
	assert.False(t, third.Cached)
}

func TestRunWithoutCacheTTLAlwaysRecomputes(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 0)

	req := Request{Kind: KindQQ, Dataset: "water", Params: Params{"column": "value"}}
	_, err := fx.svc.Run(ctx, req)
	require.NoError(t, err)
	res, err := fx.svc.Run(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.Cached)
}

func TestConcurrentIdenticalRequestsRunOnce(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)
	req := Request{Kind: KindHistogram, Dataset: "water", Params: Params{"column": "value", "bins": "5"}}

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fx.svc.Run(ctx, req)
			assert.NoError(t, err)
			ids[i] = res.RunID
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	runs, err := fx.store.ListRuns(ctx, catalog.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRunErrors(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"unknown kind", Request{Kind: "forecast", Dataset: "water"}, ErrUnknownKind},
		{"unknown dataset", Request{Kind: KindDescribe, Dataset: "air"}, catalog.ErrNotFound},
		{"missing param", Request{Kind: KindOutliers, Dataset: "water"}, ErrInvalidParams},
		{"missing column", Request{Kind: KindOutliers, Dataset: "water", Params: Params{"column": "ph"}}, ErrColumnNotFound},
		{"text column", Request{Kind: KindQQ, Dataset: "water", Params: Params{"column": "group3"}}, ErrNotNumeric},
		{"bad method", Request{Kind: KindCorrelation, Dataset: "water", Params: Params{"method": "cosine"}}, ErrInvalidParams},
		{"bad bins", Request{Kind: KindHistogram, Dataset: "water", Params: Params{"column": "value", "bins": "-2"}}, ErrInvalidParams},
		{"too many bins", Request{Kind: KindHistogram, Dataset: "water", Params: Params{"column": "value", "bins": "2000000000"}}, ErrInvalidParams},
		{"spec limits", Request{Kind: KindCapability, Dataset: "water", Params: Params{"column": "value", "lsl": "10", "usl": "1"}}, stats.ErrInvalidSpecLimits},
		{"three groups", Request{Kind: KindTTest, Dataset: "water", Params: Params{"value": "value", "group": "group3"}}, ErrInvalidParams},
		{"unknown group", Request{Kind: KindTTest, Dataset: "water", Params: Params{"value": "value", "group": "group3", "groups": "a,z"}}, ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.Run(ctx, tt.req)
			require.ErrorIs(t, err, tt.want)
			if tt.want != catalog.ErrNotFound {
				assert.True(t, IsInputError(err))
			}
		})
	}

	runs, err := fx.store.ListRuns(ctx, catalog.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestTTestSelectsGroups(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)

	for _, p := range []Params{
		{"value": "value", "group": "group2"},
		{"value": "value", "group": "group3", "groups": "a,b"},
	} {
		res, err := fx.svc.Run(ctx, Request{Kind: KindTTest, Dataset: "water", Params: p})
		require.NoError(t, err)
		assert.Equal(t, "analyze", res.Phase)

		var out TTestOutput
		require.NoError(t, json.Unmarshal(res.Output, &out))
		assert.Equal(t, "a", out.GroupA)
		assert.Equal(t, "b", out.GroupB)
		assert.InDelta(t, -5.0, float64(out.Test.T), 1e-9)
		assert.True(t, out.Test.Significant)
	}
}

func TestANOVAAndRegression(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)

	res, err := fx.svc.Run(ctx, Request{Kind: KindANOVA, Dataset: "water", Params: Params{"value": "value", "group": "group3"}})
	require.NoError(t, err)
	var anova stats.ANOVAResult
	require.NoError(t, json.Unmarshal(res.Output, &anova))
	assert.Equal(t, 2, anova.DFBetween)
	assert.True(t, anova.Significant)

	res, err = fx.svc.Run(ctx, Request{Kind: KindRegression, Dataset: "water", Params: Params{"target": "y", "predictors": "value"}})
	require.NoError(t, err)
	var reg stats.Regression
	require.NoError(t, json.Unmarshal(res.Output, &reg))
	assert.Equal(t, 15, reg.N)
	assert.Greater(t, float64(reg.RSquared), 0.99)
}

func TestParetoAndControlChart(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)

	res, err := fx.svc.Run(ctx, Request{Kind: KindPareto, Dataset: "water", Params: Params{"category": "group3", "value": "value"}})
	require.NoError(t, err)
	var pareto struct {
		Rows []struct {
			Category string  `json:"category"`
			Value    float64 `json:"value"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(res.Output, &pareto))
	require.Len(t, pareto.Rows, 3)
	assert.Equal(t, "c", pareto.Rows[0].Category)
	assert.Equal(t, 65.0, pareto.Rows[0].Value)

	res, err = fx.svc.Run(ctx, Request{Kind: KindControlChart, Dataset: "water", Params: Params{"column": "value"}})
	require.NoError(t, err)
	assert.Equal(t, "control", res.Phase)
}

func TestRunBatchKeepsOrder(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, time.Minute)

	reqs := []Request{
		{Kind: KindDescribe, Dataset: "water"},
		{Kind: KindCorrelation, Dataset: "water", Params: Params{"method": "spearman"}},
		{Kind: KindNormality, Dataset: "water", Params: Params{"column": "value", "test": "both"}},
	}
	out, err := fx.svc.RunBatch(ctx, reqs)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, r := range reqs {
		assert.Equal(t, r.Kind, out[i].Kind)
	}

	_, err = fx.svc.RunBatch(ctx, []Request{{Kind: KindDescribe, Dataset: "water"}, {Kind: KindQQ, Dataset: "water"}})
	assert.ErrorIs(t, err, ErrInvalidParams)
}
