// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestFloatJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Float `json:"a"`
		B Float `json:"b"`
		C Float `json:"c"`
	}{1.5, Float(math.NaN()), Float(math.Inf(1))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1.5,"b":null,"c":null}`, string(b))

	var f Float
	require.NoError(t, json.Unmarshal([]byte("null"), &f))
	assert.False(t, f.Valid())
}

func TestQuantileType7(t *testing.T) {
	s := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, Quantile(s, 0.25), 1e-12)
	assert.InDelta(t, 2.5, Quantile(s, 0.5), 1e-12)
	assert.InDelta(t, 3.25, Quantile(s, 0.75), 1e-12)
	assert.Equal(t, 4.0, Quantile(s, 1))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestDescribe(t *testing.T) {
	f := &dataset.Frame{Columns: []*dataset.Column{
		dataset.NumericColumn("custo", []float64{10, 20, math.NaN(), 30, 40}),
		dataset.TextColumn("regiao", []string{"n", "s", "n", "s", "n"}),
		dataset.NumericColumn("vazio", []float64{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()}),
	}}

	got, err := Describe(f, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	s := got[0]
	assert.Equal(t, "custo", s.Column)
	assert.Equal(t, 4, s.Count)
	assert.Equal(t, Float(25), s.Mean)
	assert.Equal(t, Float(12.91), s.Std)
	assert.Equal(t, Float(17.5), s.Q1)
	assert.Equal(t, Float(25), s.Median)
	assert.Equal(t, Float(32.5), s.Q3)
	assert.Equal(t, 1, s.Missing)
	assert.Equal(t, Float(20), s.MissingPct)
	assert.Equal(t, Float(51.64), s.CV)

	_, err = Describe(&dataset.Frame{Columns: []*dataset.Column{dataset.TextColumn("a", []string{"x"})}}, nil)
	assert.ErrorIs(t, err, ErrNoNumericColumns)

	_, err = Describe(f, []string{"missing"})
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)
}

func TestDetectOutliers(t *testing.T) {
	t.Run("iqr", func(t *testing.T) {
		res := DetectOutliers([]float64{1, 2, 3, 4, 5, 100}, OutlierIQR)
		require.Len(t, res.Points, 1)
		assert.Equal(t, 5, res.Points[0].Index)
		assert.InDelta(t, 8.5, float64(res.Upper), 1e-12)
		assert.InDelta(t, -1.5, float64(res.Lower), 1e-12)
	})
	t.Run("zscore uses population std", func(t *testing.T) {
		x := make([]float64, 20, 21)
		for i := range x {
			x[i] = 10
		}
		x = append(x, 100)
		res := DetectOutliers(x, OutlierZScore)
		require.Len(t, res.Points, 1)
		assert.Equal(t, 20, res.Points[0].Index)
		assert.InDelta(t, 4.4721, float64(res.Points[0].Score), 1e-4)
	})
	t.Run("small sample", func(t *testing.T) {
		res := DetectOutliers([]float64{1, 2, 1000}, OutlierIQR)
		assert.Empty(t, res.Points)
		assert.Equal(t, OutlierIQR, res.Method)
	})
	t.Run("method parsing", func(t *testing.T) {
		m, err := ParseOutlierMethod("")
		require.NoError(t, err)
		assert.Equal(t, OutlierIQR, m)
		_, err = ParseOutlierMethod("grubbs")
		assert.Error(t, err)
	})
}

func TestShapiroWilk(t *testing.T) {
	res, err := ShapiroWilk([]float64{1, 2, 3}, 0.05)
	require.NoError(t, err)
	assert.InDelta(t, 1, float64(res.Statistic), 1e-9)
	assert.InDelta(t, 1, float64(res.PValue), 1e-9)

	skewed := []float64{148, 154, 158, 160, 161, 162, 166, 170, 182, 195, 236}
	res, err = ShapiroWilk(skewed, 0.05)
	require.NoError(t, err)
	assert.InDelta(t, 0.78881, float64(res.Statistic), 1e-4)
	assert.InDelta(t, 0.006704, float64(res.PValue), 1e-4)
	assert.False(t, res.Normal)

	bell := []float64{2.1, 3.4, 1.9, 5.6, 4.4, 3.8, 2.9, 4.1, 3.3, 3.0, 3.6, 4.8, 2.5, 3.9, 4.2}
	res, err = ShapiroWilk(bell, 0.05)
	require.NoError(t, err)
	assert.InDelta(t, 0.98729, float64(res.Statistic), 1e-4)
	assert.True(t, res.Normal)

	_, err = ShapiroWilk([]float64{1, 2}, 0.05)
	assert.ErrorIs(t, err, ErrInsufficientData)
	_, err = ShapiroWilk(make([]float64, 5001), 0.05)
	assert.ErrorIs(t, err, ErrTooManyValues)
	_, err = ShapiroWilk([]float64{4, 4, 4, 4}, 0.05)
	assert.ErrorIs(t, err, ErrZeroVariance)
}

func TestAndersonDarling(t *testing.T) {
	bell := []float64{2.1, 3.4, 1.9, 5.6, 4.4, 3.8, 2.9, 4.1, 3.3, 3.0, 3.6, 4.8, 2.5, 3.9, 4.2}
	res, err := AndersonDarling(bell)
	require.NoError(t, err)
	assert.InDelta(t, 0.10598, float64(res.Statistic), 1e-4)
	assert.InDelta(t, 0.68106, float64(res.Critical), 1e-4)
	assert.True(t, res.Normal)

	skewed := []float64{148, 154, 158, 160, 161, 162, 166, 170, 182, 195, 236}
	res, err = AndersonDarling(skewed)
	require.NoError(t, err)
	assert.InDelta(t, 0.94677, float64(res.Statistic), 1e-4)
	assert.False(t, res.Normal)
	assert.Less(t, float64(res.PValue), 0.05)

	_, err = AndersonDarling([]float64{1, 2, 3, 4, 5, 6, 7})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestAndersonDarlingExtremeOutlier(t *testing.T) {
	x := make([]float64, 2000)
	for i := range x[:len(x)-1] {
		x[i] = float64(i % 10)
	}
	x[len(x)-1] = 1e6

	res, err := AndersonDarling(x)
	require.NoError(t, err)
	assert.Greater(t, float64(res.Statistic), 153.0)
	assert.Equal(t, 0.0, float64(res.PValue))
	assert.False(t, res.Normal)

	assert.Equal(t, 0.0, andersonPValue(400), "upper tail does not turn back up")
	assert.Equal(t, 0.0, andersonPValue(math.Inf(1)))
}

func TestLevene(t *testing.T) {
	res, err := Levene([][]float64{{1, 2, 3, 4, 5}, {2, 4, 6, 8, 10}})
	require.NoError(t, err)
	assert.InDelta(t, 2.0571, float64(res.Statistic), 1e-4)
	assert.InDelta(t, 0.1894, float64(res.PValue), 1e-4)
	assert.Equal(t, 1, res.DFBetween)
	assert.Equal(t, 8, res.DFWithin)

	_, err = Levene([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrInsufficientGroups)
}

func TestTTest(t *testing.T) {
	res, err := TTest([]float64{1, 2, 3, 4, 5}, []float64{6, 7, 8, 9, 10}, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, res.EqualVariances)
	assert.InDelta(t, -5, float64(res.T), 1e-9)
	assert.InDelta(t, 8, float64(res.DF), 1e-9)
	assert.InDelta(t, 0.0010528, float64(res.PValue), 1e-6)
	assert.InDelta(t, -5, float64(res.MeanDiff), 1e-9)
	assert.InDelta(t, -3.16228, float64(res.CohensD), 1e-4)
	assert.True(t, res.Significant)

	_, err = TTest([]float64{1, 2}, []float64{3, 4, 5}, DefaultConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = TTest([]float64{3, 3, 3}, []float64{3, 3, 3}, DefaultConfig())
	assert.ErrorIs(t, err, ErrZeroVariance)
}

func TestTTestWelch(t *testing.T) {
	a := []float64{10, 10.1, 9.9, 10, 10.05, 9.95}
	b := []float64{5, 15, 2, 18, 9, 11}
	res, err := TTest(a, b, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, res.EqualVariances)
	assert.Less(t, float64(res.DF), 10.0)
	assert.False(t, res.Significant)
}

func TestANOVA(t *testing.T) {
	groups := []Group{
		{Name: "a", Values: []float64{1, 2, 3}},
		{Name: "b", Values: []float64{4, 5, 6}},
		{Name: "c", Values: []float64{7, 8, 9}},
		{Name: "d", Values: []float64{1, 2}},
	}
	res, err := ANOVA(groups, DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, 27, float64(res.F), 1e-9)
	assert.Equal(t, 2, res.DFBetween)
	assert.Equal(t, 6, res.DFWithin)
	assert.InDelta(t, 0.001, float64(res.PValue), 1e-9)
	assert.Equal(t, []string{"d"}, res.Skipped)
	require.Len(t, res.PostHoc, 3)

	ab := res.PostHoc[0]
	assert.Equal(t, "a", ab.A)
	assert.Equal(t, "b", ab.B)
	assert.InDelta(t, 0.021312, float64(ab.PValue), 1e-5)
	assert.InDelta(t, 0.063935, float64(ab.PAdjusted), 1e-5)
	assert.False(t, ab.Significant)
	assert.True(t, res.PostHoc[1].Significant)

	_, err = ANOVA(groups[2:], DefaultConfig())
	assert.ErrorIs(t, err, ErrInsufficientGroups)
}

func TestCorrelate(t *testing.T) {
	r, p := Correlate([]float64{1, 2, 3, 4, 5}, []float64{2, 1, 4, 3, 5}, Pearson)
	assert.InDelta(t, 0.8, r, 1e-12)
	assert.InDelta(t, 0.104088, p, 1e-5)

	r, p = Correlate([]float64{1, 2, 3, 4, 5}, []float64{1, 8, 27, 64, 125}, Spearman)
	assert.InDelta(t, 1, r, 1e-12)
	assert.InDelta(t, 0, p, 1e-6)

	r, p = Correlate([]float64{1, 2, 3, 4, 5}, []float64{1, 3, 2, 5, 4}, Kendall)
	assert.InDelta(t, 0.6, r, 1e-12)
	assert.InDelta(t, 0.141645, p, 1e-5)

	r, _ = Correlate([]float64{1, 2}, []float64{2, 1}, Pearson)
	assert.True(t, math.IsNaN(r))
}

func TestCorrelateTinyMagnitudes(t *testing.T) {
	r, p := Correlate([]float64{1, 1, 1.125}, []float64{1.78e-161, 1.78e-161, 0}, Pearson)
	assert.InDelta(t, -1, r, 1e-12)
	assert.InDelta(t, 0, p, 1e-6)

	r, p = Correlate([]float64{1, 2, 3}, []float64{5e-324, 5e-324, 5e-324}, Pearson)
	assert.True(t, math.IsNaN(r), "constant sample has no correlation")
	assert.True(t, math.IsNaN(p))
}

func TestRanks(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, Ranks([]float64{10, 20, 20, 30}))
	assert.Equal(t, []float64{3, 1, 2}, Ranks([]float64{9, 1, 5}))
}

func TestCorrelationMatrix(t *testing.T) {
	f := &dataset.Frame{Columns: []*dataset.Column{
		dataset.NumericColumn("x", []float64{1, 2, 3, 4, 5, 6}),
		dataset.NumericColumn("y", []float64{2, 4, 6, 8, 10, math.NaN()}),
		dataset.NumericColumn("z", []float64{6, 1, 4, 2, 5, 3}),
		dataset.TextColumn("t", []string{"a", "b", "c", "d", "e", "f"}),
	}}
	m, err := Correlation(f, Pearson)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z"}, m.Columns)
	assert.Equal(t, Float(1), m.R[0][0])
	assert.InDelta(t, 1, float64(m.R[0][1]), 1e-12)
	assert.Equal(t, 5, m.N[0][1])
	assert.Equal(t, m.R[0][2], m.R[2][0])

	sig := m.Significant(0.05)
	require.NotEmpty(t, sig)
	assert.Equal(t, "x", sig[0].A)
	assert.Equal(t, "y", sig[0].B)

	_, err = Correlation(&dataset.Frame{Columns: f.Columns[:1]}, Pearson)
	assert.ErrorIs(t, err, ErrNoNumericColumns)
}

func TestOLSSimple(t *testing.T) {
	x := Series{Name: "x", Values: []float64{1, 2, 3, 4, 5, 6, 7, 8}}
	y := Series{Name: "y", Values: []float64{3.1, 4.9, 7.2, 8.8, 11.1, 13.0, 14.8, 17.1}}

	reg, err := OLS(y, []Series{x}, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, reg.Coefficients, 2)
	c, b := reg.Coefficients[0], reg.Coefficients[1]
	assert.Equal(t, InterceptName, c.Name)
	assert.InDelta(t, 1.042857, float64(c.Estimate), 1e-6)
	assert.InDelta(t, 0.125718, float64(c.StdErr), 1e-6)
	assert.InDelta(t, 1.990476, float64(b.Estimate), 1e-6)
	assert.InDelta(t, 0.024896, float64(b.StdErr), 1e-6)
	assert.True(t, b.Significant)
	assert.InDelta(t, 0.999062, float64(reg.RSquared), 1e-6)
	assert.InDelta(t, 0.998906, float64(reg.AdjRSquared), 1e-6)
	assert.InDelta(t, 6392.34, float64(reg.F), 1e-2)
	assert.InDelta(t, 3.33333, float64(reg.DurbinWatson), 1e-4)
	assert.Equal(t, 8, reg.N)
	assert.NotNil(t, reg.ResidualNormality)
}

func TestOLSErrors(t *testing.T) {
	x1 := Series{Name: "x1", Values: []float64{1, 2, 3, 4, 5, 6, 7, 8}}
	x2 := Series{Name: "x2", Values: []float64{2, 4, 6, 8, 10, 12, 14, 16}}
	y := Series{Name: "y", Values: []float64{1, 3, 2, 5, 4, 6, 8, 7}}

	_, err := OLS(y, []Series{x1, x2}, DefaultConfig())
	assert.ErrorIs(t, err, ErrSingularMatrix)

	short := Series{Name: "y", Values: []float64{1, 2, 3, 4, 5, math.NaN(), math.NaN(), math.NaN()}}
	_, err = OLS(short, []Series{x1}, DefaultConfig())
	assert.ErrorIs(t, err, ErrInsufficientData)

	flat := Series{Name: "y", Values: []float64{2, 2, 2, 2, 2, 2, 2, 2}}
	_, err = OLS(flat, []Series{x1}, DefaultConfig())
	assert.ErrorIs(t, err, ErrZeroVariance)
}

func TestCapability(t *testing.T) {
	x := []float64{9, 10, 11}
	res, err := Capability(x, SpecLimits{LSL: ptr(7), USL: ptr(13), Target: ptr(11)}, DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, 1, float64(res.Cp), 1e-12)
	assert.InDelta(t, 1, float64(res.Cpk), 1e-12)
	assert.InDelta(t, 1349.898, float64(res.PPMBelow), 1e-3)
	assert.InDelta(t, 2699.796, float64(res.PPMTotal), 1e-3)
	assert.InDelta(t, -1, float64(res.Bias), 1e-12)
	assert.InDelta(t, 1/math.Sqrt2, float64(res.Cpm), 1e-12)
	assert.False(t, res.Capable)
	assert.True(t, res.SmallSampleWarning)

	upper, err := Capability(x, SpecLimits{USL: ptr(16)}, DefaultConfig())
	require.NoError(t, err)
	assert.False(t, upper.Cp.Valid())
	assert.InDelta(t, 2, float64(upper.Cpk), 1e-12)
	assert.True(t, upper.Capable)

	_, err = Capability(x, SpecLimits{LSL: ptr(13), USL: ptr(7)}, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidSpecLimits)
	_, err = Capability(x, SpecLimits{}, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidSpecLimits)
	_, err = Capability([]float64{5, 5, 5}, SpecLimits{LSL: ptr(1)}, DefaultConfig())
	assert.ErrorIs(t, err, ErrZeroVariance)
	assert.True(t, IsInputError(err))
}
