// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"fmt"
	"math"
	"sort"

	"github.com/ManuGH/dmaic/internal/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// CorrelationMethod selects the coefficient.
type CorrelationMethod string

const (
	Pearson  CorrelationMethod = "pearson"
	Spearman CorrelationMethod = "spearman"
	Kendall  CorrelationMethod = "kendall"
)

// ParseCorrelationMethod validates a method name; empty means Pearson.
func ParseCorrelationMethod(s string) (CorrelationMethod, error) {
	switch CorrelationMethod(s) {
	case "", Pearson:
		return Pearson, nil
	case Spearman, Kendall:
		return CorrelationMethod(s), nil
	}
	return "", fmt.Errorf("unknown correlation method %q", s)
}

// CorrelationMatrix holds coefficients and p-values for every column pair.
// Cells computed from fewer than three complete rows are NaN.
type CorrelationMatrix struct {
	Method  CorrelationMethod `json:"method"`
	Columns []string          `json:"columns"`
	R       [][]Float         `json:"r"`
	P       [][]Float         `json:"p_values"`
	N       [][]int           `json:"n"`
}

// CorrelationPair is one off-diagonal entry of the matrix.
type CorrelationPair struct {
	A      string `json:"var1"`
	B      string `json:"var2"`
	R      Float  `json:"r"`
	PValue Float  `json:"p_value"`
	N      int    `json:"n"`
}

// Correlation computes the correlation matrix of the numeric columns of f
// using pairwise-complete rows.
func Correlation(f *dataset.Frame, method CorrelationMethod) (CorrelationMatrix, error) {
	names := f.NumericColumns()
	if len(names) < 2 {
		return CorrelationMatrix{}, fmt.Errorf("correlation needs 2 numeric columns, got %d: %w", len(names), ErrNoNumericColumns)
	}
	cols := make([]*dataset.Column, len(names))
	for i, name := range names {
		c, err := f.Column(name)
		if err != nil {
			return CorrelationMatrix{}, err
		}
		cols[i] = c
	}
	k := len(names)
	m := CorrelationMatrix{Method: method, Columns: names, R: square[Float](k), P: square[Float](k), N: square[int](k)}
	for i := 0; i < k; i++ {
		m.R[i][i] = 1
		m.P[i][i] = Float(math.NaN())
		m.N[i][i] = len(cols[i].Floats())
		for j := i + 1; j < k; j++ {
			x, y := completePairs(cols[i], cols[j])
			r, p := Correlate(x, y, method)
			m.R[i][j], m.R[j][i] = Float(r), Float(r)
			m.P[i][j], m.P[j][i] = Float(p), Float(p)
			m.N[i][j], m.N[j][i] = len(x), len(x)
		}
	}
	return m, nil
}

// Significant lists the pairs with p < alpha ordered by |r| descending.
func (m CorrelationMatrix) Significant(alpha float64) []CorrelationPair {
	out := []CorrelationPair{}
	for i := range m.Columns {
		for j := i + 1; j < len(m.Columns); j++ {
			p := float64(m.P[i][j])
			if math.IsNaN(p) || p >= alpha {
				continue
			}
			out = append(out, CorrelationPair{A: m.Columns[i], B: m.Columns[j], R: m.R[i][j], PValue: m.P[i][j], N: m.N[i][j]})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return math.Abs(float64(out[a].R)) > math.Abs(float64(out[b].R))
	})
	return out
}

// Correlate returns the coefficient and two-sided p-value for paired
// samples. Fewer than three pairs yield NaN.
func Correlate(x, y []float64, method CorrelationMethod) (r, p float64) {
	n := len(x)
	if n < 3 || n != len(y) {
		return math.NaN(), math.NaN()
	}
	switch method {
	case Kendall:
		tau := kendallTauB(x, y)
		if math.IsNaN(tau) {
			return tau, math.NaN()
		}
		fn := float64(n)
		z := 3 * tau * math.Sqrt(fn*(fn-1)) / math.Sqrt(2*(2*fn+5))
		return tau, 2 * distuv.UnitNormal.Survival(math.Abs(z))
	case Spearman:
		r = pearson(Ranks(x), Ranks(y))
	default:
		r = pearson(x, y)
	}
	return r, correlationPValue(r, n)
}

// pearson is NaN when either sample is constant. Samples are rescaled first
// because tiny magnitudes underflow the variances.
func pearson(x, y []float64) float64 {
	r := stat.Correlation(rescale(x), rescale(y), nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, r))
}

func rescale(x []float64) []float64 {
	m := floats.Norm(x, math.Inf(1))
	if m == 0 || math.IsInf(m, 0) || math.IsNaN(m) {
		return x
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v / m
	}
	return out
}

func correlationPValue(r float64, n int) float64 {
	if math.IsNaN(r) {
		return math.NaN()
	}
	if math.Abs(r) >= 1 {
		return 0
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	return twoSidedT(t, df)
}

// Ranks assigns 1-based ranks, averaging ties.
func Ranks(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })
	ranks := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

func kendallTauB(x, y []float64) float64 {
	var concordant, discordant, tiesX, tiesY float64
	n := len(x)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dx := sign(x[i] - x[j])
			dy := sign(y[i] - y[j])
			switch {
			case dx == 0 && dy == 0:
			case dx == 0:
				tiesX++
			case dy == 0:
				tiesY++
			case dx == dy:
				concordant++
			default:
				discordant++
			}
		}
	}
	denom := math.Sqrt((concordant + discordant + tiesX) * (concordant + discordant + tiesY))
	if denom == 0 {
		return math.NaN()
	}
	return (concordant - discordant) / denom
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func completePairs(a, b *dataset.Column) (x, y []float64) {
	for i := 0; i < a.Len(); i++ {
		if a.IsNull(i) || b.IsNull(i) {
			continue
		}
		x = append(x, a.Nums[i])
		y = append(y, b.Nums[i])
	}
	return x, y
}

func square[T any](k int) [][]T {
	out := make([][]T, k)
	for i := range out {
		out[i] = make([]T, k)
	}
	return out
}
