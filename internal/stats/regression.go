// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"fmt"
	"math"

	"github.com/ManuGH/dmaic/internal/dataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// InterceptName labels the constant term.
const InterceptName = "const"

// maxCondition bounds the condition number of X'X before the fit is
// treated as collinear.
const maxCondition = 1e15

// Series is a named numeric vector; NaN marks a missing value.
type Series struct {
	Name   string
	Values []float64
}

// SeriesFromFrame extracts numeric columns, keeping row alignment.
func SeriesFromFrame(f *dataset.Frame, names ...string) ([]Series, error) {
	out := make([]Series, 0, len(names))
	for _, name := range names {
		c, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		if c.Kind != dataset.KindNumeric {
			return nil, fmt.Errorf("column %q is not numeric: %w", name, ErrNoNumericColumns)
		}
		out = append(out, Series{Name: name, Values: c.Nums})
	}
	return out, nil
}

// Coefficient is one fitted regression term.
type Coefficient struct {
	Name        string `json:"name"`
	Estimate    Float  `json:"estimate"`
	StdErr      Float  `json:"std_error"`
	T           Float  `json:"t_statistic"`
	PValue      Float  `json:"p_value"`
	Significant bool   `json:"significant"`
}

// Regression is an ordinary least squares fit.
type Regression struct {
	Target            string        `json:"target"`
	Coefficients      []Coefficient `json:"coefficients"`
	RSquared          Float         `json:"r_squared"`
	AdjRSquared       Float         `json:"adj_r_squared"`
	F                 Float         `json:"f_statistic"`
	FPValue           Float         `json:"f_p_value"`
	DurbinWatson      Float         `json:"durbin_watson"`
	ResidualNormality *Normality    `json:"residual_normality,omitempty"`
	N                 int           `json:"n"`
	Significant       bool          `json:"significant"`
	Residuals         []float64     `json:"-"`
	Fitted            []float64     `json:"-"`
}

// OLS fits y on xs with an intercept using the rows where every series
// has a value. At least k+5 complete rows are required for k predictors.
func OLS(y Series, xs []Series, cfg Config) (Regression, error) {
	cfg = cfg.withDefaults()
	k := len(xs)
	if k == 0 {
		return Regression{}, fmt.Errorf("regression needs at least one predictor: %w", ErrInsufficientData)
	}
	rows := completeRows(append([]Series{y}, xs...))
	n := len(rows)
	if n < k+5 {
		return Regression{}, fmt.Errorf("regression with %d predictors needs %d complete rows, got %d: %w", k, k+5, n, ErrInsufficientData)
	}

	p := k + 1
	X := mat.NewDense(n, p, nil)
	Y := mat.NewVecDense(n, nil)
	yv := make([]float64, n)
	for r, i := range rows {
		X.Set(r, 0, 1)
		for j, s := range xs {
			X.Set(r, j+1, s.Values[i])
		}
		yv[r] = y.Values[i]
		Y.SetVec(r, yv[r])
	}

	var xtx, inv mat.Dense
	xtx.Mul(X.T(), X)
	if err := inv.Inverse(&xtx); err != nil || mat.Cond(&xtx, 1) > maxCondition {
		return Regression{}, fmt.Errorf("regression: %w", ErrSingularMatrix)
	}
	var xty, beta mat.VecDense
	xty.MulVec(X.T(), Y)
	beta.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(X, &beta)
	resid := make([]float64, n)
	fit := make([]float64, n)
	sse := 0.0
	for i := 0; i < n; i++ {
		fit[i] = fitted.AtVec(i)
		resid[i] = yv[i] - fit[i]
		sse += resid[i] * resid[i]
	}
	mean := stat.Mean(yv, nil)
	sst := 0.0
	for _, v := range yv {
		sst += (v - mean) * (v - mean)
	}
	if sst == 0 {
		return Regression{}, fmt.Errorf("regression target %q is constant: %w", y.Name, ErrZeroVariance)
	}

	dfResid := float64(n - p)
	mse := sse / dfResid
	r2 := 1 - sse/sst
	f := ((sst - sse) / float64(k)) / mse
	fp := fSurvival(f, k, n-p)

	reg := Regression{
		Target:       y.Name,
		RSquared:     Float(r2),
		AdjRSquared:  Float(1 - (1-r2)*float64(n-1)/dfResid),
		F:            Float(f),
		FPValue:      Float(fp),
		DurbinWatson: Float(durbinWatson(resid, sse)),
		N:            n,
		Significant:  fp < cfg.Alpha,
		Residuals:    resid,
		Fitted:       fit,
	}
	for j := 0; j < p; j++ {
		name := InterceptName
		if j > 0 {
			name = xs[j-1].Name
		}
		est := beta.AtVec(j)
		se := math.Sqrt(mse * inv.At(j, j))
		t := est / se
		pv := twoSidedT(t, dfResid)
		reg.Coefficients = append(reg.Coefficients, Coefficient{
			Name:        name,
			Estimate:    Float(est),
			StdErr:      Float(se),
			T:           Float(t),
			PValue:      Float(pv),
			Significant: pv < cfg.Alpha,
		})
	}
	if norm, err := ShapiroWilk(resid, cfg.Alpha); err == nil {
		reg.ResidualNormality = &norm
	}
	return reg, nil
}

func durbinWatson(resid []float64, sse float64) float64 {
	if sse == 0 {
		return math.NaN()
	}
	num := 0.0
	for i := 1; i < len(resid); i++ {
		d := resid[i] - resid[i-1]
		num += d * d
	}
	return num / sse
}

func completeRows(series []Series) []int {
	if len(series) == 0 {
		return nil
	}
	n := len(series[0].Values)
	for _, s := range series[1:] {
		n = min(n, len(s.Values))
	}
	var rows []int
	for i := 0; i < n; i++ {
		ok := true
		for _, s := range series {
			if math.IsNaN(s.Values[i]) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows
}
