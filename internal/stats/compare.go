// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// LeveneResult is the Brown-Forsythe test for equal variances.
type LeveneResult struct {
	Statistic Float `json:"statistic"`
	PValue    Float `json:"p_value"`
	DFBetween int   `json:"df_between"`
	DFWithin  int   `json:"df_within"`
}

// Levene runs the median-centred Levene (Brown-Forsythe) test.
func Levene(groups [][]float64) (LeveneResult, error) {
	if len(groups) < 2 {
		return LeveneResult{}, ErrInsufficientGroups
	}
	dev := make([][]float64, len(groups))
	for i, g := range groups {
		if len(g) == 0 {
			return LeveneResult{}, fmt.Errorf("levene: group %d is empty: %w", i, ErrInsufficientData)
		}
		med := Median(g)
		d := make([]float64, len(g))
		for j, v := range g {
			d[j] = math.Abs(v - med)
		}
		dev[i] = d
	}
	f, df1, df2, err := oneWayF(dev)
	switch {
	case errors.Is(err, ErrZeroVariance) && math.IsInf(f, 1):
		return LeveneResult{Statistic: Float(f), PValue: 0, DFBetween: df1, DFWithin: df2}, nil
	case errors.Is(err, ErrZeroVariance):
		return LeveneResult{Statistic: 0, PValue: 1, DFBetween: df1, DFWithin: df2}, nil
	case err != nil:
		return LeveneResult{}, fmt.Errorf("levene: %w", err)
	}
	return LeveneResult{
		Statistic: Float(f),
		PValue:    Float(fSurvival(f, df1, df2)),
		DFBetween: df1,
		DFWithin:  df2,
	}, nil
}

// oneWayF returns the one-way ANOVA F statistic and its degrees of freedom.
func oneWayF(groups [][]float64) (f float64, df1, df2 int, err error) {
	total, n := 0.0, 0
	for _, g := range groups {
		for _, v := range g {
			total += v
		}
		n += len(g)
	}
	grand := total / float64(n)
	var ssb, ssw float64
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssw += (v - m) * (v - m)
		}
	}
	df1 = len(groups) - 1
	df2 = n - len(groups)
	if df2 <= 0 {
		return 0, df1, df2, ErrInsufficientData
	}
	if ssw == 0 {
		if ssb > 0 {
			return math.Inf(1), df1, df2, ErrZeroVariance
		}
		return math.NaN(), df1, df2, ErrZeroVariance
	}
	f = (ssb / float64(df1)) / (ssw / float64(df2))
	return f, df1, df2, nil
}

func fSurvival(f float64, df1, df2 int) float64 {
	return distuv.F{D1: float64(df1), D2: float64(df2)}.Survival(f)
}

// twoSidedT returns the two-sided p-value of t with df degrees of freedom.
func twoSidedT(t, df float64) float64 {
	if math.IsInf(t, 0) {
		return 0
	}
	d := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return math.Min(1, 2*d.Survival(math.Abs(t)))
}

// TTestResult is the outcome of an independent two-sample t-test.
type TTestResult struct {
	T              Float        `json:"t_statistic"`
	DF             Float        `json:"df"`
	PValue         Float        `json:"p_value"`
	MeanA          Float        `json:"mean_a"`
	MeanB          Float        `json:"mean_b"`
	MeanDiff       Float        `json:"mean_diff"`
	CohensD        Float        `json:"cohens_d"`
	N1             int          `json:"n1"`
	N2             int          `json:"n2"`
	EqualVariances bool         `json:"equal_variances"`
	Levene         LeveneResult `json:"levene"`
	Significant    bool         `json:"significant"`
}

// TTest compares the means of a and b. Levene's test picks the pooled
// (Student) or unpooled (Welch) form.
func TTest(a, b []float64, cfg Config) (TTestResult, error) {
	cfg = cfg.withDefaults()
	if len(a) < cfg.MinSample || len(b) < cfg.MinSample {
		return TTestResult{}, fmt.Errorf("t-test needs %d values per group, got %d and %d: %w",
			cfg.MinSample, len(a), len(b), ErrInsufficientData)
	}
	lev, err := Levene([][]float64{a, b})
	if err != nil {
		return TTestResult{}, err
	}
	equal := float64(lev.PValue) > cfg.Alpha

	t, df, err := tStatistic(a, b, equal)
	if err != nil {
		return TTestResult{}, err
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	p := twoSidedT(t, df)
	return TTestResult{
		T:              Float(t),
		DF:             Float(df),
		PValue:         Float(p),
		MeanA:          Float(ma),
		MeanB:          Float(mb),
		MeanDiff:       Float(ma - mb),
		CohensD:        Float((ma - mb) / math.Sqrt((va+vb)/2)),
		N1:             len(a),
		N2:             len(b),
		EqualVariances: equal,
		Levene:         lev,
		Significant:    p < cfg.Alpha,
	}, nil
}

func tStatistic(a, b []float64, pooled bool) (t, df float64, err error) {
	n1, n2 := float64(len(a)), float64(len(b))
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	var se float64
	if pooled {
		df = n1 + n2 - 2
		sp := ((n1-1)*va + (n2-1)*vb) / df
		se = math.Sqrt(sp * (1/n1 + 1/n2))
	} else {
		q1, q2 := va/n1, vb/n2
		se = math.Sqrt(q1 + q2)
		df = (q1 + q2) * (q1 + q2) / (q1*q1/(n1-1) + q2*q2/(n2-1))
	}
	if se == 0 {
		return 0, 0, fmt.Errorf("t-test: %w", ErrZeroVariance)
	}
	return (ma - mb) / se, df, nil
}

// Group is a labelled sample.
type Group struct {
	Name   string
	Values []float64
}

// GroupStat summarises one ANOVA group.
type GroupStat struct {
	Name string `json:"name"`
	N    int    `json:"n"`
	Mean Float  `json:"mean"`
	Std  Float  `json:"std"`
}

// PairComparison is one post-hoc pairwise test.
type PairComparison struct {
	A           string `json:"group_a"`
	B           string `json:"group_b"`
	MeanDiff    Float  `json:"mean_diff"`
	T           Float  `json:"t_statistic"`
	PValue      Float  `json:"p_value"`
	PAdjusted   Float  `json:"p_adjusted"`
	Significant bool   `json:"significant"`
}

// ANOVAResult is the outcome of a one-way ANOVA.
type ANOVAResult struct {
	F           Float            `json:"f_statistic"`
	DFBetween   int              `json:"df_between"`
	DFWithin    int              `json:"df_within"`
	PValue      Float            `json:"p_value"`
	Significant bool             `json:"significant"`
	Groups      []GroupStat      `json:"groups"`
	Skipped     []string         `json:"skipped_groups"`
	PostHoc     []PairComparison `json:"post_hoc,omitempty"`
}

// ANOVA runs a one-way analysis of variance. Groups smaller than the
// minimum sample are skipped. A significant result carries Bonferroni
// corrected pairwise Welch comparisons.
func ANOVA(groups []Group, cfg Config) (ANOVAResult, error) {
	cfg = cfg.withDefaults()
	res := ANOVAResult{Groups: []GroupStat{}, Skipped: []string{}}
	var kept []Group
	for _, g := range groups {
		if len(g.Values) < cfg.MinSample {
			res.Skipped = append(res.Skipped, g.Name)
			continue
		}
		kept = append(kept, g)
	}
	if len(kept) < 2 {
		return res, fmt.Errorf("anova has %d usable groups: %w", len(kept), ErrInsufficientGroups)
	}
	samples := make([][]float64, len(kept))
	for i, g := range kept {
		samples[i] = g.Values
		m, sd := stat.MeanStdDev(g.Values, nil)
		res.Groups = append(res.Groups, GroupStat{Name: g.Name, N: len(g.Values), Mean: Float(m), Std: Float(sd)})
	}
	f, df1, df2, err := oneWayF(samples)
	if err != nil {
		return res, fmt.Errorf("anova: %w", err)
	}
	p := fSurvival(f, df1, df2)
	res.F, res.DFBetween, res.DFWithin = Float(f), df1, df2
	res.PValue = Float(p)
	res.Significant = p < cfg.Alpha
	if res.Significant {
		res.PostHoc = postHoc(kept, cfg.Alpha)
	}
	return res, nil
}

func postHoc(groups []Group, alpha float64) []PairComparison {
	m := float64(len(groups) * (len(groups) - 1) / 2)
	var out []PairComparison
	for i := 0; i < len(groups); i++ {
		for j := i + 1; j < len(groups); j++ {
			a, b := groups[i], groups[j]
			pc := PairComparison{
				A:        a.Name,
				B:        b.Name,
				MeanDiff: Float(stat.Mean(a.Values, nil) - stat.Mean(b.Values, nil)),
			}
			t, df, err := tStatistic(a.Values, b.Values, false)
			if err != nil {
				pc.T, pc.PValue, pc.PAdjusted = Float(math.NaN()), Float(math.NaN()), Float(math.NaN())
				out = append(out, pc)
				continue
			}
			p := twoSidedT(t, df)
			adj := math.Min(1, p*m)
			pc.T, pc.PValue, pc.PAdjusted = Float(t), Float(p), Float(adj)
			pc.Significant = adj < alpha
			out = append(out, pc)
		}
	}
	return out
}
