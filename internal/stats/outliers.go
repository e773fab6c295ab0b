// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// OutlierMethod selects the outlier rule.
type OutlierMethod string

const (
	OutlierIQR    OutlierMethod = "iqr"
	OutlierZScore OutlierMethod = "zscore"
)

// ParseOutlierMethod validates a method name; empty means IQR.
func ParseOutlierMethod(s string) (OutlierMethod, error) {
	switch OutlierMethod(s) {
	case "", OutlierIQR:
		return OutlierIQR, nil
	case OutlierZScore:
		return OutlierZScore, nil
	}
	return "", fmt.Errorf("unknown outlier method %q", s)
}

// Outlier is one flagged observation. Index refers to the input slice.
type Outlier struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
	Score Float   `json:"score"`
}

// Outliers is the result of DetectOutliers.
type Outliers struct {
	Method OutlierMethod `json:"method"`
	Lower  Float         `json:"lower"`
	Upper  Float         `json:"upper"`
	Points []Outlier     `json:"points"`
	N      int           `json:"n"`
}

// DetectOutliers flags values outside 1.5 IQR fences or with |z| > 3
// (population standard deviation). Fewer than four values yield no outliers.
func DetectOutliers(x []float64, method OutlierMethod) Outliers {
	if method != OutlierZScore {
		method = OutlierIQR
	}
	res := Outliers{Method: method, Lower: Float(math.NaN()), Upper: Float(math.NaN()), Points: []Outlier{}, N: len(x)}
	if len(x) < 4 {
		return res
	}
	switch method {
	case OutlierZScore:
		mean, std := stat.PopMeanStdDev(x, nil)
		if std == 0 {
			return res
		}
		res.Lower, res.Upper = Float(mean-3*std), Float(mean+3*std)
		for i, v := range x {
			z := (v - mean) / std
			if math.Abs(z) > 3 {
				res.Points = append(res.Points, Outlier{Index: i, Value: v, Score: Float(z)})
			}
		}
	default:
		s := sortedCopy(x)
		q1, q3 := Quantile(s, 0.25), Quantile(s, 0.75)
		iqr := q3 - q1
		lo, hi := q1-1.5*iqr, q3+1.5*iqr
		res.Lower, res.Upper = Float(lo), Float(hi)
		for i, v := range x {
			if v < lo || v > hi {
				score := math.NaN()
				if iqr > 0 {
					if v < lo {
						score = (v - q1) / iqr
					} else {
						score = (v - q3) / iqr
					}
				}
				res.Points = append(res.Points, Outlier{Index: i, Value: v, Score: Float(score)})
			}
		}
	}
	return res
}
