// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package spc

import (
	"fmt"
	"math"
	"sort"

	"github.com/ManuGH/dmaic/internal/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// DefaultBins is the histogram bin count when none is given.
	DefaultBins = 30
	// MaxBins bounds the histogram bin count.
	MaxBins = 1000
)

// vitalFewShare is the cumulative percentage that bounds the vital few.
const vitalFewShare = 80.0

// ParetoItem is one categorised amount.
type ParetoItem struct {
	Category string  `json:"category"`
	Value    float64 `json:"value"`
}

// ParetoRow is one aggregated category.
type ParetoRow struct {
	Category      string  `json:"category"`
	Value         float64 `json:"value"`
	Cumulative    float64 `json:"cumulative"`
	CumulativePct float64 `json:"cumulative_pct"`
	Share         float64 `json:"share_pct"`
}

// ParetoTable is the ordered Pareto breakdown.
type ParetoTable struct {
	Rows     []ParetoRow `json:"rows"`
	Total    float64     `json:"total"`
	VitalFew []string    `json:"vital_few"`
}

// Pareto aggregates items by category and orders them by value, largest
// first. Categories up to 80% of the cumulative total form the vital few;
// the largest category is always included.
func Pareto(items []ParetoItem) (ParetoTable, error) {
	sums := map[string]float64{}
	for _, it := range items {
		sums[it.Category] += it.Value
	}
	rows := make([]ParetoRow, 0, len(sums))
	total := 0.0
	for cat, v := range sums {
		rows = append(rows, ParetoRow{Category: cat, Value: v})
		total += v
	}
	if total <= 0 {
		return ParetoTable{}, ErrEmptyPareto
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Value != rows[j].Value {
			return rows[i].Value > rows[j].Value
		}
		return rows[i].Category < rows[j].Category
	})
	t := ParetoTable{Rows: rows, Total: total, VitalFew: []string{}}
	cum := 0.0
	for i := range rows {
		cum += rows[i].Value
		rows[i].Cumulative = cum
		rows[i].CumulativePct = 100 * cum / total
		rows[i].Share = 100 * rows[i].Value / total
		if i == 0 || rows[i].CumulativePct <= vitalFewShare {
			t.VitalFew = append(t.VitalFew, rows[i].Category)
		}
	}
	return t, nil
}

// Bin is one histogram bucket; Upper is exclusive except for the last bin.
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Histogram is a binned distribution with mean and median markers.
type Histogram struct {
	Bins   []Bin       `json:"bins"`
	Mean   stats.Float `json:"mean"`
	Median stats.Float `json:"median"`
	N      int         `json:"n"`
}

// NewHistogram bins x into equal-width buckets spanning its range.
func NewHistogram(x []float64, bins int) (Histogram, error) {
	if len(x) == 0 {
		return Histogram{}, fmt.Errorf("histogram: %w", ErrInsufficientData)
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	if bins > MaxBins {
		return Histogram{}, fmt.Errorf("histogram: %d bins, at most %d: %w", bins, MaxBins, ErrTooManyBins)
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	lo, hi := s[0], s[len(s)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	edges := append([]float64(nil), dividers...)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, s, nil)

	h := Histogram{
		Bins:   make([]Bin, bins),
		Mean:   stats.Float(stat.Mean(s, nil)),
		Median: stats.Float(stats.Quantile(s, 0.5)),
		N:      len(s),
	}
	for i := range h.Bins {
		h.Bins[i] = Bin{Lower: edges[i], Upper: edges[i+1], Count: int(counts[i])}
	}
	return h, nil
}

// QQPoint pairs a theoretical normal quantile with a sample order statistic.
type QQPoint struct {
	Theoretical float64 `json:"theoretical"`
	Sample      float64 `json:"sample"`
}

// QQPlot is a normal probability plot with its reference line
// sample = Intercept + Slope*theoretical.
type QQPlot struct {
	Points    []QQPoint   `json:"points"`
	Intercept stats.Float `json:"intercept"`
	Slope     stats.Float `json:"slope"`
}

// QQPoints evaluates the standard normal quantiles at evenly spaced
// probabilities between 0.01 and 0.99 against the sorted sample.
func QQPoints(x []float64) (QQPlot, error) {
	n := len(x)
	if n < 2 {
		return QQPlot{}, fmt.Errorf("q-q plot needs 2 values, got %d: %w", n, ErrInsufficientData)
	}
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	probs := floats.Span(make([]float64, n), 0.01, 0.99)
	mean, std := stat.MeanStdDev(s, nil)
	plot := QQPlot{Points: make([]QQPoint, n), Intercept: stats.Float(mean), Slope: stats.Float(std)}
	for i, p := range probs {
		plot.Points[i] = QQPoint{Theoretical: distuv.UnitNormal.Quantile(p), Sample: s[i]}
	}
	return plot, nil
}
