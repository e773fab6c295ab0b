// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package spc turns samples into chart data: individuals control charts,
// Pareto tables, histograms and normal Q-Q points. Rendering is left to
// clients.
package spc

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/ManuGH/dmaic/internal/stats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData is returned when there are too few points to chart.
	ErrInsufficientData = errors.New("insufficient data for chart")
	// ErrEmptyPareto is returned when the Pareto total is not positive.
	ErrEmptyPareto = errors.New("pareto total is zero")
	// ErrTooManyBins is returned when a histogram asks for more than MaxBins.
	ErrTooManyBins = errors.New("too many histogram bins")
)

// d2 for moving ranges of two consecutive points.
const d2 = 1.128

// Point is one observation on a time or sequence axis.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Violation flags a point that breaks a control rule.
type Violation struct {
	Rule        int    `json:"rule"`
	Index       int    `json:"index"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Chart is an individuals control chart.
type Chart struct {
	Center     stats.Float `json:"center"`
	UCL        stats.Float `json:"ucl"`
	LCL        stats.Float `json:"lcl"`
	UWL        stats.Float `json:"uwl"`
	LWL        stats.Float `json:"lwl"`
	Sigma      stats.Float `json:"sigma"`
	SigmaMR    stats.Float `json:"sigma_mr"`
	Points     []Point     `json:"points"`
	Violations []Violation `json:"violations"`
	InControl  bool        `json:"in_control"`
}

// ControlChart sorts points by label and computes 3-sigma control and
// 2-sigma warning limits around the mean.
func ControlChart(points []Point) (Chart, error) {
	if len(points) < 2 {
		return Chart{}, fmt.Errorf("control chart needs 2 points, got %d: %w", len(points), ErrInsufficientData)
	}
	pts := append([]Point(nil), points...)
	sortByLabel(pts)

	values := make([]float64, len(pts))
	for i, p := range pts {
		values[i] = p.Value
	}
	mean, std := stat.MeanStdDev(values, nil)
	mr := 0.0
	for i := 1; i < len(values); i++ {
		mr += math.Abs(values[i] - values[i-1])
	}
	mr /= float64(len(values) - 1)

	c := Chart{
		Center:  stats.Float(mean),
		UCL:     stats.Float(mean + 3*std),
		LCL:     stats.Float(mean - 3*std),
		UWL:     stats.Float(mean + 2*std),
		LWL:     stats.Float(mean - 2*std),
		Sigma:   stats.Float(std),
		SigmaMR: stats.Float(mr / d2),
		Points:  pts,
	}
	c.Violations = c.evaluate(values)
	c.InControl = len(c.Violations) == 0
	return c, nil
}

func (c Chart) evaluate(x []float64) []Violation {
	center, ucl, lcl := float64(c.Center), float64(c.UCL), float64(c.LCL)
	uwl, lwl := float64(c.UWL), float64(c.LWL)
	out := []Violation{}
	add := func(rule, i int, desc string) {
		out = append(out, Violation{Rule: rule, Index: i, Label: c.Points[i].Label, Description: desc})
	}
	for i, v := range x {
		if v > ucl || v < lcl {
			add(1, i, "point beyond 3 sigma")
		}
	}
	for i := 2; i < len(x); i++ {
		above, below := 0, 0
		for _, v := range x[i-2 : i+1] {
			if v > uwl {
				above++
			}
			if v < lwl {
				below++
			}
		}
		if above >= 2 || below >= 2 {
			add(2, i, "2 of 3 consecutive points beyond 2 sigma")
		}
	}
	run, side := 0, 0
	for i, v := range x {
		s := 0
		switch {
		case v > center:
			s = 1
		case v < center:
			s = -1
		}
		if s != 0 && s == side {
			run++
		} else {
			side, run = s, 1
		}
		if s != 0 && run >= 8 {
			add(3, i, "8 consecutive points on one side of the center line")
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// sortByLabel orders labels numerically when every label is a finite number
// and as text otherwise; ISO dates sort correctly as text.
func sortByLabel(pts []Point) {
	nums := make(map[string]float64, len(pts))
	for _, p := range pts {
		f, err := strconv.ParseFloat(p.Label, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			sort.SliceStable(pts, func(i, j int) bool { return pts[i].Label < pts[j].Label })
			return
		}
		nums[p.Label] = f
	}
	sort.SliceStable(pts, func(i, j int) bool { return nums[pts[i].Label] < nums[pts[j].Label] })
}
