// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stats implements the hypothesis tests and summaries used in the
// Measure, Analyze and Control phases. Nulls are dropped by callers; every
// function takes plain float64 samples.
package stats

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
)

var (
	// ErrInsufficientData is returned when a sample is smaller than a test needs.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrTooManyValues is returned when a sample exceeds a test's valid range.
	ErrTooManyValues = errors.New("too many values")
	// ErrInsufficientGroups is returned when fewer than two usable groups remain.
	ErrInsufficientGroups = errors.New("insufficient groups")
	// ErrNoNumericColumns is returned when a frame has no numeric columns to analyse.
	ErrNoNumericColumns = errors.New("no numeric columns")
	// ErrZeroVariance is returned when a statistic is undefined for constant data.
	ErrZeroVariance = errors.New("zero variance")
	// ErrInvalidSpecLimits is returned when USL <= LSL.
	ErrInvalidSpecLimits = errors.New("invalid specification limits")
	// ErrSingularMatrix is returned when regression predictors are collinear.
	ErrSingularMatrix = errors.New("predictors are linearly dependent")
)

// Config holds the decision thresholds.
type Config struct {
	Alpha         float64
	MinSample     int
	CapabilityMin float64
}

// DefaultConfig matches the defaults of the configuration file.
func DefaultConfig() Config {
	return Config{Alpha: 0.05, MinSample: 3, CapabilityMin: 1.33}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Alpha <= 0 || c.Alpha >= 1 {
		c.Alpha = d.Alpha
	}
	if c.MinSample < 2 {
		c.MinSample = d.MinSample
	}
	if c.CapabilityMin <= 0 {
		c.CapabilityMin = d.CapabilityMin
	}
	return c
}

// Float is a float64 that encodes NaN and ±Inf as JSON null.
type Float float64

// MarshalJSON implements json.Marshaler.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Valid reports whether f is finite.
func (f Float) Valid() bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func sortedCopy(x []float64) []float64 {
	s := append([]float64(nil), x...)
	sort.Float64s(s)
	return s
}

// Quantile returns the p-quantile of sorted data using linear interpolation
// between closest ranks (Hyndman and Fan type 7).
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return math.NaN()
	case n == 1:
		return sorted[0]
	}
	h := (float64(n) - 1) * p
	lo := math.Floor(h)
	i := int(lo)
	if i >= n-1 {
		return sorted[n-1]
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i])
}

// Median of unsorted data.
func Median(x []float64) float64 {
	return Quantile(sortedCopy(x), 0.5)
}
