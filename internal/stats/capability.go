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

// smallCapabilitySample is the sample size below which indices are unstable.
const smallCapabilitySample = 30

// SpecLimits are the customer specification limits. Nil means absent.
type SpecLimits struct {
	LSL    *float64 `json:"lsl,omitempty"`
	USL    *float64 `json:"usl,omitempty"`
	Target *float64 `json:"target,omitempty"`
}

// Validate rejects missing or inverted limits.
func (s SpecLimits) Validate() error {
	if s.LSL == nil && s.USL == nil {
		return fmt.Errorf("at least one of lsl or usl is required: %w", ErrInvalidSpecLimits)
	}
	if s.LSL != nil && s.USL != nil && *s.USL <= *s.LSL {
		return fmt.Errorf("usl %g must exceed lsl %g: %w", *s.USL, *s.LSL, ErrInvalidSpecLimits)
	}
	return nil
}

// CapabilityResult holds process capability indices. Indices that need a
// missing limit are NaN.
type CapabilityResult struct {
	Mean               Float      `json:"mean"`
	Std                Float      `json:"std"`
	N                  int        `json:"n"`
	Spec               SpecLimits `json:"spec"`
	Cp                 Float      `json:"cp"`
	Cpk                Float      `json:"cpk"`
	Cpu                Float      `json:"cpu"`
	Cpl                Float      `json:"cpl"`
	Cpm                Float      `json:"cpm"`
	Bias               Float      `json:"bias"`
	PPMBelow           Float      `json:"ppm_below_lsl"`
	PPMAbove           Float      `json:"ppm_above_usl"`
	PPMTotal           Float      `json:"ppm_total"`
	Threshold          float64    `json:"threshold"`
	Capable            bool       `json:"capable"`
	SmallSampleWarning bool       `json:"small_sample_warning"`
}

// Capability computes Cp, Cpk and the expected defect rate assuming a
// normal process.
func Capability(x []float64, spec SpecLimits, cfg Config) (CapabilityResult, error) {
	cfg = cfg.withDefaults()
	if err := spec.Validate(); err != nil {
		return CapabilityResult{}, err
	}
	n := len(x)
	if n < cfg.MinSample || n < 2 {
		return CapabilityResult{}, fmt.Errorf("capability needs %d values, got %d: %w", cfg.MinSample, n, ErrInsufficientData)
	}
	mean, std := stat.MeanStdDev(x, nil)
	if std == 0 {
		return CapabilityResult{}, fmt.Errorf("capability: %w", ErrZeroVariance)
	}
	nan := Float(math.NaN())
	res := CapabilityResult{
		Mean: Float(mean), Std: Float(std), N: n, Spec: spec,
		Cp: nan, Cpk: nan, Cpu: nan, Cpl: nan, Cpm: nan, Bias: nan,
		PPMBelow: 0, PPMAbove: 0,
		Threshold:          cfg.CapabilityMin,
		SmallSampleWarning: n < smallCapabilitySample,
	}
	cpk := math.Inf(1)
	if spec.USL != nil {
		cpu := (*spec.USL - mean) / (3 * std)
		res.Cpu = Float(cpu)
		res.PPMAbove = Float(distuv.UnitNormal.Survival((*spec.USL-mean)/std) * 1e6)
		cpk = math.Min(cpk, cpu)
	}
	if spec.LSL != nil {
		cpl := (mean - *spec.LSL) / (3 * std)
		res.Cpl = Float(cpl)
		res.PPMBelow = Float(distuv.UnitNormal.CDF((*spec.LSL-mean)/std) * 1e6)
		cpk = math.Min(cpk, cpl)
	}
	res.Cpk = Float(cpk)
	res.PPMTotal = res.PPMBelow + res.PPMAbove
	if spec.LSL != nil && spec.USL != nil {
		width := *spec.USL - *spec.LSL
		res.Cp = Float(width / (6 * std))
		if spec.Target != nil {
			d := mean - *spec.Target
			res.Bias = Float(d)
			res.Cpm = Float(width / (6 * math.Sqrt(std*std+d*d)))
		}
	}
	res.Capable = cpk >= cfg.CapabilityMin
	return res, nil
}

// IsInputError reports whether err stems from unusable input rather than a
// failure, so callers can map it to a client error.
func IsInputError(err error) bool {
	for _, target := range []error{
		ErrInsufficientData, ErrTooManyValues, ErrInsufficientGroups,
		ErrNoNumericColumns, ErrZeroVariance, ErrInvalidSpecLimits, ErrSingularMatrix,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
