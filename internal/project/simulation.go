// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package project

import (
	"math"
	"time"
)

// Simulation verdicts.
const (
	VerdictSignificant = "significant"
	VerdictMarginal    = "marginal"
	VerdictNone        = "none"
)

// significantGain is the score gain above which an improvement is significant.
const significantGain = 5.0

// WaterQuality is the set of process variables of the what-if model.
type WaterQuality struct {
	PH        float64 `json:"ph"`
	Turbidity float64 `json:"turbidity"`
	NO3       float64 `json:"no3"`
}

// Score rates water quality from 0 to 100; pH 7 with no turbidity or
// nitrate scores 100.
func (w WaterQuality) Score() float64 {
	return math.Max(0, 100-math.Abs(w.PH-7)*10-w.Turbidity*5-w.NO3*10)
}

// Simulation is a what-if comparison between baseline and simulated values.
type Simulation struct {
	ID             int64              `json:"id"`
	Baseline       WaterQuality       `json:"baseline"`
	Simulated      WaterQuality       `json:"simulated"`
	BaselineScore  float64            `json:"baseline_score"`
	SimulatedScore float64            `json:"simulated_score"`
	Gain           float64            `json:"gain"`
	Changes        map[string]float64 `json:"changes_pct"`
	Verdict        string             `json:"verdict"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Simulate scores both scenarios and the relative change of each variable.
func Simulate(baseline, simulated WaterQuality) Simulation {
	s := Simulation{
		Baseline:       baseline,
		Simulated:      simulated,
		BaselineScore:  baseline.Score(),
		SimulatedScore: simulated.Score(),
		Changes: map[string]float64{
			"ph":        pctChange(baseline.PH, simulated.PH),
			"turbidity": pctChange(baseline.Turbidity, simulated.Turbidity),
			"no3":       pctChange(baseline.NO3, simulated.NO3),
		},
	}
	s.Gain = s.SimulatedScore - s.BaselineScore
	switch {
	case s.Gain > significantGain:
		s.Verdict = VerdictSignificant
	case s.Gain > 0:
		s.Verdict = VerdictMarginal
	default:
		s.Verdict = VerdictNone
	}
	return s
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
