// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package project

import (
	"math"
	"time"

	"github.com/ManuGH/dmaic/internal/validate"
)

// Direction states which side of the target is acceptable.
type Direction string

const (
	DirectionLower  Direction = "lower"
	DirectionHigher Direction = "higher"
	DirectionTarget Direction = "target"
)

// Process states of the KPI dashboard.
const (
	ProcessInControl    = "in_control"
	ProcessAttention    = "attention"
	ProcessOutOfControl = "out_of_control"
)

// KPI is one measurement of a controlled indicator.
type KPI struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Target     float64   `json:"target"`
	Current    float64   `json:"current"`
	Unit       string    `json:"unit"`
	Direction  Direction `json:"direction"`
	Tolerance  float64   `json:"tolerance"`
	MeasuredAt time.Time `json:"measured_at"`
}

// Validate checks the name and direction.
func (k KPI) Validate() error {
	v := validate.New()
	v.NotEmpty("name", k.Name)
	v.OneOf("direction", string(k.Direction), []string{string(DirectionLower), string(DirectionHigher), string(DirectionTarget)})
	v.NonNegative("tolerance", k.Tolerance)
	return v.Err()
}

// Evaluation is the state of one KPI against its target.
type Evaluation struct {
	KPI
	Delta    float64 `json:"delta"`
	Progress float64 `json:"progress_pct"`
	OK       bool    `json:"ok"`
}

// Evaluate compares the current value with the target.
func (k KPI) Evaluate() Evaluation {
	delta := k.Current - k.Target
	var ok bool
	switch k.Direction {
	case DirectionLower:
		ok = delta <= 0
	case DirectionHigher:
		ok = delta >= 0
	default:
		ok = math.Abs(delta) <= k.Tolerance
	}
	var progress float64
	switch {
	case k.Target != 0:
		progress = math.Max(0, math.Min(100, (1-math.Abs(delta)/math.Abs(k.Target))*100))
	case delta == 0:
		progress = 100
	}
	return Evaluation{KPI: k, Delta: delta, Progress: progress, OK: ok}
}

// Dashboard summarises the latest measurement of every KPI.
type Dashboard struct {
	KPIs   []Evaluation `json:"kpis"`
	OK     int          `json:"ok"`
	Total  int          `json:"total"`
	Status string       `json:"status"`
}

// NewDashboard evaluates the latest measurement per KPI name; input is
// expected in measurement order.
func NewDashboard(history []KPI) Dashboard {
	latest := map[string]KPI{}
	var order []string
	for _, k := range history {
		if _, seen := latest[k.Name]; !seen {
			order = append(order, k.Name)
		}
		latest[k.Name] = k
	}
	d := Dashboard{KPIs: []Evaluation{}, Total: len(order)}
	for _, name := range order {
		e := latest[name].Evaluate()
		if e.OK {
			d.OK++
		}
		d.KPIs = append(d.KPIs, e)
	}
	switch {
	case d.Total == 0 || d.OK == d.Total:
		d.Status = ProcessInControl
	case 3*d.OK >= 2*d.Total:
		d.Status = ProcessAttention
	default:
		d.Status = ProcessOutOfControl
	}
	return d
}
