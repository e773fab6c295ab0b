// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package project

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ManuGH/dmaic/internal/catalog"
)

// CatalogCounter reports dataset and run totals.
type CatalogCounter interface {
	Counts(ctx context.Context) (catalog.Counts, error)
}

// Summary is the project dashboard.
type Summary struct {
	Project         Project              `json:"project"`
	Progress        float64              `json:"progress_pct"`
	DaysElapsed     int                  `json:"days_elapsed"`
	DaysRemaining   *int                 `json:"days_remaining,omitempty"`
	ExpectedSavings float64              `json:"expected_savings"`
	Datasets        int                  `json:"datasets"`
	Runs            int                  `json:"analysis_runs"`
	RootCauses      int                  `json:"root_causes"`
	Actions         map[ActionStatus]int `json:"actions"`
	ActionCost      float64              `json:"action_cost"`
	KPIs            int                  `json:"kpis"`
	KPIStatus       string               `json:"kpi_status"`
	ControlItems    int                  `json:"control_items"`
	Reports         int                  `json:"reports"`
	Simulations     int                  `json:"simulations"`
}

// Summary assembles the dashboard of a project. counter may be nil.
func (s *Store) Summary(ctx context.Context, id string, counter CatalogCounter) (Summary, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	now := s.now().UTC()
	sum := Summary{
		Project:         p,
		Progress:        p.Progress(),
		ExpectedSavings: p.ExpectedSavings,
		Actions:         map[ActionStatus]int{},
	}
	if !p.StartDate.IsZero() {
		sum.DaysElapsed = max(0, daysBetween(p.StartDate, now))
	}
	if !p.TargetDate.IsZero() {
		d := max(0, daysBetween(now, p.TargetDate))
		sum.DaysRemaining = &d
	}
	if counter != nil {
		c, err := counter.Counts(ctx)
		if err != nil {
			return Summary{}, err
		}
		sum.Datasets, sum.Runs = c.Datasets, c.Runs
	}

	var fishbone Ishikawa
	if err := s.optionalDocument(ctx, id, DocIshikawa, &fishbone); err != nil {
		return Summary{}, err
	}
	sum.RootCauses = len(fishbone.Causes)

	var plan ActionPlan
	if err := s.optionalDocument(ctx, id, DocActionPlan, &plan); err != nil {
		return Summary{}, err
	}
	sum.Actions = plan.CountByStatus()
	sum.ActionCost = plan.TotalCost()

	var control ControlPlan
	if err := s.optionalDocument(ctx, id, DocControlPlan, &control); err != nil {
		return Summary{}, err
	}
	sum.ControlItems = len(control.Items)

	history, err := s.KPIs(ctx, id)
	if err != nil {
		return Summary{}, err
	}
	dash := NewDashboard(history)
	sum.KPIs, sum.KPIStatus = dash.Total, dash.Status

	if sum.Reports, err = s.count(ctx, `SELECT COUNT(*) FROM reports WHERE project_id = ?`, id); err != nil {
		return Summary{}, err
	}
	if sum.Simulations, err = s.count(ctx, `SELECT COUNT(*) FROM simulations WHERE project_id = ?`, id); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (s *Store) optionalDocument(ctx context.Context, id string, kind DocumentKind, dst any) error {
	err := s.LoadDocument(ctx, id, kind, dst)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil
	}
	return err
}

func daysBetween(from, to time.Time) int {
	return int(math.Floor(to.Sub(from).Hours() / 24))
}
