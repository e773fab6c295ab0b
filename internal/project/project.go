// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package project tracks DMAIC improvement projects: the project record,
// its phase, and the documents produced in each phase.
package project

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/dmaic/internal/validate"
)

var (
	// ErrNotFound is returned when a project does not exist.
	ErrNotFound = errors.New("project not found")
	// ErrFinalPhase is returned when advancing a project already in Control.
	ErrFinalPhase = errors.New("project is already in the final phase")
	// ErrDocumentNotFound is returned when a phase document was never saved.
	ErrDocumentNotFound = errors.New("project document not found")
	// ErrConcurrentChange is returned when another writer changed the
	// project between read and write.
	ErrConcurrentChange = errors.New("project changed concurrently")
)

// Phase is a DMAIC phase.
type Phase string

const (
	PhaseDefine  Phase = "define"
	PhaseMeasure Phase = "measure"
	PhaseAnalyze Phase = "analyze"
	PhaseImprove Phase = "improve"
	PhaseControl Phase = "control"
)

// Phases lists the phases in order.
var Phases = []Phase{PhaseDefine, PhaseMeasure, PhaseAnalyze, PhaseImprove, PhaseControl}

// Index returns the zero-based position of p, or -1.
func (p Phase) Index() int {
	for i, ph := range Phases {
		if ph == p {
			return i
		}
	}
	return -1
}

// Next returns the phase after p.
func (p Phase) Next() (Phase, error) {
	i := p.Index()
	if i < 0 {
		return "", fmt.Errorf("unknown phase %q", p)
	}
	if i == len(Phases)-1 {
		return "", ErrFinalPhase
	}
	return Phases[i+1], nil
}

// ParsePhase accepts a phase name in any case.
func ParsePhase(s string) (Phase, error) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	if p.Index() < 0 {
		return "", fmt.Errorf("unknown phase %q", s)
	}
	return p, nil
}

// Status is the lifecycle state of a project.
type Status string

const (
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Type classifies the process being improved.
type Type string

const (
	TypeManufacturing Type = "manufacturing"
	TypeService       Type = "service"
	TypeTransactional Type = "transactional"
	TypeHealthcare    Type = "healthcare"
	TypeIT            Type = "it"
	TypeOther         Type = "other"
)

var (
	allStatuses = []string{string(StatusActive), string(StatusOnHold), string(StatusCompleted), string(StatusCancelled)}
	allTypes    = []string{
		string(TypeManufacturing), string(TypeService), string(TypeTransactional),
		string(TypeHealthcare), string(TypeIT), string(TypeOther),
	}
)

// Project is the top-level record of an improvement project.
type Project struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Company         string    `json:"company"`
	Department      string    `json:"department"`
	Type            Type      `json:"type"`
	StartDate       time.Time `json:"start_date"`
	TargetDate      time.Time `json:"target_date"`
	Champion        string    `json:"champion"`
	Leader          string    `json:"leader"`
	ExpectedSavings float64   `json:"expected_savings"`
	Phase           Phase     `json:"phase"`
	Status          Status    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate checks required fields and date order.
func (p Project) Validate() error {
	v := validate.New()
	v.NotEmpty("name", strings.TrimSpace(p.Name))
	v.OneOf("type", string(p.Type), allTypes)
	v.OneOf("status", string(p.Status), allStatuses)
	if p.Phase.Index() < 0 {
		v.AddError("phase", "must be a DMAIC phase", p.Phase)
	}
	v.NonNegative("expected_savings", p.ExpectedSavings)
	if !p.StartDate.IsZero() && !p.TargetDate.IsZero() && p.TargetDate.Before(p.StartDate) {
		v.AddError("target_date", "must not be before start_date", p.TargetDate.Format(time.DateOnly))
	}
	return v.Err()
}

// Progress is the share of phases completed, 100 once the project is done.
func (p Project) Progress() float64 {
	if p.Status == StatusCompleted {
		return 100
	}
	i := p.Phase.Index()
	if i < 0 {
		return 0
	}
	return float64(i) / float64(len(Phases)) * 100
}

// Patch carries optional updates; nil fields are left unchanged.
type Patch struct {
	Name            *string    `json:"name,omitempty"`
	Description     *string    `json:"description,omitempty"`
	Company         *string    `json:"company,omitempty"`
	Department      *string    `json:"department,omitempty"`
	Type            *Type      `json:"type,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	TargetDate      *time.Time `json:"target_date,omitempty"`
	Champion        *string    `json:"champion,omitempty"`
	Leader          *string    `json:"leader,omitempty"`
	ExpectedSavings *float64   `json:"expected_savings,omitempty"`
	Status          *Status    `json:"status,omitempty"`
}

// Apply returns p with the patch applied.
func (pt Patch) Apply(p Project) Project {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Name, pt.Name)
	set(&p.Description, pt.Description)
	set(&p.Company, pt.Company)
	set(&p.Department, pt.Department)
	set(&p.Champion, pt.Champion)
	set(&p.Leader, pt.Leader)
	if pt.Type != nil {
		p.Type = *pt.Type
	}
	if pt.StartDate != nil {
		p.StartDate = *pt.StartDate
	}
	if pt.TargetDate != nil {
		p.TargetDate = *pt.TargetDate
	}
	if pt.ExpectedSavings != nil {
		p.ExpectedSavings = *pt.ExpectedSavings
	}
	if pt.Status != nil {
		p.Status = *pt.Status
	}
	return p
}
