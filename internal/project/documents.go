// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package project

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ManuGH/dmaic/internal/validate"
)

// DocumentKind names a phase document stored as JSON.
type DocumentKind string

const (
	DocCharter      DocumentKind = "charter"
	DocStakeholders DocumentKind = "stakeholders"
	DocIshikawa     DocumentKind = "ishikawa"
	DocActionPlan   DocumentKind = "action_plan"
	DocControlPlan  DocumentKind = "control_plan"
)

// Smart holds the SMART goal criteria.
type Smart struct {
	Specific   string `json:"specific"`
	Measurable string `json:"measurable"`
	Achievable string `json:"achievable"`
	Relevant   string `json:"relevant"`
	TimeBound  string `json:"time_bound"`
}

// Metric is the primary metric tracked by the charter.
type Metric struct {
	Name     string  `json:"name"`
	Baseline float64 `json:"baseline"`
	Target   float64 `json:"target"`
	Unit     string  `json:"unit"`
}

// Charter is the Define-phase project charter.
type Charter struct {
	ProblemStatement string   `json:"problem_statement"`
	BusinessCase     string   `json:"business_case"`
	GoalStatement    string   `json:"goal_statement"`
	InScope          string   `json:"in_scope"`
	OutScope         string   `json:"out_scope"`
	CTQs             []string `json:"ctqs"`
	Smart            Smart    `json:"smart"`
	Metric           Metric   `json:"metric"`
}

// Validate requires a problem statement.
func (c Charter) Validate() error {
	v := validate.New()
	v.NotEmpty("problem_statement", c.ProblemStatement)
	return v.Err()
}

// ImprovementNeeded is the relative gap between baseline and target in
// percent, capped at 100.
func (c Charter) ImprovementNeeded() float64 {
	if c.Metric.Baseline == 0 {
		return 0
	}
	gap := math.Abs(c.Metric.Target-c.Metric.Baseline) / math.Abs(c.Metric.Baseline) * 100
	return math.Min(gap, 100)
}

// Stakeholder is one person in the RACI matrix of the charter.
type Stakeholder struct {
	Name string `json:"name"`
	Role string `json:"role"`
	RACI string `json:"raci"`
}

// ValidateStakeholders checks names and that RACI only uses R, A, C and I.
func ValidateStakeholders(list []Stakeholder) error {
	v := validate.New()
	for i, s := range list {
		v.NotEmpty(fmt.Sprintf("stakeholders[%d].name", i), s.Name)
		letters := strings.ToUpper(s.RACI)
		if letters == "" {
			v.AddError(fmt.Sprintf("stakeholders[%d].raci", i), "at least one of R, A, C, I", s.RACI)
		}
		for _, r := range letters {
			if !strings.ContainsRune("RACI", r) {
				v.AddError(fmt.Sprintf("stakeholders[%d].raci", i), "letters must be R, A, C or I", s.RACI)
				break
			}
		}
	}
	return v.Err()
}

// Category is an Ishikawa (6M) cause category.
type Category string

const (
	CategoryMan         Category = "man"
	CategoryMethod      Category = "method"
	CategoryMaterial    Category = "material"
	CategoryMachine     Category = "machine"
	CategoryMeasurement Category = "measurement"
	CategoryEnvironment Category = "environment"
)

var allCategories = []string{
	string(CategoryMan), string(CategoryMethod), string(CategoryMaterial),
	string(CategoryMachine), string(CategoryMeasurement), string(CategoryEnvironment),
}

// Cause is a candidate root cause with its priority inputs.
type Cause struct {
	Category Category `json:"category"`
	Cause    string   `json:"cause"`
	Impact   int      `json:"impact"`
	Ease     int      `json:"ease"`
}

// Score is impact times ease.
func (c Cause) Score() int { return c.Impact * c.Ease }

// Ishikawa is the fishbone diagram of the Improve phase.
type Ishikawa struct {
	Problem string  `json:"problem"`
	Causes  []Cause `json:"causes"`
}

// Validate checks categories and 1..10 scores.
func (d Ishikawa) Validate() error {
	v := validate.New()
	v.NotEmpty("problem", d.Problem)
	for i, c := range d.Causes {
		f := fmt.Sprintf("causes[%d]", i)
		v.OneOf(f+".category", string(c.Category), allCategories)
		v.NotEmpty(f+".cause", c.Cause)
		v.Range(f+".impact", c.Impact, 1, 10)
		v.Range(f+".ease", c.Ease, 1, 10)
	}
	return v.Err()
}

// Prioritized returns the causes ordered by score, highest first.
func (d Ishikawa) Prioritized() []Cause {
	out := append([]Cause(nil), d.Causes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score() > out[j].Score() })
	return out
}

// Top returns the n highest-scoring causes.
func (d Ishikawa) Top(n int) []Cause {
	p := d.Prioritized()
	if n < len(p) {
		p = p[:n]
	}
	return p
}

// ActionStatus is the state of a 5W2H action.
type ActionStatus string

const (
	ActionNotStarted ActionStatus = "not_started"
	ActionInProgress ActionStatus = "in_progress"
	ActionDone       ActionStatus = "done"
	ActionCancelled  ActionStatus = "cancelled"
)

var allActionStatuses = []string{string(ActionNotStarted), string(ActionInProgress), string(ActionDone), string(ActionCancelled)}

// Action is one 5W2H line.
type Action struct {
	What    string       `json:"what"`
	Why     string       `json:"why"`
	Where   string       `json:"where"`
	When    string       `json:"when"`
	Who     string       `json:"who"`
	How     string       `json:"how"`
	HowMuch float64      `json:"how_much"`
	Status  ActionStatus `json:"status"`
}

// ActionPlan is the Improve-phase 5W2H plan with its RACI assignment
// (action -> stakeholder -> letter).
type ActionPlan struct {
	Actions []Action                     `json:"actions"`
	RACI    map[string]map[string]string `json:"raci,omitempty"`
}

// Validate checks statuses, costs and RACI letters.
func (a ActionPlan) Validate() error {
	v := validate.New()
	for i, act := range a.Actions {
		f := fmt.Sprintf("actions[%d]", i)
		v.NotEmpty(f+".what", act.What)
		v.OneOf(f+".status", string(act.Status), allActionStatuses)
		v.NonNegative(f+".how_much", act.HowMuch)
	}
	for action, row := range a.RACI {
		for who, letter := range row {
			v.OneOf(fmt.Sprintf("raci[%s][%s]", action, who), letter, []string{"R", "A", "C", "I", "-"})
		}
	}
	return v.Err()
}

// TotalCost sums HowMuch over all actions.
func (a ActionPlan) TotalCost() float64 {
	total := 0.0
	for _, act := range a.Actions {
		total += act.HowMuch
	}
	return total
}

// Completed counts finished actions.
func (a ActionPlan) Completed() int {
	return a.CountByStatus()[ActionDone]
}

// CountByStatus counts actions per status.
func (a ActionPlan) CountByStatus() map[ActionStatus]int {
	out := map[ActionStatus]int{}
	for _, act := range a.Actions {
		out[act.Status]++
	}
	return out
}

// ItemStatus is the state of a control plan item.
type ItemStatus string

const (
	ItemOK       ItemStatus = "ok"
	ItemPending  ItemStatus = "pending"
	ItemLate     ItemStatus = "late"
	ItemCritical ItemStatus = "critical"
)

// ControlItem is one monitored activity.
type ControlItem struct {
	Item      string     `json:"item"`
	Frequency string     `json:"frequency"`
	Owner     string     `json:"owner"`
	LastCheck string     `json:"last_check"`
	Status    ItemStatus `json:"status"`
}

// Alert triggers when a metric leaves [Lower, Upper].
type Alert struct {
	Metric string   `json:"metric"`
	Lower  *float64 `json:"lower,omitempty"`
	Upper  *float64 `json:"upper,omitempty"`
	Action string   `json:"action"`
	Notify string   `json:"notify"`
}

// ControlPlan is the Control-phase sustainment plan.
type ControlPlan struct {
	Items  []ControlItem `json:"items"`
	Alerts []Alert       `json:"alerts"`
}

// Validate checks item statuses and alert bounds.
func (c ControlPlan) Validate() error {
	v := validate.New()
	for i, it := range c.Items {
		f := fmt.Sprintf("items[%d]", i)
		v.NotEmpty(f+".item", it.Item)
		v.OneOf(f+".status", string(it.Status), []string{string(ItemOK), string(ItemPending), string(ItemLate), string(ItemCritical)})
	}
	for i, a := range c.Alerts {
		f := fmt.Sprintf("alerts[%d]", i)
		v.NotEmpty(f+".metric", a.Metric)
		if a.Lower == nil && a.Upper == nil {
			v.AddError(f, "lower or upper is required", a.Metric)
		}
		if a.Lower != nil && a.Upper != nil && *a.Upper < *a.Lower {
			v.AddError(f+".upper", "must not be below lower", *a.Upper)
		}
	}
	return v.Err()
}

// TriggeredAlert is an alert whose metric is out of bounds.
type TriggeredAlert struct {
	Alert
	Value float64 `json:"value"`
}

// CheckAlerts evaluates metric values against the plan's alerts. Metrics
// without a value are skipped.
func (c ControlPlan) CheckAlerts(values map[string]float64) []TriggeredAlert {
	out := []TriggeredAlert{}
	for _, a := range c.Alerts {
		v, ok := values[a.Metric]
		if !ok {
			continue
		}
		if (a.Lower != nil && v < *a.Lower) || (a.Upper != nil && v > *a.Upper) {
			out = append(out, TriggeredAlert{Alert: a, Value: v})
		}
	}
	return out
}
