// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package analysis

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/spc"
	"github.com/ManuGH/dmaic/internal/stats"
)

// Kind names an analysis.
type Kind string

const (
	KindDescribe     Kind = "describe"
	KindOutliers     Kind = "outliers"
	KindNormality    Kind = "normality"
	KindLevene       Kind = "levene"
	KindTTest        Kind = "ttest"
	KindANOVA        Kind = "anova"
	KindCorrelation  Kind = "correlation"
	KindRegression   Kind = "regression"
	KindCapability   Kind = "capability"
	KindControlChart Kind = "control_chart"
	KindPareto       Kind = "pareto"
	KindHistogram    Kind = "histogram"
	KindQQ           Kind = "qq"
)

type runner func(f *dataset.Frame, p Params, cfg stats.Config) (any, error)

type kindSpec struct {
	phase string
	run   runner
}

var kinds = map[Kind]kindSpec{
	KindDescribe:     {"measure", runDescribe},
	KindOutliers:     {"measure", runOutliers},
	KindNormality:    {"measure", runNormality},
	KindHistogram:    {"measure", runHistogram},
	KindQQ:           {"measure", runQQ},
	KindCapability:   {"measure", runCapability},
	KindPareto:       {"analyze", runPareto},
	KindLevene:       {"analyze", runLevene},
	KindTTest:        {"analyze", runTTest},
	KindANOVA:        {"analyze", runANOVA},
	KindCorrelation:  {"analyze", runCorrelation},
	KindRegression:   {"analyze", runRegression},
	KindControlChart: {"control", runControlChart},
}

// Kinds lists the supported analyses in name order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind validates an analysis name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Phase returns the DMAIC phase a kind is recorded under.
func (k Kind) Phase() string { return kinds[k].phase }

func column(f *dataset.Frame, name string) (*dataset.Column, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	return c, nil
}

func numericColumn(f *dataset.Frame, name string) (*dataset.Column, error) {
	c, err := column(f, name)
	if err != nil {
		return nil, err
	}
	if c.Kind != dataset.KindNumeric {
		return nil, fmt.Errorf("%w: %q", ErrNotNumeric, name)
	}
	return c, nil
}

func numericValues(f *dataset.Frame, p Params, key string) ([]float64, error) {
	name, err := p.required(key)
	if err != nil {
		return nil, err
	}
	c, err := numericColumn(f, name)
	if err != nil {
		return nil, err
	}
	return c.Floats(), nil
}

// subFrame keeps the named columns, all of which must be numeric.
func subFrame(f *dataset.Frame, names []string) (*dataset.Frame, error) {
	if len(names) == 0 {
		return f, nil
	}
	out := &dataset.Frame{Columns: make([]*dataset.Column, 0, len(names))}
	for _, n := range names {
		c, err := numericColumn(f, n)
		if err != nil {
			return nil, err
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// groupedValues splits the value column by the labels of the group column,
// dropping rows where either cell is null. Groups are ordered by name.
func groupedValues(f *dataset.Frame, p Params) ([]stats.Group, error) {
	valueName, err := p.required("value")
	if err != nil {
		return nil, err
	}
	groupName, err := p.required("group")
	if err != nil {
		return nil, err
	}
	values, err := numericColumn(f, valueName)
	if err != nil {
		return nil, err
	}
	labels, err := column(f, groupName)
	if err != nil {
		return nil, err
	}
	byName := map[string][]float64{}
	for i := 0; i < values.Len(); i++ {
		if values.IsNull(i) || labels.IsNull(i) {
			continue
		}
		g := labels.Cell(i)
		byName[g] = append(byName[g], values.Nums[i])
	}
	if want := p.list("groups"); len(want) > 0 {
		selected := make(map[string][]float64, len(want))
		for _, g := range want {
			v, ok := byName[g]
			if !ok {
				return nil, fmt.Errorf("%w: group %q not present in %q", ErrInvalidParams, g, groupName)
			}
			selected[g] = v
		}
		byName = selected
	}
	out := make([]stats.Group, 0, len(byName))
	for name, v := range byName {
		out = append(out, stats.Group{Name: name, Values: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func runDescribe(f *dataset.Frame, p Params, _ stats.Config) (any, error) {
	cols := p.list("columns")
	for _, c := range cols {
		if _, err := numericColumn(f, c); err != nil {
			return nil, err
		}
	}
	return stats.Describe(f, cols)
}

func runOutliers(f *dataset.Frame, p Params, _ stats.Config) (any, error) {
	method, err := stats.ParseOutlierMethod(p.str("method"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	x, err := numericValues(f, p, "column")
	if err != nil {
		return nil, err
	}
	return stats.DetectOutliers(x, method), nil
}

// NormalityOutput carries one or both normality tests.
type NormalityOutput struct {
	ShapiroWilk     *stats.Normality `json:"shapiro_wilk,omitempty"`
	AndersonDarling *stats.Normality `json:"anderson_darling,omitempty"`
}

func runNormality(f *dataset.Frame, p Params, cfg stats.Config) (any, error) {
	x, err := numericValues(f, p, "column")
	if err != nil {
		return nil, err
	}
	var out NormalityOutput
	test := p.str("test")
	switch test {
	case "", "shapiro", "both":
		sw, err := stats.ShapiroWilk(x, cfg.Alpha)
		if err != nil {
			return nil, err
		}
		out.ShapiroWilk = &sw
	case "anderson":
	default:
		return nil, fmt.Errorf("%w: unknown normality test %q", ErrInvalidParams, test)
	}
	if test == "anderson" || test == "both" {
		ad, err := stats.AndersonDarling(x)
		if err != nil {
			return nil, err
		}
		out.AndersonDarling = &ad
	}
	return out, nil
}

func runHistogram(f *dataset.Frame, p Params, _ stats.Config) (any, error) {
	bins, err := p.intOr("bins", spc.DefaultBins)
	if err != nil {
		return nil, err
	}
	if bins > spc.MaxBins {
		return nil, fmt.Errorf("%w: \"bins\" must be at most %d, got %d", ErrInvalidParams, spc.MaxBins, bins)
	}
	x, err := numericValues(f, p, "column")
	if err != nil {
		return nil, err
	}
	return spc.NewHistogram(x, bins)
}

func runQQ(f *dataset.Frame, p Params, _ stats.Config) (any, error) {
	x, err := numericValues(f, p, "column")
	if err != nil {
		return nil, err
	}
	return spc.QQPoints(x)
}

func runCapability(f *dataset.Frame, p Params, cfg stats.Config) (any, error) {
	var spec stats.SpecLimits
	var err error
	if spec.LSL, err = p.optFloat("lsl"); err != nil {
		return nil, err
	}
	if spec.USL, err = p.optFloat("usl"); err != nil {
		return nil, err
	}
	if spec.Target, err = p.optFloat("target"); err != nil {
		return nil, err
	}
	x, err := numericValues(f, p, "column")
	if err != nil {
		return nil, err
	}
	return stats.Capability(x, spec, cfg)
}

func runPareto(f *dataset.Frame, p Params, _ stats.Config) (any, error) {
	catName, err := p.required("category")
	if err != nil {
		return nil, err
	}
	cats, err := column(f, catName)
	if err != nil {
		return nil, err
	}
	var values *dataset.Column
	if name := p.str("value"); name != "" {
		if values, err = numericColumn(f, name); err != nil {
			return nil, err
		}
	}
	items := make([]spc.ParetoItem, 0, cats.Len())
	for i := 0; i < cats.Len(); i++ {
		if cats.IsNull(i) {
			continue
		}
		v := 1.0
		if values != nil {
			if values.IsNull(i) {
				continue
			}
			v = values.Nums[i]
		}
		items = append(items, spc.ParetoItem{Category: cats.Cell(i), Value: v})
	}
	return spc.Pareto(items)
}

func runLevene(f *dataset.Frame, p Params, _ stats.Config) (any, error) {
	groups, err := groupedValues(f, p)
	if err != nil {
		return nil, err
	}
	samples := make([][]float64, len(groups))
	for i, g := range groups {
		samples[i] = g.Values
	}
	return stats.Levene(samples)
}

// TTestOutput names the compared groups alongside the test.
type TTestOutput struct {
	GroupA string            `json:"group_a"`
	GroupB string            `json:"group_b"`
	Test   stats.TTestResult `json:"test"`
}

func runTTest(f *dataset.Frame, p Params, cfg stats.Config) (any, error) {
	groups, err := groupedValues(f, p)
	if err != nil {
		return nil, err
	}
	switch {
	case len(groups) < 2:
		return nil, fmt.Errorf("%w: found %d", stats.ErrInsufficientGroups, len(groups))
	case len(groups) > 2:
		return nil, fmt.Errorf("%w: ttest compares exactly two groups, found %d; select two with \"groups\"", ErrInvalidParams, len(groups))
	}
	res, err := stats.TTest(groups[0].Values, groups[1].Values, cfg)
	if err != nil {
		return nil, err
	}
	return TTestOutput{GroupA: groups[0].Name, GroupB: groups[1].Name, Test: res}, nil
}

func runANOVA(f *dataset.Frame, p Params, cfg stats.Config) (any, error) {
	groups, err := groupedValues(f, p)
	if err != nil {
		return nil, err
	}
	return stats.ANOVA(groups, cfg)
}

// CorrelationOutput adds the significant pairs to the matrix.
type CorrelationOutput struct {
	Matrix      stats.CorrelationMatrix `json:"matrix"`
	Significant []stats.CorrelationPair `json:"significant"`
}

func runCorrelation(f *dataset.Frame, p Params, cfg stats.Config) (any, error) {
	method, err := stats.ParseCorrelationMethod(p.str("method"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	sub, err := subFrame(f, p.list("columns"))
	if err != nil {
		return nil, err
	}
	m, err := stats.Correlation(sub, method)
	if err != nil {
		return nil, err
	}
	sig := m.Significant(cfg.Alpha)
	if sig == nil {
		sig = []stats.CorrelationPair{}
	}
	return CorrelationOutput{Matrix: m, Significant: sig}, nil
}

func runRegression(f *dataset.Frame, p Params, cfg stats.Config) (any, error) {
	target, err := p.required("target")
	if err != nil {
		return nil, err
	}
	predictors := p.list("predictors")
	if len(predictors) == 0 {
		return nil, fmt.Errorf("%w: \"predictors\" is required", ErrInvalidParams)
	}
	for _, name := range append([]string{target}, predictors...) {
		if _, err := numericColumn(f, name); err != nil {
			return nil, err
		}
	}
	series, err := stats.SeriesFromFrame(f, append([]string{target}, predictors...)...)
	if err != nil {
		return nil, err
	}
	return stats.OLS(series[0], series[1:], cfg)
}

func runControlChart(f *dataset.Frame, p Params, _ stats.Config) (any, error) {
	valueName, err := p.required("column")
	if err != nil {
		return nil, err
	}
	values, err := numericColumn(f, valueName)
	if err != nil {
		return nil, err
	}
	var labels *dataset.Column
	if name := p.str("label"); name != "" {
		if labels, err = column(f, name); err != nil {
			return nil, err
		}
	}
	points := make([]spc.Point, 0, values.Len())
	for i := 0; i < values.Len(); i++ {
		if values.IsNull(i) {
			continue
		}
		label := strconv.Itoa(i + 1)
		if labels != nil {
			label = labels.Cell(i)
		}
		points = append(points, spc.Point{Label: label, Value: values.Nums[i]})
	}
	return spc.ControlChart(points)
}
