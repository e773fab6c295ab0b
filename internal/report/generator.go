// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/log"
	"github.com/ManuGH/dmaic/internal/project"
	"github.com/ManuGH/dmaic/internal/stats"
	"github.com/ManuGH/dmaic/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrDatasetRequired is returned when a measure report names no dataset.
var ErrDatasetRequired = errors.New("measure report requires a dataset")

// ProjectSource is the subset of the project store reports read from.
type ProjectSource interface {
	Get(ctx context.Context, id string) (project.Project, error)
	LoadDocument(ctx context.Context, id string, kind project.DocumentKind, dst any) error
	KPIs(ctx context.Context, id string) ([]project.KPI, error)
	RecordReport(ctx context.Context, r project.ReportRecord) (project.ReportRecord, error)
}

// RunLister lists analysis runs.
type RunLister interface {
	ListRuns(ctx context.Context, f catalog.RunFilter) ([]catalog.Run, error)
}

// DatasetOpener loads a curated dataset version.
type DatasetOpener interface {
	Open(ctx context.Context, name string, version int64) (catalog.DatasetVersion, *dataset.Frame, error)
}

// Request selects the report to generate.
type Request struct {
	ProjectID string
	Kind      Kind
	Formats   []Format
	// Dataset and Version select the data for measure reports and narrow
	// the run list of analyze reports.
	Dataset string
	Version int64
}

// Generated is the outcome of a report generation.
type Generated struct {
	Kind    Kind                   `json:"kind"`
	Title   string                 `json:"title"`
	Reports []project.ReportRecord `json:"reports"`
	Outputs []Output               `json:"outputs"`
}

// Generator gathers project data, builds a document and writes it.
type Generator struct {
	projects ProjectSource
	runs     RunLister
	datasets DatasetOpener
	builder  *Builder
	writer   *Writer
	group    singleflight.Group
	now      func() time.Time
}

// NewGenerator wires a generator.
func NewGenerator(projects ProjectSource, runs RunLister, datasets DatasetOpener, builder *Builder, writer *Writer) *Generator {
	return &Generator{
		projects: projects,
		runs:     runs,
		datasets: datasets,
		builder:  builder,
		writer:   writer,
		now:      time.Now,
	}
}

// Generate builds and writes a report, recording every output file against
// the project. Identical concurrent requests share one generation.
func (g *Generator) Generate(ctx context.Context, req Request) (Generated, error) {
	if len(req.Formats) == 0 {
		req.Formats = []Format{FormatHTML}
	}
	formats := make([]string, len(req.Formats))
	for i, f := range req.Formats {
		formats[i] = string(f)
	}

	ctx, span := telemetry.Tracer("dmaic/report").Start(ctx, "report.generate")
	defer span.End()
	span.SetAttributes(telemetry.ReportAttributes(string(req.Kind), formats)...)
	span.SetAttributes(attribute.String("project.id", req.ProjectID))

	key := strings.Join([]string{req.ProjectID, string(req.Kind), strings.Join(formats, ","), req.Dataset, strconv.FormatInt(req.Version, 10)}, "|")
	v, err, _ := g.group.Do(key, func() (any, error) {
		return g.generate(context.WithoutCancel(ctx), req)
	})
	if err != nil {
		telemetry.RecordError(span, err, "report")
		return Generated{}, err
	}
	return v.(Generated), nil
}

func (g *Generator) generate(ctx context.Context, req Request) (Generated, error) {
	p, err := g.projects.Get(ctx, req.ProjectID)
	if err != nil {
		return Generated{}, err
	}
	ctx = log.ContextWithJobID(ctx, "report:"+string(req.Kind)+":"+p.ID)

	var doc Document
	switch req.Kind {
	case KindCharter:
		doc, err = g.charter(ctx, p)
	case KindMeasure:
		doc, err = g.measure(ctx, p, req.Dataset, req.Version)
	case KindAnalyze:
		doc, err = g.analyze(ctx, p, req.Dataset)
	case KindFinal:
		doc, err = g.final(ctx, p)
	default:
		err = fmt.Errorf("unknown report kind %q", req.Kind)
	}
	if err != nil {
		return Generated{}, err
	}

	name := fmt.Sprintf("%s_%s_%s", req.Kind, p.ID, g.now().UTC().Format("20060102_150405"))
	outputs, err := g.writer.Write(ctx, name, doc, req.Formats)
	if err != nil {
		return Generated{}, err
	}
	out := Generated{Kind: req.Kind, Title: doc.Title, Outputs: outputs}
	for _, o := range outputs {
		rec, err := g.projects.RecordReport(ctx, project.ReportRecord{
			ProjectID: p.ID,
			Kind:      string(req.Kind),
			Format:    string(o.Format),
			Path:      o.Path,
		})
		if err != nil {
			return Generated{}, err
		}
		out.Reports = append(out.Reports, rec)
	}
	return out, nil
}

func (g *Generator) charter(ctx context.Context, p project.Project) (Document, error) {
	var ch project.Charter
	if err := g.projects.LoadDocument(ctx, p.ID, project.DocCharter, &ch); err != nil {
		return Document{}, err
	}
	var team []project.Stakeholder
	if err := g.projects.LoadDocument(ctx, p.ID, project.DocStakeholders, &team); err != nil && !errors.Is(err, project.ErrDocumentNotFound) {
		return Document{}, err
	}
	return g.builder.CharterReport(p, ch, team), nil
}

func (g *Generator) measure(ctx context.Context, p project.Project, name string, version int64) (Document, error) {
	if name == "" {
		return Document{}, ErrDatasetRequired
	}
	v, frame, err := g.datasets.Open(ctx, name, version)
	if err != nil {
		return Document{}, err
	}
	desc, err := stats.Describe(frame, nil)
	if err != nil && !errors.Is(err, stats.ErrNoNumericColumns) {
		return Document{}, err
	}
	return g.builder.MeasureReport(p, fmt.Sprintf("%s v%d", v.Name, v.Version), dataset.ProfileFrame(frame), desc), nil
}

func (g *Generator) analyze(ctx context.Context, p project.Project, datasetName string) (Document, error) {
	runs, err := g.runs.ListRuns(ctx, catalog.RunFilter{Dataset: datasetName})
	if err != nil {
		return Document{}, err
	}
	return g.builder.AnalyzeReport(p, runs), nil
}

func (g *Generator) final(ctx context.Context, p project.Project) (Document, error) {
	var (
		history []project.KPI
		plan    project.ActionPlan
		control project.ControlPlan
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		history, err = g.projects.KPIs(egCtx, p.ID)
		return err
	})
	eg.Go(func() error { return g.optional(egCtx, p.ID, project.DocActionPlan, &plan) })
	eg.Go(func() error { return g.optional(egCtx, p.ID, project.DocControlPlan, &control) })
	if err := eg.Wait(); err != nil {
		return Document{}, err
	}
	return g.builder.FinalReport(p, project.NewDashboard(history), plan, control), nil
}

func (g *Generator) optional(ctx context.Context, id string, kind project.DocumentKind, dst any) error {
	err := g.projects.LoadDocument(ctx, id, kind, dst)
	if errors.Is(err, project.ErrDocumentNotFound) {
		return nil
	}
	return err
}
