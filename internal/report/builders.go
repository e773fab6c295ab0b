// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/dmaic/internal/catalog"
	"github.com/ManuGH/dmaic/internal/dataset"
	"github.com/ManuGH/dmaic/internal/project"
	"github.com/ManuGH/dmaic/internal/stats"
)

// Builder assembles report documents with shared metadata.
type Builder struct {
	Organization string
	Author       string
	Locale       Locale
	Now          func() time.Time
}

// NewBuilder returns a builder for the given organisation, author and locale.
func NewBuilder(org, author, locale string) *Builder {
	return &Builder{Organization: org, Author: author, Locale: NewLocale(locale), Now: time.Now}
}

func (b *Builder) base(kind Kind, title string, p project.Project) Document {
	return Document{
		Kind:         kind,
		Title:        title,
		Project:      p.Name,
		Author:       b.Author,
		Organization: b.Organization,
		Date:         b.Now(),
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func (b *Builder) float(f stats.Float) string {
	if !f.Valid() {
		return "-"
	}
	return b.Locale.Number(float64(f), 2)
}

// CharterReport documents the Define phase.
func (b *Builder) CharterReport(p project.Project, ch project.Charter, team []project.Stakeholder) Document {
	doc := b.base(KindCharter, "Project Charter - "+p.Name, p)
	doc.Summary = ch.ProblemStatement
	doc.Metrics = []Metric{
		{Label: "Economia esperada", Value: b.Locale.Money(p.ExpectedSavings)},
		{Label: "Melhoria necessária", Value: b.Locale.Percent(ch.ImprovementNeeded())},
		{Label: "Fase atual", Value: string(p.Phase)},
	}
	if ch.Metric.Name != "" {
		doc.Metrics = append(doc.Metrics,
			Metric{Label: ch.Metric.Name + " (baseline)", Value: b.Locale.Number(ch.Metric.Baseline, 2) + " " + ch.Metric.Unit},
			Metric{Label: ch.Metric.Name + " (meta)", Value: b.Locale.Number(ch.Metric.Target, 2) + " " + ch.Metric.Unit},
		)
	}
	doc.Tables = append(doc.Tables, Table{
		Title:  "Escopo e objetivos",
		Header: []string{"Item", "Descrição"},
		Rows: [][]string{
			{"Business case", orDash(ch.BusinessCase)},
			{"Objetivo", orDash(ch.GoalStatement)},
			{"Dentro do escopo", orDash(ch.InScope)},
			{"Fora do escopo", orDash(ch.OutScope)},
			{"CTQs", orDash(strings.Join(ch.CTQs, "; "))},
		},
	}, Table{
		Title:  "Meta SMART",
		Header: []string{"Critério", "Descrição"},
		Rows: [][]string{
			{"Específica", orDash(ch.Smart.Specific)},
			{"Mensurável", orDash(ch.Smart.Measurable)},
			{"Atingível", orDash(ch.Smart.Achievable)},
			{"Relevante", orDash(ch.Smart.Relevant)},
			{"Temporal", orDash(ch.Smart.TimeBound)},
		},
	})
	if len(team) > 0 {
		t := Table{Title: "Equipe (RACI)", Header: []string{"Nome", "Papel", "RACI"}}
		for _, s := range team {
			t.Rows = append(t.Rows, []string{s.Name, orDash(s.Role), strings.ToUpper(s.RACI)})
		}
		doc.Tables = append(doc.Tables, t)
	}
	return doc
}

// MeasureReport documents data quality and descriptive statistics.
func (b *Builder) MeasureReport(p project.Project, datasetName string, prof dataset.Profile, desc []stats.Summary) Document {
	doc := b.base(KindMeasure, "Relatório de Medição - "+datasetName, p)
	doc.Summary = fmt.Sprintf("O dataset %s possui %d linhas e %d colunas, com qualidade de %s.",
		datasetName, prof.Rows, prof.Columns, b.Locale.Percent(prof.QualityScore))
	doc.Metrics = []Metric{
		{Label: "Linhas", Value: strconv.Itoa(prof.Rows)},
		{Label: "Colunas", Value: strconv.Itoa(prof.Columns)},
		{Label: "Valores ausentes", Value: strconv.Itoa(prof.TotalMissing)},
		{Label: "Linhas duplicadas", Value: strconv.Itoa(prof.DuplicateRows)},
		{Label: "Qualidade", Value: b.Locale.Percent(prof.QualityScore)},
	}
	quality := Table{Title: "Qualidade por coluna", Header: []string{"Coluna", "Tipo", "Únicos", "Ausentes", "% Ausentes"}}
	for _, c := range prof.ColumnDetails {
		quality.Rows = append(quality.Rows, []string{
			c.Name, string(c.Kind), strconv.Itoa(c.Unique), strconv.Itoa(c.Missing), b.Locale.Percent(c.MissingPct),
		})
	}
	doc.Tables = append(doc.Tables, quality)
	if len(desc) > 0 {
		t := Table{
			Title:  "Estatística descritiva",
			Header: []string{"Coluna", "N", "Média", "Desvio", "Mín", "Q1", "Mediana", "Q3", "Máx", "CV %"},
		}
		for _, s := range desc {
			t.Rows = append(t.Rows, []string{
				s.Column, strconv.Itoa(s.Count), b.float(s.Mean), b.float(s.Std), b.float(s.Min),
				b.float(s.Q1), b.float(s.Median), b.float(s.Q3), b.float(s.Max), b.float(s.CV),
			})
		}
		doc.Tables = append(doc.Tables, t)
	}
	if prof.QualityScore < 95 {
		doc.Recommendations = append(doc.Recommendations, "Tratar valores ausentes antes das análises de capacidade.")
	}
	if prof.DuplicateRows > 0 {
		doc.Recommendations = append(doc.Recommendations, "Revisar linhas duplicadas na fonte de dados.")
	}
	return doc
}

// AnalyzeReport lists the analyses run for the project.
func (b *Builder) AnalyzeReport(p project.Project, runs []catalog.Run) Document {
	doc := b.base(KindAnalyze, "Relatório de Análise - "+p.Name, p)
	doc.Summary = fmt.Sprintf("Foram executadas %d análises estatísticas.", len(runs))
	byKind := map[string]int{}
	t := Table{Title: "Execuções", Header: []string{"Run", "Tipo", "Dataset", "Versão", "Data"}}
	for _, r := range runs {
		byKind[r.Kind]++
		version := "-"
		if r.DatasetVersion > 0 {
			version = strconv.FormatInt(r.DatasetVersion, 10)
		}
		t.Rows = append(t.Rows, []string{r.ID, r.Kind, orDash(r.DatasetName), version, r.CreatedAt.Format(time.DateTime)})
	}
	doc.Metrics = []Metric{{Label: "Análises", Value: strconv.Itoa(len(runs))}}
	for _, kind := range sortedKeys(byKind) {
		doc.Metrics = append(doc.Metrics, Metric{Label: kind, Value: strconv.Itoa(byKind[kind])})
	}
	if len(runs) > 0 {
		doc.Tables = append(doc.Tables, t)
	}
	return doc
}

// FinalReport closes the project with KPI status, actions and the control plan.
func (b *Builder) FinalReport(p project.Project, dash project.Dashboard, plan project.ActionPlan, control project.ControlPlan) Document {
	doc := b.base(KindFinal, "Relatório Final - "+p.Name, p)
	doc.Summary = fmt.Sprintf("Projeto na fase %s com %d de %d KPIs dentro da meta.", p.Phase, dash.OK, dash.Total)
	doc.Metrics = []Metric{
		{Label: "Economia esperada", Value: b.Locale.Money(p.ExpectedSavings)},
		{Label: "Custo das ações", Value: b.Locale.Money(plan.TotalCost())},
		{Label: "Ações concluídas", Value: fmt.Sprintf("%d/%d", plan.Completed(), len(plan.Actions))},
		{Label: "Status do processo", Value: dash.Status},
	}
	if len(dash.KPIs) > 0 {
		t := Table{Title: "KPIs", Header: []string{"KPI", "Meta", "Atual", "Delta", "Progresso", "OK"}}
		for _, e := range dash.KPIs {
			ok := "não"
			if e.OK {
				ok = "sim"
			}
			t.Rows = append(t.Rows, []string{
				e.Name, b.Locale.Number(e.Target, 2), b.Locale.Number(e.Current, 2),
				b.Locale.Number(e.Delta, 2), b.Locale.Percent(e.Progress), ok,
			})
		}
		doc.Tables = append(doc.Tables, t)
	}
	if len(plan.Actions) > 0 {
		t := Table{Title: "Plano de ação (5W2H)", Header: []string{"O quê", "Quem", "Quando", "Quanto", "Status"}}
		for _, a := range plan.Actions {
			t.Rows = append(t.Rows, []string{a.What, orDash(a.Who), orDash(a.When), b.Locale.Money(a.HowMuch), string(a.Status)})
		}
		doc.Tables = append(doc.Tables, t)
	}
	if len(control.Items) > 0 {
		t := Table{Title: "Plano de controle", Header: []string{"Item", "Frequência", "Responsável", "Status"}}
		for _, it := range control.Items {
			t.Rows = append(t.Rows, []string{it.Item, orDash(it.Frequency), orDash(it.Owner), string(it.Status)})
		}
		doc.Tables = append(doc.Tables, t)
	}
	switch dash.Status {
	case project.ProcessInControl:
		doc.Conclusions = "Todos os KPIs estão dentro da meta; manter o plano de controle."
	case project.ProcessAttention:
		doc.Conclusions = "Alguns KPIs estão fora da meta; acompanhar de perto."
	default:
		doc.Conclusions = "Processo fora de controle; ação imediata necessária."
	}
	for _, a := range plan.Actions {
		if a.Status == project.ActionNotStarted || a.Status == project.ActionInProgress {
			doc.Recommendations = append(doc.Recommendations, "Concluir: "+a.What)
		}
	}
	return doc
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
