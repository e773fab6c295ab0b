// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package report renders project reports as HTML and PDF and persists
// analysis manifests next to them.
package report

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Format is an output format.
type Format string

const (
	FormatHTML Format = "html"
	FormatPDF  Format = "pdf"
)

// Kind names a report builder.
type Kind string

const (
	KindCharter Kind = "charter"
	KindMeasure Kind = "measure"
	KindAnalyze Kind = "analyze"
	KindFinal   Kind = "final"
)

// ParseKind validates a report kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindCharter, KindMeasure, KindAnalyze, KindFinal:
		return k, nil
	}
	return "", fmt.Errorf("unknown report kind %q", s)
}

// ParseFormats parses a comma separated list; empty means HTML only.
func ParseFormats(s string) ([]Format, error) {
	if strings.TrimSpace(s) == "" {
		return []Format{FormatHTML}, nil
	}
	var out []Format
	seen := map[Format]bool{}
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.ToLower(strings.TrimSpace(part)))
		if f != FormatHTML && f != FormatPDF {
			return nil, fmt.Errorf("unknown report format %q", part)
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Metric is a headline figure.
type Metric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Table is a titled grid of pre-formatted cells.
type Table struct {
	Title          string     `json:"title"`
	Header         []string   `json:"header"`
	Rows           [][]string `json:"rows"`
	Interpretation string     `json:"interpretation,omitempty"`
}

// Document is the renderer-neutral content of a report.
type Document struct {
	Kind            Kind      `json:"kind"`
	Title           string    `json:"title"`
	Project         string    `json:"project"`
	Summary         string    `json:"summary"`
	Author          string    `json:"author"`
	Organization    string    `json:"organization"`
	Date            time.Time `json:"date"`
	Metrics         []Metric  `json:"metrics,omitempty"`
	Tables          []Table   `json:"tables,omitempty"`
	Conclusions     string    `json:"conclusions,omitempty"`
	Recommendations []string  `json:"recommendations,omitempty"`
}

// Locale formats numbers for report text.
type Locale struct {
	p *message.Printer
}

// NewLocale returns a formatter for a BCP 47 tag; unknown tags fall back
// to Brazilian Portuguese.
func NewLocale(tag string) Locale {
	t, err := language.Parse(tag)
	if err != nil {
		t = language.BrazilianPortuguese
	}
	return Locale{p: message.NewPrinter(t)}
}

// Money formats an amount in reais, e.g. R$ 12.500,00.
func (l Locale) Money(v float64) string {
	return l.p.Sprintf("R$ %v", number.Decimal(v, number.Scale(2)))
}

// Number formats v with the given decimals.
func (l Locale) Number(v float64, decimals int) string {
	return l.p.Sprintf("%v", number.Decimal(v, number.Scale(decimals)))
}

// Percent formats v (already in percent) with one decimal.
func (l Locale) Percent(v float64) string {
	return l.Number(v, 1) + "%"
}
