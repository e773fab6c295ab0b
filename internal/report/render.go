// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package report

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var htmlTemplate = template.Must(template.New("report.html.tmpl").Funcs(template.FuncMap{
	"date":      func(t time.Time) string { return t.Format(time.DateOnly) },
	"timestamp": func(t time.Time) string { return t.Format(time.DateTime) },
}).ParseFS(templateFS, "templates/report.html.tmpl"))

// RenderHTML writes doc as a standalone HTML page. All text is escaped.
func RenderHTML(w io.Writer, doc Document) error {
	if err := htmlTemplate.Execute(w, doc); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

const (
	pdfMargin   = 20.0
	pdfLine     = 6.0
	pdfFont     = "Helvetica"
	pdfMaxWidth = 170.0
)

// RenderPDF writes doc as an A4 PDF using the core fonts.
func RenderPDF(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor(doc.Author, true)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont(pdfFont, "I", 8)
		pdf.SetTextColor(102, 102, 102)
		pdf.CellFormat(0, 10, tr(fmt.Sprintf("Sistema DMAIC - %s - página %d", doc.Organization, pdf.PageNo())), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont(pdfFont, "B", 20)
	pdf.SetTextColor(0, 102, 0)
	pdf.MultiCell(0, 10, tr(doc.Title), "", "C", false)
	pdf.Ln(4)

	pdf.SetTextColor(17, 17, 17)
	pdf.SetFont(pdfFont, "", 11)
	for _, line := range []string{
		"Projeto: " + doc.Project,
		"Autor: " + doc.Author,
		"Data: " + doc.Date.Format(time.DateOnly),
	} {
		pdf.MultiCell(0, pdfLine, tr(line), "", "L", false)
	}
	pdf.Ln(4)

	heading := func(s string) {
		pdf.Ln(2)
		pdf.SetFont(pdfFont, "B", 14)
		pdf.SetTextColor(0, 68, 136)
		pdf.MultiCell(0, 8, tr(s), "", "L", false)
		pdf.SetFont(pdfFont, "", 11)
		pdf.SetTextColor(17, 17, 17)
	}

	heading("Resumo Executivo")
	pdf.MultiCell(0, pdfLine, tr(doc.Summary), "", "J", false)

	if len(doc.Metrics) > 0 {
		heading("Métricas Principais")
		for _, m := range doc.Metrics {
			pdf.MultiCell(0, pdfLine, tr("• "+m.Label+": "+m.Value), "", "L", false)
		}
	}

	if len(doc.Tables) > 0 {
		heading("Análises")
		for _, t := range doc.Tables {
			pdf.SetFont(pdfFont, "B", 12)
			pdf.MultiCell(0, 7, tr(t.Title), "", "L", false)
			pdfTable(pdf, tr, t)
			if t.Interpretation != "" {
				pdf.SetFont(pdfFont, "I", 10)
				pdf.MultiCell(0, pdfLine, tr(t.Interpretation), "", "L", false)
			}
			pdf.Ln(3)
		}
	}

	if doc.Conclusions != "" {
		heading("Conclusões")
		pdf.MultiCell(0, pdfLine, tr(doc.Conclusions), "", "J", false)
	}
	if len(doc.Recommendations) > 0 {
		heading("Recomendações")
		for _, r := range doc.Recommendations {
			pdf.MultiCell(0, pdfLine, tr("• "+r), "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func pdfTable(pdf *fpdf.Fpdf, tr func(string) string, t Table) {
	cols := len(t.Header)
	if cols == 0 {
		return
	}
	width := pdfMaxWidth / float64(cols)
	pdf.SetFont(pdfFont, "B", 9)
	pdf.SetFillColor(128, 128, 128)
	pdf.SetTextColor(245, 245, 245)
	for _, h := range t.Header {
		pdf.CellFormat(width, 7, tr(truncate(h, width)), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(pdfFont, "", 9)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(17, 17, 17)
	for _, row := range t.Rows {
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(width, 6, tr(truncate(cell, width)), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
}

// truncate keeps a cell roughly within its column at 9pt.
func truncate(s string, width float64) string {
	limit := int(width / 1.8)
	r := []rune(s)
	if limit < 4 || len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit-1])) + "…"
}
