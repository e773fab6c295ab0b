// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dataset

import (
	"math"
	"strings"
)

// ColumnProfile summarises one column.
type ColumnProfile struct {
	Name       string  `json:"name"`
	Kind       Kind    `json:"kind"`
	Unique     int     `json:"unique"`
	Missing    int     `json:"missing"`
	MissingPct float64 `json:"missing_pct"`
}

// Profile is the data quality report shown before curation.
type Profile struct {
	Rows          int             `json:"rows"`
	Columns       int             `json:"columns"`
	TotalMissing  int             `json:"total_missing"`
	DuplicateRows int             `json:"duplicate_rows"`
	QualityScore  float64         `json:"quality_score"`
	ColumnDetails []ColumnProfile `json:"column_details"`
}

// ProfileFrame computes the quality report. QualityScore is the share of
// non-missing cells in percent; an empty frame scores 0.
func ProfileFrame(f *Frame) Profile {
	rows := f.Rows()
	p := Profile{
		Rows:          rows,
		Columns:       len(f.Columns),
		ColumnDetails: make([]ColumnProfile, 0, len(f.Columns)),
	}

	for _, c := range f.Columns {
		missing := c.Missing()
		unique := make(map[string]struct{})
		for i := 0; i < c.Len(); i++ {
			if !c.Nulls[i] {
				unique[c.Cell(i)] = struct{}{}
			}
		}
		cp := ColumnProfile{
			Name:    c.Name,
			Kind:    c.Kind,
			Unique:  len(unique),
			Missing: missing,
		}
		if rows > 0 {
			cp.MissingPct = round2(float64(missing) / float64(rows) * 100)
		}
		p.TotalMissing += missing
		p.ColumnDetails = append(p.ColumnDetails, cp)
	}

	seen := make(map[string]struct{}, rows)
	var key strings.Builder
	for i := 0; i < rows; i++ {
		key.Reset()
		for _, c := range f.Columns {
			if c.Nulls[i] {
				key.WriteString("\x00")
			} else {
				key.WriteString(c.Cell(i))
			}
			key.WriteString("\x1f")
		}
		k := key.String()
		if _, dup := seen[k]; dup {
			p.DuplicateRows++
			continue
		}
		seen[k] = struct{}{}
	}

	if cells := rows * len(f.Columns); cells > 0 {
		p.QualityScore = round2(100 - float64(p.TotalMissing)/float64(cells)*100)
	}
	return p
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
