// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"math"

	"github.com/ManuGH/dmaic/internal/dataset"
	"gonum.org/v1/gonum/stat"
)

// Summary is the descriptive summary of one numeric column.
type Summary struct {
	Column     string `json:"column"`
	Count      int    `json:"count"`
	Mean       Float  `json:"mean"`
	Std        Float  `json:"std"`
	Min        Float  `json:"min"`
	Q1         Float  `json:"q1"`
	Median     Float  `json:"median"`
	Q3         Float  `json:"q3"`
	Max        Float  `json:"max"`
	Missing    int    `json:"missing"`
	MissingPct Float  `json:"missing_pct"`
	CV         Float  `json:"cv_pct"`
}

// Describe summarises the requested numeric columns, or every numeric column
// when cols is empty. Columns without any value are skipped.
func Describe(f *dataset.Frame, cols []string) ([]Summary, error) {
	if len(cols) == 0 {
		cols = f.NumericColumns()
	}
	out := make([]Summary, 0, len(cols))
	for _, name := range cols {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		if col.Kind != dataset.KindNumeric {
			continue
		}
		x := col.Floats()
		if len(x) == 0 {
			continue
		}
		out = append(out, summarize(name, x, col.Missing(), col.Len()))
	}
	if len(out) == 0 {
		return nil, ErrNoNumericColumns
	}
	return out, nil
}

func summarize(name string, x []float64, missing, total int) Summary {
	s := sortedCopy(x)
	mean := stat.Mean(x, nil)
	std := math.NaN()
	if len(x) > 1 {
		std = stat.StdDev(x, nil)
	}
	cv := math.NaN()
	if mean != 0 && !math.IsNaN(std) {
		cv = std / math.Abs(mean) * 100
	}
	pct := 0.0
	if total > 0 {
		pct = float64(missing) / float64(total) * 100
	}
	return Summary{
		Column:     name,
		Count:      len(x),
		Mean:       Float(round(mean, 2)),
		Std:        Float(round(std, 2)),
		Min:        Float(round(s[0], 2)),
		Q1:         Float(round(Quantile(s, 0.25), 2)),
		Median:     Float(round(Quantile(s, 0.5), 2)),
		Q3:         Float(round(Quantile(s, 0.75), 2)),
		Max:        Float(round(s[len(s)-1], 2)),
		Missing:    missing,
		MissingPct: Float(round(pct, 2)),
		CV:         Float(round(cv, 2)),
	}
}
