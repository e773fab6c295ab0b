// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dataset

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var datasetNameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidateName checks a dataset name: lowercase letters, digits and underscore.
func ValidateName(name string) error {
	if len(name) == 0 || len(name) > 64 || !datasetNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q (use lowercase letters, digits and underscore)", ErrInvalidName, name)
	}
	return nil
}

// NormalizeColumnName lowercases, strips accents, turns whitespace into
// underscores and removes anything outside [a-z0-9_]. "Turbidez (NTU)"
// becomes "turbidez_ntu".
func NormalizeColumnName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		stripped = strings.ToLower(strings.TrimSpace(name))
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range stripped {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || unicode.IsSpace(r) || r == '-' || r == '/' || r == '.':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// CurationReport describes what Curate changed.
type CurationReport struct {
	Renamed     map[string]string `json:"renamed"`
	DroppedRows int               `json:"dropped_rows"`
	Rows        int               `json:"rows"`
	Columns     int               `json:"columns"`
}

// Curate normalises column names (deduplicated with _2, _3 suffixes, empty
// names become col_<n>) and drops rows where every cell is null.
func Curate(f *Frame) (*Frame, CurationReport) {
	report := CurationReport{Renamed: map[string]string{}}

	out := f.selectRows(func(i int) bool {
		for _, c := range f.Columns {
			if !c.Nulls[i] {
				return true
			}
		}
		return false
	})
	report.DroppedRows = f.Rows() - out.Rows()

	used := make(map[string]int, len(out.Columns))
	for j, c := range out.Columns {
		name := NormalizeColumnName(c.Name)
		if name == "" {
			name = fmt.Sprintf("col_%d", j+1)
		}
		base := name
		for used[name] > 0 {
			used[base]++
			name = fmt.Sprintf("%s_%d", base, used[base])
		}
		used[name]++
		if name != c.Name {
			report.Renamed[c.Name] = name
		}
		c.Name = name
	}

	report.Rows = out.Rows()
	report.Columns = len(out.Columns)
	return out, report
}
