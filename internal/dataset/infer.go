// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dataset

import (
	"math"
	"strconv"
	"strings"
)

var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
	"-":    {},
}

func isNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseNumber parses a cell as a float. Comma decimal separators ("7,2")
// and pt-BR thousands grouping ("1.234,5") are accepted.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, false
		}
		return v, true
	}
	comma := strings.LastIndexByte(s, ',')
	if comma < 0 {
		return 0, false
	}
	dot := strings.LastIndexByte(s, '.')
	if dot > comma {
		return 0, false
	}
	normalized := strings.ReplaceAll(s, ".", "")
	normalized = strings.Replace(normalized, ",", ".", 1)
	if strings.Contains(normalized, ",") {
		return 0, false
	}
	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// inferColumn types a raw column: numeric when it has at least one value
// and every non-null cell parses as a number, text otherwise.
func inferColumn(name string, raw []string) *Column {
	nulls := make([]bool, len(raw))
	nums := make([]float64, len(raw))
	seen, failed := 0, false
	for i, s := range raw {
		if isNullToken(s) {
			nulls[i] = true
			nums[i] = math.NaN()
			continue
		}
		v, ok := ParseNumber(s)
		if !ok {
			failed = true
			break
		}
		nums[i] = v
		seen++
	}

	if !failed && seen > 0 {
		return &Column{Name: name, Kind: KindNumeric, Nums: nums, Nulls: nulls}
	}

	texts := make([]string, len(raw))
	for i, s := range raw {
		if isNullToken(s) {
			nulls[i] = true
			continue
		}
		nulls[i] = false
		texts[i] = strings.TrimSpace(s)
	}
	return &Column{Name: name, Kind: KindText, Texts: texts, Nulls: nulls}
}
