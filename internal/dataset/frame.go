// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package dataset holds the tabular model used between ingestion and
// analysis: loading CSV/XLSX files, curating column names, profiling data
// quality and persisting curated versions as Parquet.
package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

var (
	// ErrUnsupportedFormat is returned for files that cannot be parsed as a table.
	ErrUnsupportedFormat = errors.New("unsupported table format")
	// ErrNoHeader is returned when a file has no header row.
	ErrNoHeader = errors.New("table has no header row")
	// ErrInvalidName is returned for dataset names outside [a-z0-9_].
	ErrInvalidName = errors.New("invalid dataset name")
	// ErrColumnNotFound is returned by Frame lookups.
	ErrColumnNotFound = errors.New("column not found")
)

// Column is a single typed column. Nulls[i] marks a missing cell; for
// numeric columns the matching Nums entry is NaN.
type Column struct {
	Name  string
	Kind  Kind
	Nums  []float64
	Texts []string
	Nulls []bool
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Nulls) }

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool { return c.Nulls[i] }

// Missing counts null cells.
func (c *Column) Missing() int {
	n := 0
	for _, null := range c.Nulls {
		if null {
			n++
		}
	}
	return n
}

// Floats returns the non-null values of a numeric column.
func (c *Column) Floats() []float64 {
	if c.Kind != KindNumeric {
		return nil
	}
	out := make([]float64, 0, len(c.Nums))
	for i, v := range c.Nums {
		if !c.Nulls[i] {
			out = append(out, v)
		}
	}
	return out
}

// Cell renders cell i as text; nulls render as "".
func (c *Column) Cell(i int) string {
	if c.Nulls[i] {
		return ""
	}
	if c.Kind == KindNumeric {
		return strconv.FormatFloat(c.Nums[i], 'g', -1, 64)
	}
	return c.Texts[i]
}

// Value returns cell i as float64, string or nil.
func (c *Column) Value(i int) any {
	if c.Nulls[i] {
		return nil
	}
	if c.Kind == KindNumeric {
		return c.Nums[i]
	}
	return c.Texts[i]
}

func (c *Column) appendNull() {
	c.Nulls = append(c.Nulls, true)
	if c.Kind == KindNumeric {
		c.Nums = append(c.Nums, math.NaN())
	} else {
		c.Texts = append(c.Texts, "")
	}
}

func (c *Column) appendFrom(src *Column, i int) {
	if src.Nulls[i] {
		c.appendNull()
		return
	}
	c.Nulls = append(c.Nulls, false)
	if c.Kind == KindNumeric {
		c.Nums = append(c.Nums, src.Nums[i])
	} else {
		c.Texts = append(c.Texts, src.Texts[i])
	}
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	Columns []*Column
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// Column looks a column up by name.
func (f *Frame) Column(name string) (*Column, error) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// Names lists the column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// NumericColumns lists numeric column names in order.
func (f *Frame) NumericColumns() []string {
	var out []string
	for _, c := range f.Columns {
		if c.Kind == KindNumeric {
			out = append(out, c.Name)
		}
	}
	return out
}

// Records returns up to limit rows starting at offset as name->value maps.
func (f *Frame) Records(offset, limit int) []map[string]any {
	rows := f.Rows()
	if offset < 0 {
		offset = 0
	}
	if offset >= rows {
		return []map[string]any{}
	}
	end := rows
	if limit > 0 && offset+limit < rows {
		end = offset + limit
	}
	out := make([]map[string]any, 0, end-offset)
	for i := offset; i < end; i++ {
		rec := make(map[string]any, len(f.Columns))
		for _, c := range f.Columns {
			rec[c.Name] = c.Value(i)
		}
		out = append(out, rec)
	}
	return out
}

// selectRows builds a new frame with the rows for which keep returns true.
func (f *Frame) selectRows(keep func(i int) bool) *Frame {
	out := &Frame{Columns: make([]*Column, len(f.Columns))}
	for j, c := range f.Columns {
		out.Columns[j] = &Column{Name: c.Name, Kind: c.Kind}
	}
	for i := 0; i < f.Rows(); i++ {
		if !keep(i) {
			continue
		}
		for j, c := range f.Columns {
			out.Columns[j].appendFrom(c, i)
		}
	}
	return out
}

// NewFrame builds a frame from a header and raw string records, inferring
// column kinds. Short rows are padded with nulls.
func NewFrame(header []string, records [][]string) *Frame {
	f := &Frame{Columns: make([]*Column, len(header))}
	for j, name := range header {
		raw := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				raw[i] = rec[j]
			}
		}
		f.Columns[j] = inferColumn(name, raw)
	}
	return f
}

// NumericColumn builds a numeric column from values; NaN marks null.
func NumericColumn(name string, values []float64) *Column {
	c := &Column{Name: name, Kind: KindNumeric, Nums: append([]float64(nil), values...), Nulls: make([]bool, len(values))}
	for i, v := range values {
		c.Nulls[i] = math.IsNaN(v)
	}
	return c
}

// TextColumn builds a text column; empty strings are null.
func TextColumn(name string, values []string) *Column {
	c := &Column{Name: name, Kind: KindText, Texts: append([]string(nil), values...), Nulls: make([]bool, len(values))}
	for i, v := range values {
		c.Nulls[i] = v == ""
	}
	return c
}
