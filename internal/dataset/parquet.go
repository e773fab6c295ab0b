// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/ManuGH/dmaic/internal/fsutil"
)

// columnsMetaKey stores column order and kinds; Parquet groups are keyed by
// name so the schema alone does not preserve the original order.
const columnsMetaKey = "dmaic.columns"

type columnMeta struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

func schemaFor(f *Frame) *parquet.Schema {
	group := parquet.Group{}
	for _, c := range f.Columns {
		if c.Kind == KindNumeric {
			group[c.Name] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
		} else {
			group[c.Name] = parquet.Optional(parquet.String())
		}
	}
	return parquet.NewSchema("dataset", group)
}

func leafIndexes(schema *parquet.Schema) map[string]int {
	idx := make(map[string]int)
	for i, path := range schema.Columns() {
		if len(path) > 0 {
			idx[path[0]] = i
		}
	}
	return idx
}

// WriteParquet atomically writes f to path with optional DOUBLE and UTF8 columns.
func WriteParquet(path string, f *Frame) error {
	fill, err := parquetEncoder(f)
	if err != nil {
		return err
	}
	return fsutil.WriteAtomic(path, 0o640, fill)
}

// parquetEncoder validates the column names of f and returns a function
// streaming f as Parquet.
func parquetEncoder(f *Frame) (func(io.Writer) error, error) {
	seen := make(map[string]struct{}, len(f.Columns))
	meta := make([]columnMeta, len(f.Columns))
	for i, c := range f.Columns {
		if _, dup := seen[c.Name]; dup || c.Name == "" {
			return nil, fmt.Errorf("write parquet: column name %q empty or duplicated", c.Name)
		}
		seen[c.Name] = struct{}{}
		meta[i] = columnMeta{Name: c.Name, Kind: c.Kind}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, err
	}

	schema := schemaFor(f)
	leaves := leafIndexes(schema)

	return func(out io.Writer) error {
		w := parquet.NewWriter(out, schema, parquet.KeyValueMetadata(columnsMetaKey, string(metaJSON)))

		const batch = 1024
		rows := make([]parquet.Row, 0, batch)
		flush := func() error {
			if len(rows) == 0 {
				return nil
			}
			if _, err := w.WriteRows(rows); err != nil {
				return fmt.Errorf("write parquet rows: %w", err)
			}
			rows = rows[:0]
			return nil
		}

		for i := 0; i < f.Rows(); i++ {
			row := make(parquet.Row, len(leaves))
			for _, c := range f.Columns {
				col := leaves[c.Name]
				switch {
				case c.Nulls[i]:
					row[col] = parquet.NullValue().Level(0, 0, col)
				case c.Kind == KindNumeric:
					row[col] = parquet.DoubleValue(c.Nums[i]).Level(0, 1, col)
				default:
					row[col] = parquet.ByteArrayValue([]byte(c.Texts[i])).Level(0, 1, col)
				}
			}
			rows = append(rows, row)
			if len(rows) == batch {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		if err := flush(); err != nil {
			return err
		}
		return w.Close()
	}, nil
}

// ReadParquet loads a file written by WriteParquet. Files without the
// column metadata are read in schema order with kinds taken from the leaf types.
func ReadParquet(path string) (*Frame, error) {
	file, err := os.Open(path) // #nosec G304 -- curated paths come from the catalog
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	schema := pf.Schema()
	leaves := leafIndexes(schema)

	var meta []columnMeta
	if raw, ok := pf.Lookup(columnsMetaKey); ok {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return nil, fmt.Errorf("decode column metadata: %w", err)
		}
	} else {
		for _, p := range schema.Columns() {
			kind := KindText
			if leaf, ok := schema.Lookup(p...); ok && leaf.Node.Type().Kind() == parquet.Double {
				kind = KindNumeric
			}
			meta = append(meta, columnMeta{Name: p[0], Kind: kind})
		}
	}

	frame := &Frame{Columns: make([]*Column, len(meta))}
	byLeaf := make(map[int]*Column, len(meta))
	for i, m := range meta {
		col, ok := leaves[m.Name]
		if !ok {
			return nil, fmt.Errorf("parquet metadata names unknown column %q", m.Name)
		}
		c := &Column{Name: m.Name, Kind: m.Kind}
		frame.Columns[i] = c
		byLeaf[col] = c
	}

	r := parquet.NewReader(file)
	defer r.Close()

	buf := make([]parquet.Row, 256)
	for {
		n, err := r.ReadRows(buf)
		for _, row := range buf[:n] {
			for _, v := range row {
				c, ok := byLeaf[v.Column()]
				if !ok {
					continue
				}
				appendValue(c, v)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return frame, nil
}

func appendValue(c *Column, v parquet.Value) {
	if v.IsNull() {
		c.appendNull()
		return
	}
	c.Nulls = append(c.Nulls, false)
	if c.Kind == KindNumeric {
		c.Nums = append(c.Nums, v.Double())
		return
	}
	c.Texts = append(c.Texts, string(v.ByteArray()))
}
