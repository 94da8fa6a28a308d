package contact

import (
	"bytes"
	"encoding/json"
	"strings"
)

type Cell struct {
	Header string
	Value  string
}

// Record is one contact row, cells kept in the store's header order.
type Record struct {
	Row   int
	Cells []Cell
}

// NewRecord zips a header row with one data row. Short rows are padded with empty values and
// cells beyond the header row are dropped.
func NewRecord(row int, headers, values []string) Record {
	r := Record{Row: row, Cells: make([]Cell, len(headers))}
	for i, h := range headers {
		var v string
		if i < len(values) {
			v = values[i]
		}
		r.Cells[i] = Cell{Header: h, Value: v}
	}
	return r
}

func (r Record) Get(header string) string {
	for _, c := range r.Cells {
		if c.Header == header {
			return c.Value
		}
	}
	return ""
}

func (r Record) Has(header string) bool {
	for _, c := range r.Cells {
		if c.Header == header {
			return true
		}
	}
	return false
}

func (r Record) Name(s Schema) string {
	return r.Get(s.Header(FieldName))
}

// Blank reports whether every cell is empty after trimming.
func (r Record) Blank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c.Value) != "" {
			return false
		}
	}
	return true
}

func (r Record) clone() Record {
	out := Record{Row: r.Row, Cells: make([]Cell, len(r.Cells))}
	copy(out.Cells, r.Cells)
	return out
}

// MarshalJSON writes the record as an object whose keys keep the header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	var out bytes.Buffer
	out.WriteByte('{')
	for i, c := range r.Cells {
		if i > 0 {
			out.WriteByte(',')
		}
		buf.Reset()
		if err := enc.Encode(c.Header); err != nil {
			return nil, err
		}
		out.Write(bytes.TrimSpace(buf.Bytes()))
		out.WriteByte(':')
		buf.Reset()
		if err := enc.Encode(c.Value); err != nil {
			return nil, err
		}
		out.Write(bytes.TrimSpace(buf.Bytes()))
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

// presentation ------------------------------------------------------------------------------------

// Present returns a copy of r in which empty phone and email cells read as placeholder. The
// copy is for display only and must never be written back.
func Present(r Record, s Schema, placeholder string) Record {
	out := r.clone()
	for i, c := range out.Cells {
		if c.Header != s.Header(FieldPhone) && c.Header != s.Header(FieldEmail) {
			continue
		}
		if strings.TrimSpace(c.Value) == "" {
			out.Cells[i].Value = placeholder
		}
	}
	return out
}

// IsPlaceholder reports whether value is the display placeholder rather than real data.
func IsPlaceholder(value, placeholder string) bool {
	return placeholder != "" && Equal(value, placeholder)
}
