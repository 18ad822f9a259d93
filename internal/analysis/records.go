package analysis

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Record is one parsed CSV row. Values are string, float64, bool, time.Time
// or nil, and keys keep header order.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord returns an empty record.
func NewRecord() Record {
	return Record{values: map[string]any{}}
}

// Set assigns key. A new key is appended to the key order; an existing key
// keeps its position.
func (r *Record) Set(key string, v any) {
	if r.values == nil {
		r.values = map[string]any{}
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// Get returns the value for key and whether the key is present.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns the record keys in insertion order.
func (r Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len reports the number of keys.
func (r Record) Len() int { return len(r.keys) }

// MarshalJSON encodes the record as an object in key order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		v := r.values[k]
		if f, ok := v.(float64); ok && (math.IsInf(f, 0) || math.IsNaN(f)) {
			// JSON has no infinities; encode them as null.
			v = nil
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// ParseRows converts the data rows of text into typed records. Blank lines are
// dropped first; limit > 0 bounds the number of rows converted.
//
// Fields missing at the end of a row are left unset, and fields beyond the
// header are ignored.
func ParseRows(text string, limit int) []Record {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) <= 1 {
		return []Record{}
	}
	headers := headerNames(lines[0])

	n := len(lines) - 1
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, 0, n)
	for _, line := range lines[1 : n+1] {
		values := SplitRow(line)
		rec := NewRecord()
		for i, h := range headers {
			if i >= len(values) {
				break
			}
			rec.Set(h, coerceValue(strings.TrimSpace(values[i])))
		}
		out = append(out, rec)
	}
	return out
}
