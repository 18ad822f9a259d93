package analysis

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/montanaflynn/stats"
)

// DefaultSampleSize is the number of data rows examined by InferSchema when
// the caller does not choose one.
const DefaultSampleSize = 100

// ColumnSchema describes one inferred column.
type ColumnSchema struct {
	Name         string   `json:"name"`
	Type         DataType `json:"type"`
	Nullable     bool     `json:"nullable"`
	UniqueValues int      `json:"uniqueValues"`
	// Numeric stats, set only for number columns.
	Min    *float64 `json:"min,omitempty"`
	Max    *float64 `json:"max,omitempty"`
	Mean   *float64 `json:"mean,omitempty"`
	Median *float64 `json:"median,omitempty"`
}

// MarshalJSON drops non-finite statistics, which JSON cannot represent.
func (c ColumnSchema) MarshalJSON() ([]byte, error) {
	type plain ColumnSchema
	p := plain(c)
	p.Min, p.Max, p.Mean, p.Median = finite(p.Min), finite(p.Max), finite(p.Mean), finite(p.Median)
	return json.Marshal(p)
}

func finite(f *float64) *float64 {
	if f == nil || math.IsInf(*f, 0) || math.IsNaN(*f) {
		return nil
	}
	return f
}

// Schema is the inferred layout of a CSV document.
type Schema struct {
	Columns []ColumnSchema `json:"columns"`
	// RowCount is the number of physical lines after the header, sampled or not.
	RowCount int `json:"rowCount"`
}

type columnAcc struct {
	unique    map[string]struct{}
	values    []float64
	nullCount int
}

// InferSchema derives a column schema from the first sampleSize data rows of
// text. A sampleSize of zero or less selects DefaultSampleSize; it does not
// mean "sample no rows", so callers cannot ask for an all-unknown schema.
func InferSchema(text string, sampleSize int) *Schema {
	if text == "" {
		return &Schema{Columns: []ColumnSchema{}}
	}
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	lines := strings.Split(text, "\n")
	headers := headerNames(lines[0])

	cols := make([]ColumnSchema, len(headers))
	accs := make([]*columnAcc, len(headers))
	for i, h := range headers {
		cols[i] = ColumnSchema{Name: h, Type: TypeUnknown}
		accs[i] = &columnAcc{unique: make(map[string]struct{})}
	}

	n := sampleSize
	if n > len(lines)-1 {
		n = len(lines) - 1
	}
	for _, row := range lines[1 : n+1] {
		if strings.TrimSpace(row) == "" {
			continue
		}
		for j, raw := range SplitRow(row) {
			if j >= len(cols) {
				break
			}
			col, acc := &cols[j], accs[j]
			v := strings.TrimSpace(raw)
			if v == "" {
				acc.nullCount++
				col.Nullable = true
				continue
			}
			acc.unique[v] = struct{}{}
			if f, ok := parseNumber(v); ok {
				acc.values = append(acc.values, f)
			}
			detected := DetectType(v)
			switch {
			case col.Type == TypeUnknown:
				col.Type = detected
			case col.Type != detected:
				// Any conflict settles the column as string for good.
				col.Type = TypeString
			}
		}
	}

	for i := range cols {
		cols[i].UniqueValues = len(accs[i].unique)
		if cols[i].Type == TypeNumber && len(accs[i].values) > 0 {
			setNumericStats(&cols[i], accs[i].values)
		}
	}
	return &Schema{Columns: cols, RowCount: len(lines) - 1}
}

func setNumericStats(c *ColumnSchema, vals []float64) {
	data := stats.Float64Data(vals)
	// Errors only signal empty input, which the caller rules out.
	lo, _ := data.Min()
	hi, _ := data.Max()
	mean, _ := data.Mean()
	med := median(vals)
	c.Min, c.Max, c.Mean, c.Median = &lo, &hi, &mean, &med
}

// median returns the middle value of vals, averaging the two middle values
// for even counts. vals is not modified.
func median(vals []float64) float64 {
	m, err := stats.Median(vals)
	if err != nil {
		return 0
	}
	return m
}

// Column returns the schema of the first column named name.
func (s *Schema) Column(name string) (ColumnSchema, bool) {
	if s == nil {
		return ColumnSchema{}, false
	}
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}
