package analysis

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// topValuesLimit is how many frequent values a string insight reports.
const topValuesLimit = 3

// Insight is a natural-language statistic about one column.
type Insight struct {
	Column  string   `json:"column"`
	Type    DataType `json:"type"`
	Stats   any      `json:"stats"`
	Insight string   `json:"insight"`
}

// NumberStats summarizes a numeric column.
type NumberStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Sum   float64 `json:"sum"`
}

// StringStats summarizes a text column.
type StringStats struct {
	Count     int          `json:"count"`
	Unique    int          `json:"unique"`
	TopValues []ValueCount `json:"topValues"`
}

// ValueCount is one frequent value and how often it occurred.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// DateStats summarizes a date column.
type DateStats struct {
	Count   int       `json:"count"`
	MinDate time.Time `json:"minDate"`
	MaxDate time.Time `json:"maxDate"`
}

// BooleanStats summarizes a boolean column.
type BooleanStats struct {
	Count      int `json:"count"`
	TrueCount  int `json:"trueCount"`
	FalseCount int `json:"falseCount"`
}

// InsightReport is the result of GenerateInsights.
type InsightReport struct {
	Insights []Insight `json:"insights"`
}

// InsightOptions controls optional insight kinds.
type InsightOptions struct {
	// Booleans emits a true/false count insight for boolean columns, which
	// are skipped otherwise.
	Booleans bool
}

// GenerateInsights derives per-column insights from typed records. Columns
// are taken from the first record and each is classified by the runtime
// type of its first non-nil value. Boolean columns produce no insight.
func GenerateInsights(records []Record) *InsightReport {
	return GenerateInsightsWithOptions(records, InsightOptions{})
}

// GenerateInsightsWithOptions is GenerateInsights with optional insight kinds.
func GenerateInsightsWithOptions(records []Record, opt InsightOptions) *InsightReport {
	rep := &InsightReport{Insights: []Insight{}}
	if len(records) == 0 {
		return rep
	}
	for _, col := range records[0].Keys() {
		var values []any
		for _, r := range records {
			if v, ok := r.Get(col); ok && v != nil {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			continue
		}
		var (
			ins Insight
			ok  bool
		)
		switch values[0].(type) {
		case float64:
			ins, ok = numberInsight(col, values), true
		case string:
			ins, ok = stringInsight(col, values), true
		case time.Time:
			ins, ok = dateInsight(col, values), true
		case bool:
			if opt.Booleans {
				ins, ok = booleanInsight(col, values), true
			}
		}
		if ok {
			rep.Insights = append(rep.Insights, ins)
		}
	}
	return rep
}

func numberInsight(col string, values []any) Insight {
	st := NumberStats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		f, ok := v.(float64)
		if !ok {
			continue
		}
		st.Count++
		st.Sum += f
		if f < st.Min {
			st.Min = f
		}
		if f > st.Max {
			st.Max = f
		}
	}
	st.Avg = st.Sum / float64(st.Count)
	return Insight{
		Column: col,
		Type:   TypeNumber,
		Stats:  st,
		Insight: fmt.Sprintf("%s ranges from %s to %s with an average of %.2f.",
			col, FormatNumber(st.Min), FormatNumber(st.Max), st.Avg),
	}
}

func stringInsight(col string, values []any) Insight {
	distinct := make(map[any]struct{}, len(values))
	counts := map[string]int{}
	var order []string
	for _, v := range values {
		distinct[v] = struct{}{}
		k := formatValue(v)
		if _, seen := counts[k]; !seen {
			order = append(order, k)
		}
		counts[k]++
	}
	tops := make([]ValueCount, len(order))
	for i, k := range order {
		tops[i] = ValueCount{Value: k, Count: counts[k]}
	}
	sort.SliceStable(tops, func(i, j int) bool { return tops[i].Count > tops[j].Count })
	if len(tops) > topValuesLimit {
		tops = tops[:topValuesLimit]
	}
	st := StringStats{Count: len(values), Unique: len(distinct), TopValues: tops}
	text := fmt.Sprintf("%s has %d unique values out of %d total.", col, st.Unique, st.Count)
	if st.Unique == st.Count {
		text = fmt.Sprintf("%s has all unique values.", col)
	}
	return Insight{Column: col, Type: TypeString, Stats: st, Insight: text}
}

func dateInsight(col string, values []any) Insight {
	var st DateStats
	for _, v := range values {
		t, ok := v.(time.Time)
		if !ok {
			continue
		}
		if st.Count == 0 || t.Before(st.MinDate) {
			st.MinDate = t
		}
		if st.Count == 0 || t.After(st.MaxDate) {
			st.MaxDate = t
		}
		st.Count++
	}
	return Insight{
		Column:  col,
		Type:    TypeDate,
		Stats:   st,
		Insight: fmt.Sprintf("%s spans from %s to %s.", col, formatDate(st.MinDate), formatDate(st.MaxDate)),
	}
}

func booleanInsight(col string, values []any) Insight {
	var st BooleanStats
	for _, v := range values {
		b, ok := v.(bool)
		if !ok {
			continue
		}
		st.Count++
		if b {
			st.TrueCount++
		} else {
			st.FalseCount++
		}
	}
	return Insight{
		Column:  col,
		Type:    TypeBoolean,
		Stats:   st,
		Insight: fmt.Sprintf("%s is true for %d of %d values.", col, st.TrueCount, st.Count),
	}
}

// FormatNumber renders f in the shortest form that round-trips: fixed
// notation between 1e-6 and 1e21, exponent notation outside.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	abs := math.Abs(f)
	if abs >= 1e21 || abs < 1e-6 {
		s := strconv.FormatFloat(f, 'e', -1, 64)
		mant, exp, _ := strings.Cut(s, "e")
		sign := exp[:1]
		digits := strings.TrimLeft(exp[1:], "0")
		return mant + "e" + sign + digits
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return FormatNumber(t)
	case bool:
		return strconv.FormatBool(t)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

func formatDate(t time.Time) string { return t.UTC().Format("1/2/2006") }
