package analysis

import (
	"fmt"
	"strings"
)

// Markdown renders the schema as a compact prompt-friendly block.
func (s *Schema) Markdown(name string) string {
	var b strings.Builder
	b.WriteString("[DATASET SCHEMA]\n")
	if name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", name))
	}
	if s == nil {
		b.WriteString("Columns: 0\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", s.RowCount))
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(s.Columns)))
	for _, c := range s.Columns {
		b.WriteString(fmt.Sprintf("- %s: %s", safeName(c.Name), c.Type))
		if c.Nullable {
			b.WriteString(", nullable")
		}
		b.WriteString(fmt.Sprintf(", %d unique", c.UniqueValues))
		if c.Type == TypeNumber && c.Min != nil && c.Max != nil && c.Mean != nil && c.Median != nil {
			b.WriteString(fmt.Sprintf("; min %s, max %s, mean %s, median %s",
				FormatNumber(*c.Min), FormatNumber(*c.Max), FormatNumber(*c.Mean), FormatNumber(*c.Median)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Markdown renders the insights as bullet lines.
func (r *InsightReport) Markdown() string {
	var b strings.Builder
	b.WriteString("[INSIGHTS]\n")
	if r == nil || len(r.Insights) == 0 {
		b.WriteString("(none)\n")
		return b.String()
	}
	for _, in := range r.Insights {
		b.WriteString("- ")
		b.WriteString(safeVal(in.Insight))
		b.WriteString("\n")
	}
	return b.String()
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(s, "\n", " ") }
