package analysis

import "strings"

// SplitRow splits one line of comma-delimited text into field values.
//
// A double quote outside a quoted section opens one and is dropped; inside a
// quoted section, a doubled quote yields a literal quote and a single quote
// closes the section. Commas inside quotes are literal. Each line is handled
// independently, so quoted values cannot span lines.
func SplitRow(line string) []string {
	var (
		out      []string
		cur      strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case ch == '"' && !inQuotes:
			inQuotes = true
		case ch == '"':
			if i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			inQuotes = false
		case ch == ',' && !inQuotes:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(ch)
		}
	}
	return append(out, cur.String())
}

// headerNames tokenizes a header line into trimmed column names with one
// surrounding quote stripped from each side.
func headerNames(line string) []string {
	fields := SplitRow(line)
	names := make([]string, len(fields))
	for i, f := range fields {
		n := strings.TrimSpace(f)
		n = strings.TrimPrefix(n, `"`)
		n = strings.TrimSuffix(n, `"`)
		names[i] = n
	}
	return names
}
