package analysis

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DataType is the semantic type inferred for a value or column.
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeDate    DataType = "date"
	TypeUnknown DataType = "unknown"
)

var booleanTokens = map[string]struct{}{
	"true": {}, "false": {}, "yes": {}, "no": {}, "0": {}, "1": {},
}

var datePattern = regexp.MustCompile(`^\d{1,4}[-/]\d{1,2}[-/]\d{1,4}$|^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?$`)

// DetectType classifies a single value. Blank input is TypeUnknown.
//
// Note that "0" and "1" are booleans here, while ParseRows turns them into
// numbers. Both behaviors are relied upon.
func DetectType(value string) DataType {
	v := strings.TrimSpace(value)
	if v == "" {
		return TypeUnknown
	}
	if _, ok := booleanTokens[strings.ToLower(v)]; ok {
		return TypeBoolean
	}
	if _, ok := parseNumber(v); ok {
		return TypeNumber
	}
	if datePattern.MatchString(v) {
		return TypeDate
	}
	return TypeString
}

var decimalPattern = regexp.MustCompile(`^[+-]?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?$`)

// parseNumber accepts signed decimals with optional fraction and exponent,
// signed Infinity, and unsigned 0x/0o/0b integers.
func parseNumber(s string) (float64, bool) {
	v := strings.TrimSpace(s)
	if v == "" {
		return 0, false
	}
	switch v {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	if len(v) > 2 && v[0] == '0' {
		base := 0
		switch v[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			u, err := strconv.ParseUint(v[2:], base, 64)
			if err != nil {
				return 0, false
			}
			return float64(u), true
		}
	}
	if !decimalPattern.MatchString(v) {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		// Out-of-range literals saturate to ±Inf or 0.
		if errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// dateLayouts are tried in order when coercing record values.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02",
	"2006-1-2",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01",
	"1-2-2006",
	"2-Jan-2006",
	"Jan-2-2006",
}

func parseDate(s string) (time.Time, bool) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// coerceValue converts one trimmed field into a record value. The order
// differs from DetectType: numbers win over booleans, and only
// hyphenated strings can become dates.
func coerceValue(v string) any {
	if v == "" {
		return nil
	}
	if f, ok := parseNumber(v); ok {
		return f
	}
	switch strings.ToLower(v) {
	case "true", "yes":
		return true
	case "false", "no":
		return false
	}
	if strings.Contains(v, "-") {
		if t, ok := parseDate(v); ok {
			return t
		}
	}
	return v
}
