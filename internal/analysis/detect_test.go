package analysis

import (
	"math"
	"testing"
	"time"
)

func TestDetectType(t *testing.T) {
	cases := map[string]DataType{
		"":                              TypeUnknown,
		"   ":                           TypeUnknown,
		"TRUE":                          TypeBoolean,
		"no":                            TypeBoolean,
		"1":                             TypeBoolean,
		"0":                             TypeBoolean,
		"42":                            TypeNumber,
		" 42 ":                          TypeNumber,
		"-3.25":                         TypeNumber,
		"+1.5e3":                        TypeNumber,
		".5":                            TypeNumber,
		"5.":                            TypeNumber,
		"0x1F":                          TypeNumber,
		"0b101":                         TypeNumber,
		"Infinity":                      TypeNumber,
		"-Infinity":                     TypeNumber,
		"NaN":                           TypeString,
		"inf":                           TypeString,
		"1,000":                         TypeString,
		"1_000":                         TypeString,
		"2023-01-15":                    TypeDate,
		"02/03/2024":                    TypeDate,
		"2023-01-15T10:20:30Z":          TypeDate,
		"2023-01-15T10:20:30.123+02:00": TypeDate,
		"2023-01-15 10:20":              TypeString,
		"hello":                         TypeString,
	}
	for in, want := range cases {
		if got := DetectType(in); got != want {
			t.Errorf("DetectType(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"10", 10, true},
		{"-0.5", -0.5, true},
		{"1e3", 1000, true},
		{"0xff", 255, true},
		{"0o17", 15, true},
		{"-0x10", 0, false},
		{"0x", 0, false},
		{"abc", 0, false},
		{"1e400", math.Inf(1), true},
	}
	for _, c := range cases {
		got, ok := parseNumber(c.in)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("parseNumber(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCoerceValue(t *testing.T) {
	if v := coerceValue(""); v != nil {
		t.Fatalf("blank should be nil, got %#v", v)
	}
	if v, ok := coerceValue("1").(float64); !ok || v != 1 {
		t.Fatalf("\"1\" should be the number 1, got %#v", coerceValue("1"))
	}
	if v, ok := coerceValue("Yes").(bool); !ok || !v {
		t.Fatalf("Yes should be true")
	}
	if v, ok := coerceValue("NO").(bool); !ok || v {
		t.Fatalf("NO should be false")
	}
	d, ok := coerceValue("2023-01-15").(time.Time)
	if !ok {
		t.Fatalf("hyphenated date should be a time.Time, got %#v", coerceValue("2023-01-15"))
	}
	if want := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC); !d.Equal(want) {
		t.Fatalf("date = %v, want %v", d, want)
	}
	// Slash dates never become time values in records.
	if v, ok := coerceValue("01/15/2023").(string); !ok || v != "01/15/2023" {
		t.Fatalf("slash date should stay a string, got %#v", coerceValue("01/15/2023"))
	}
	if v, ok := coerceValue("2023-13-45").(string); !ok || v != "2023-13-45" {
		t.Fatalf("invalid date should stay a string, got %#v", coerceValue("2023-13-45"))
	}
	if v, ok := coerceValue("well-known").(string); !ok || v != "well-known" {
		t.Fatalf("hyphenated text should stay a string")
	}
}
