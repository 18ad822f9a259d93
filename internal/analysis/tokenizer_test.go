package analysis

import (
	"reflect"
	"strings"
	"testing"
)

func TestSplitRow(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"quoted delimiter and escaped quote", `a,"b,c","d""e"`, []string{"a", "b,c", `d"e`}},
		{"empty line", "", []string{""}},
		{"trailing delimiter", "a,", []string{"a", ""}},
		{"only delimiters", ",,", []string{"", "", ""}},
		{"unmatched quote runs to end", `a,"b,c`, []string{"a", "b,c"}},
		{"quote mid-field", `ab"c,d"e,f`, []string{"abc,de", "f"}},
		{"keeps spaces", " a , b ", []string{" a ", " b "}},
		{"utf8 passthrough", "héllo,wörld", []string{"héllo", "wörld"}},
	}
	for _, c := range cases {
		if got := SplitRow(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("%s: SplitRow(%q) = %q, want %q", c.name, c.in, got, c.want)
		}
	}
}

func TestSplitRowRoundTrip(t *testing.T) {
	rows := [][]string{
		{"alpha", "beta", "gamma"},
		{"", "x", ""},
		{"1", "2.5", "2023-01-01", "yes"},
	}
	for _, values := range rows {
		got := SplitRow(strings.Join(values, ","))
		if !reflect.DeepEqual(got, values) {
			t.Fatalf("round trip mismatch: got %q want %q", got, values)
		}
	}
}

func TestHeaderNames(t *testing.T) {
	got := headerNames(` name , "age",joined `)
	want := []string{"name", "age", "joined"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("headerNames = %q, want %q", got, want)
	}
}
