package analysis

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateInsightsEmpty(t *testing.T) {
	for _, recs := range [][]Record{nil, {}, {NewRecord()}} {
		rep := GenerateInsights(recs)
		if rep.Insights == nil || len(rep.Insights) != 0 {
			t.Fatalf("expected empty insights, got %#v", rep.Insights)
		}
		b, _ := json.Marshal(rep)
		if string(b) != `{"insights":[]}` {
			t.Fatalf("json = %s", b)
		}
	}
}

func TestGenerateInsightsPeople(t *testing.T) {
	rep := GenerateInsights(ParseRows(peopleCSV, 0))
	if len(rep.Insights) != 3 {
		t.Fatalf("insights = %d, want 3", len(rep.Insights))
	}
	want := []string{
		"name has all unique values.",
		"age ranges from 30 to 45 with an average of 37.50.",
		"joined spans from 1/15/2023 to 3/10/2023.",
	}
	for i, w := range want {
		if rep.Insights[i].Insight != w {
			t.Errorf("insight %d = %q, want %q", i, rep.Insights[i].Insight, w)
		}
	}
	st, ok := rep.Insights[1].Stats.(NumberStats)
	if !ok || st.Count != 2 || st.Sum != 75 || st.Avg != 37.5 {
		t.Fatalf("age stats = %#v", rep.Insights[1].Stats)
	}
}

func TestStringInsightTopValues(t *testing.T) {
	rep := GenerateInsights(ParseRows("c\nb\na\nb\na\nc\nd", 0))
	in := rep.Insights[0]
	if in.Insight != "c has 4 unique values out of 6 total." {
		t.Fatalf("text = %q", in.Insight)
	}
	st := in.Stats.(StringStats)
	if len(st.TopValues) != 3 {
		t.Fatalf("top values = %v", st.TopValues)
	}
	// Ties keep first-seen order.
	if st.TopValues[0].Value != "b" || st.TopValues[1].Value != "a" || st.TopValues[2].Value != "c" {
		t.Fatalf("order = %v", st.TopValues)
	}
	if st.TopValues[0].Count != 2 || st.TopValues[2].Count != 1 {
		t.Fatalf("counts = %v", st.TopValues)
	}
}

func TestInsightDispatchUsesFirstValue(t *testing.T) {
	// First value is a number, so only numbers feed the stats.
	rep := GenerateInsights(ParseRows("v\n5\nabc\n7", 0))
	if got := rep.Insights[0].Insight; got != "v ranges from 5 to 7 with an average of 6.00." {
		t.Fatalf("numeric dispatch = %q", got)
	}
	// First value is text, so every value counts.
	rep = GenerateInsights(ParseRows("v\nabc\n5\n5", 0))
	if got := rep.Insights[0].Insight; got != "v has 2 unique values out of 3 total." {
		t.Fatalf("string dispatch = %q", got)
	}
}

func TestInsightSkipsNullColumns(t *testing.T) {
	rep := GenerateInsights(ParseRows("a,b\n,x\n,y", 0))
	if len(rep.Insights) != 1 || rep.Insights[0].Column != "b" {
		t.Fatalf("insights = %#v", rep.Insights)
	}
}

func TestBooleanInsightOptIn(t *testing.T) {
	recs := ParseRows("flag\ntrue\nno\nYES", 0)
	if got := GenerateInsights(recs); len(got.Insights) != 0 {
		t.Fatalf("booleans should be skipped by default: %#v", got.Insights)
	}
	rep := GenerateInsightsWithOptions(recs, InsightOptions{Booleans: true})
	if len(rep.Insights) != 1 {
		t.Fatalf("insights = %d", len(rep.Insights))
	}
	if rep.Insights[0].Type != TypeBoolean || rep.Insights[0].Insight != "flag is true for 2 of 3 values." {
		t.Fatalf("boolean insight = %#v", rep.Insights[0])
	}
	st := rep.Insights[0].Stats.(BooleanStats)
	if st.TrueCount != 2 || st.FalseCount != 1 {
		t.Fatalf("stats = %#v", st)
	}
}

func TestFormatNumber(t *testing.T) {
	cases := map[float64]string{
		30:           "30",
		37.5:         "37.5",
		-2.25:        "-2.25",
		0:            "0",
		123456789012: "123456789012",
		0.000001:     "0.000001",
		1e-7:         "1e-7",
		1.5e-7:       "1.5e-7",
		1e21:         "1e+21",
		2.5e22:       "2.5e+22",
	}
	for in, want := range cases {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestInsightJSON(t *testing.T) {
	rep := GenerateInsights(ParseRows(peopleCSV, 0))
	b, err := json.Marshal(rep)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, frag := range []string{`"column":"age"`, `"type":"number"`, `"topValues":[`, `"minDate":"2023-01-15T00:00:00Z"`} {
		if !strings.Contains(string(b), frag) {
			t.Fatalf("missing %s in %s", frag, b)
		}
	}
}
