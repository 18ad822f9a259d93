package analysis

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestParseRowsTypes(t *testing.T) {
	recs := ParseRows(peopleCSV, 0)
	if len(recs) != 3 {
		t.Fatalf("records = %d, want 3", len(recs))
	}
	if got := recs[0].Keys(); !reflect.DeepEqual(got, []string{"name", "age", "joined"}) {
		t.Fatalf("keys = %v", got)
	}
	if v, _ := recs[0].Get("name"); v != "Alice" {
		t.Fatalf("name = %#v", v)
	}
	if v, _ := recs[0].Get("age"); v != 30.0 {
		t.Fatalf("age = %#v", v)
	}
	if v, ok := recs[1].Get("age"); !ok || v != nil {
		t.Fatalf("blank age should be present and nil, got %#v, %v", v, ok)
	}
	j, ok := recs[2].Get("joined")
	if d, isTime := j.(time.Time); !ok || !isTime || !d.Equal(time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("joined = %#v", j)
	}
}

func TestParseRowsNumbersNotBooleans(t *testing.T) {
	recs := ParseRows("v\n1\n2\n3", 0)
	for i, want := range []float64{1, 2, 3} {
		if v, _ := recs[i].Get("v"); v != want {
			t.Fatalf("row %d = %#v, want %v", i, v, want)
		}
	}
	if DetectType("1") != TypeBoolean {
		t.Fatalf("detector should still call 1 a boolean")
	}
}

func TestParseRowsEmptyAndLimit(t *testing.T) {
	if got := ParseRows("", 0); got == nil || len(got) != 0 {
		t.Fatalf("empty doc = %#v", got)
	}
	if got := ParseRows("a,b\n\n  \n", 0); len(got) != 0 {
		t.Fatalf("header-only doc = %d records", len(got))
	}
	got := ParseRows("a\n\n1\n\n2\n3\n", 2)
	if len(got) != 2 {
		t.Fatalf("limit 2 gave %d records", len(got))
	}
	if v, _ := got[1].Get("a"); v != 2.0 {
		t.Fatalf("blank lines should be dropped before limiting, got %#v", v)
	}
}

func TestParseRowsRaggedAndDuplicateHeaders(t *testing.T) {
	recs := ParseRows("a,b,c\n1\n1,2,3,4", 0)
	if recs[0].Len() != 1 {
		t.Fatalf("short row keys = %v", recs[0].Keys())
	}
	if _, ok := recs[0].Get("b"); ok {
		t.Fatalf("missing trailing field must stay unset")
	}
	if recs[1].Len() != 3 {
		t.Fatalf("long row keys = %v", recs[1].Keys())
	}

	dup := ParseRows("a,a\n1,2", 0)
	if dup[0].Len() != 1 {
		t.Fatalf("duplicate header keys = %v", dup[0].Keys())
	}
	if v, _ := dup[0].Get("a"); v != 2.0 {
		t.Fatalf("last value should win, got %#v", v)
	}
}

func TestRecordJSONKeepsOrder(t *testing.T) {
	recs := ParseRows("b,a,c,d\n1,x,,2023-01-15\nInfinity,y,true,z", 0)
	b, err := json.Marshal(recs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `[{"b":1,"a":"x","c":null,"d":"2023-01-15T00:00:00Z"},{"b":null,"a":"y","c":true,"d":"z"}]`
	if string(b) != want {
		t.Fatalf("json = %s\nwant %s", b, want)
	}
}
