package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/KaramelBytes/insighthub-cli/internal/ai"
	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/storage"
)

const salesCSV = "region,revenue,closed\nNorth,1200,yes\nSouth,800,no\nNorth,400,yes\n"

type fakeAnalyzer struct {
	result   *ai.AnalysisResult
	err      error
	question string
	schema   *analysis.Schema
}

func (f *fakeAnalyzer) Analyze(_ context.Context, question, _ string, schema *analysis.Schema) (*ai.AnalysisResult, error) {
	f.question, f.schema = question, schema
	return f.result, f.err
}

func newService(t *testing.T, an Analyzer) (*Service, *storage.LocalStore) {
	t.Helper()
	dir := t.TempDir()
	cat, err := OpenJSONCatalog(dir)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	store, err := storage.NewLocal(filepath.Join(dir, "uploads"), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return NewService(cat, store, an, nil, Options{Provider: "fake", Model: "m"}), store
}

func register(t *testing.T, s *Service, name string) *DataSource {
	t.Helper()
	ds, err := s.Register(context.Background(), Upload{Name: name, FileName: "sales.csv", Data: []byte(salesCSV)})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return ds
}

func TestRegister(t *testing.T) {
	s, store := newService(t, nil)
	ds := register(t, s, "Q1 Sales")
	if ds.Type != TypeCSV || ds.OriginalName != "sales.csv" || ds.Size != int64(len(salesCSV)) {
		t.Fatalf("unexpected data source: %+v", ds)
	}
	if !strings.HasPrefix(ds.FileName, "Q1_Sales_") || !strings.HasSuffix(ds.FileName, ".csv") {
		t.Fatalf("unexpected stored name %q", ds.FileName)
	}
	if ds.Schema == nil || ds.Schema.RowCount != 4 || len(ds.Schema.Columns) != 3 {
		t.Fatalf("unexpected schema: %+v", ds.Schema)
	}
	if got, err := store.Content(context.Background(), ds.FileName); err != nil || got != salesCSV {
		t.Fatalf("stored content = %q, %v", got, err)
	}
}

func TestRegisterDefaultsNameToFileBase(t *testing.T) {
	s, _ := newService(t, nil)
	ds, err := s.Register(context.Background(), Upload{FileName: "dir/orders.CSV", Data: []byte("a\n1")})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if ds.Name != "orders" {
		t.Fatalf("name = %q", ds.Name)
	}
}

func TestRegisterRejects(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()
	if _, err := s.Register(ctx, Upload{FileName: "book.xlsx", Data: []byte("x")}); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if _, err := s.Register(ctx, Upload{FileName: "empty.csv"}); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := s.Register(ctx, Upload{FileName: "upload", ContentType: "text/csv; charset=utf-8", Data: []byte("a\n1")}); err != nil {
		t.Fatalf("text/csv upload rejected: %v", err)
	}
}

func TestResolve(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()
	ds := register(t, s, "Revenue")
	register(t, s, "Headcount")

	if got, err := s.Resolve(ctx, ds.ID); err != nil || got.ID != ds.ID {
		t.Fatalf("resolve by id = %+v, %v", got, err)
	}
	if got, err := s.Resolve(ctx, "revenue"); err != nil || got.ID != ds.ID {
		t.Fatalf("resolve by name = %+v, %v", got, err)
	}
	_, err := s.Resolve(ctx, "revenu")
	if !errors.Is(err, ErrNotFound) || !strings.Contains(err.Error(), `did you mean "Revenue"`) {
		t.Fatalf("expected suggestion, got %v", err)
	}
}

func TestSampleAndInsights(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()
	ds := register(t, s, "sales")

	sample, err := s.Sample(ctx, ds.ID, 2)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if sample.SourceType != "csv" || len(sample.Data) != 2 || sample.Schema == nil || sample.Schema.RowCount != 4 {
		t.Fatalf("unexpected sample: %+v", sample)
	}
	if v, _ := sample.Data[0].Get("revenue"); v != 1200.0 {
		t.Fatalf("revenue = %v", v)
	}

	rep, err := s.Insights(ctx, ds.ID, 0, analysis.InsightOptions{})
	if err != nil {
		t.Fatalf("insights: %v", err)
	}
	if len(rep.Insights) != 2 {
		t.Fatalf("expected region and revenue insights, got %+v", rep.Insights)
	}
	if rep.Insights[1].Insight != "revenue ranges from 400 to 1200 with an average of 800.00." {
		t.Fatalf("unexpected insight %q", rep.Insights[1].Insight)
	}
}

func TestAnalyze(t *testing.T) {
	fa := &fakeAnalyzer{result: &ai.AnalysisResult{Summary: "ok", Insights: []string{"north leads"}, VisualizationSuggestion: "bar chart"}}
	s, _ := newService(t, fa)
	ctx := context.Background()
	ds := register(t, s, "sales")

	a, err := s.Analyze(ctx, ds.ID, "Which region sells most?")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if a.Degraded || a.Result.Summary != "ok" || a.Provider != "fake" || a.Model != "m" {
		t.Fatalf("unexpected analysis: %+v", a)
	}
	if fa.question != "Which region sells most?" || fa.schema == nil || fa.schema.RowCount != 4 {
		t.Fatalf("analyzer got question %q schema %+v", fa.question, fa.schema)
	}
	list, err := s.Analyses(ctx, ds.ID, 0)
	if err != nil || len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("analyses = %+v, %v", list, err)
	}
	if got, err := s.Analysis(ctx, a.ID); err != nil || got.Prompt != a.Prompt {
		t.Fatalf("analysis = %+v, %v", got, err)
	}
}

func TestAnalyzeDegradesOnRuntimeFailure(t *testing.T) {
	s, _ := newService(t, &fakeAnalyzer{err: errors.New("upstream down")})
	ds := register(t, s, "sales")
	a, err := s.Analyze(context.Background(), ds.ID, "summarize")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !a.Degraded || a.Result.VisualizationSuggestion != "table" {
		t.Fatalf("expected degraded result, got %+v", a)
	}
	if len(a.Result.Insights) != 2 || !strings.HasPrefix(a.Result.Insights[0], "region has 2 unique values out of 3 total") {
		t.Fatalf("unexpected degraded insights: %+v", a.Result.Insights)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	s, store := newService(t, &fakeAnalyzer{result: ai.FallbackResult()})
	ctx := context.Background()
	if _, err := s.Analyze(ctx, "missing", "q"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ds := register(t, s, "sales")
	if _, err := s.Analyze(ctx, ds.ID, "  "); !errors.Is(err, ErrEmptyPrompt) {
		t.Fatalf("expected ErrEmptyPrompt, got %v", err)
	}
	if _, err := store.Delete(ctx, ds.FileName); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := s.Analyze(ctx, ds.ID, "q"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected storage.ErrNotFound, got %v", err)
	}

	bad := &DataSource{ID: "x", Name: "db", Type: "postgres"}
	if err := s.catalog.Put(ctx, bad); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Analyze(ctx, "x", "q"); !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	noFile := &DataSource{ID: "y", Name: "nofile", Type: TypeCSV}
	if err := s.catalog.Put(ctx, noFile); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := s.Analyze(ctx, "y", "q"); !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
}

func TestDeleteRemovesFile(t *testing.T) {
	s, store := newService(t, nil)
	ctx := context.Background()
	ds := register(t, s, "sales")
	if err := s.Delete(ctx, ds.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, ds.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Content(ctx, ds.FileName); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestPromptIncludesSchema(t *testing.T) {
	s, _ := newService(t, nil)
	ds := register(t, s, "sales")
	p, err := s.Prompt(context.Background(), ds.ID, "trend?")
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if !strings.Contains(p, "User Question: trend?") || !strings.Contains(p, `"rowCount":4`) {
		t.Fatalf("unexpected prompt:\n%s", p)
	}
}

func TestRegisterCatalogFailureLeavesNothingBehind(t *testing.T) {
	s, store := newService(t, nil)
	ctx := context.Background()
	unblock := blockCatalogFile(t, filepath.Dir(s.catalog.(*JSONCatalog).path))
	defer unblock()

	if _, err := s.Register(ctx, Upload{Name: "sales", FileName: "sales.csv", Data: []byte(salesCSV)}); err == nil {
		t.Fatalf("expected register to fail")
	}
	if list, err := s.List(ctx); err != nil || len(list) != 0 {
		t.Fatalf("catalog lists a source after failed register: %+v, %v", list, err)
	}
	entries, err := os.ReadDir(store.Dir())
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("stored file left behind: %v", entries)
	}
}

func TestFeedback(t *testing.T) {
	s, _ := newService(t, &fakeAnalyzer{result: &ai.AnalysisResult{Summary: "ok"}})
	ctx := context.Background()
	ds := register(t, s, "sales")
	a, err := s.Analyze(ctx, ds.ID, "trend?")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := s.Feedback(ctx, a.ID, " "); !errors.Is(err, ErrEmptyFeedback) {
		t.Fatalf("expected ErrEmptyFeedback, got %v", err)
	}
	if _, err := s.Feedback(ctx, "missing", "good"); !errors.Is(err, ErrAnalysisNotFound) {
		t.Fatalf("expected ErrAnalysisNotFound, got %v", err)
	}
	got, err := s.Feedback(ctx, a.ID, "useful")
	if err != nil || got.Feedback != "useful" || got.Result.Summary != "ok" {
		t.Fatalf("feedback = %+v, %v", got, err)
	}
	if stored, _ := s.Analysis(ctx, a.ID); stored.Feedback != "useful" {
		t.Fatalf("feedback not stored: %+v", stored)
	}
}

func TestCreateReport(t *testing.T) {
	s, _ := newService(t, nil)
	ctx := context.Background()
	if _, err := s.CreateReport(ctx, ReportInput{Name: "  "}); !errors.Is(err, ErrReportName) {
		t.Fatalf("expected ErrReportName, got %v", err)
	}
	if _, err := s.CreateReport(ctx, ReportInput{Name: "bad", Content: json.RawMessage(`{oops`)}); !errors.Is(err, ErrInvalidContent) {
		t.Fatalf("expected ErrInvalidContent, got %v", err)
	}

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Minute) }

	first, err := s.CreateReport(ctx, ReportInput{Name: "weekly"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if string(first.Content) != "{}" || first.IsPublic || first.ID == "" {
		t.Fatalf("unexpected defaults: %+v", first)
	}
	second, err := s.CreateReport(ctx, ReportInput{Name: "monthly", Description: "kpis", Content: json.RawMessage(`{"a":1}`), IsPublic: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := s.Reports(ctx)
	if err != nil || len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("reports = %+v, %v", list, err)
	}
}
