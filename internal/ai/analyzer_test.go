package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
)

type fakeRuntime struct {
	reply string
	err   error
	got   GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &GenerateResponse{Choices: []Choice{{Message: Message{Role: "assistant", Content: f.reply}}}}, nil
}

type fakeStreamRuntime struct {
	fakeRuntime
	chunks []string
}

func (f *fakeStreamRuntime) GenerateStream(_ context.Context, req GenerateRequest, onDelta func(string)) error {
	f.got = req
	for _, c := range f.chunks {
		onDelta(c)
	}
	return nil
}

func TestBuildAnalysisPrompt(t *testing.T) {
	schema := analysis.InferSchema("a,b\n1,x", 0)
	data := strings.Repeat("é", MaxPromptDataChars+50)
	prompt, err := BuildAnalysisPrompt("What sells best?", schema, data)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(prompt, "User Question: What sells best?") {
		t.Fatalf("missing question")
	}
	if !strings.Contains(prompt, `Data Schema: {"columns":[{"name":"a"`) {
		t.Fatalf("missing schema json:\n%s", prompt)
	}
	if strings.Count(prompt, "é") != MaxPromptDataChars {
		t.Fatalf("data should be truncated to %d characters, got %d", MaxPromptDataChars, strings.Count(prompt, "é"))
	}
	if !strings.Contains(prompt, `"visualizationSuggestion": "bar chart"`) {
		t.Fatalf("missing response format")
	}

	noSchema, _ := BuildAnalysisPrompt("q", nil, "x")
	if !strings.Contains(noSchema, "Data Schema: {}") {
		t.Fatalf("nil schema should render as {}")
	}
}

func TestParseAnalysisResponse(t *testing.T) {
	got, err := ParseAnalysisResponse("Sure!\n```json\n{\"summary\":\"Sales grew.\",\"insights\":[\"A\",\"B\"],\"visualizationSuggestion\":\"line chart\"}\n```")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got.Summary != "Sales grew." || len(got.Insights) != 2 || got.VisualizationSuggestion != "line chart" {
		t.Fatalf("unexpected result: %+v", got)
	}

	fb, err := ParseAnalysisResponse("I could not do it.")
	if err != nil {
		t.Fatalf("no-json reply should not error: %v", err)
	}
	if fb.Summary != FallbackResult().Summary || fb.VisualizationSuggestion != "table" || len(fb.Insights) != 1 {
		t.Fatalf("unexpected fallback: %+v", fb)
	}

	if _, err := ParseAnalysisResponse("{not json}"); err == nil {
		t.Fatalf("expected error for invalid json")
	}

	empty, err := ParseAnalysisResponse(`{"summary":"s"}`)
	if err != nil || empty.Insights == nil {
		t.Fatalf("insights should default to empty slice: %+v, %v", empty, err)
	}
}

func TestAnalyzerAnalyze(t *testing.T) {
	rt := &fakeRuntime{reply: `{"summary":"ok","insights":["i"],"visualizationSuggestion":"pie chart"}`}
	a := &Analyzer{Runtime: rt, Model: "m", MaxTokens: 256, Temperature: 0.2}
	res, err := a.Analyze(context.Background(), "q", "a\n1", nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.VisualizationSuggestion != "pie chart" {
		t.Fatalf("result = %+v", res)
	}
	if rt.got.Model != "m" || rt.got.MaxTokens != 256 || len(rt.got.Messages) != 1 || rt.got.Messages[0].Role != "user" {
		t.Fatalf("unexpected request: %+v", rt.got)
	}

	failing := &Analyzer{Runtime: &fakeRuntime{err: errors.New("down")}}
	if _, err := failing.Analyze(context.Background(), "q", "x", nil); err == nil {
		t.Fatalf("runtime errors should propagate")
	}
	if _, err := (&Analyzer{}).Analyze(context.Background(), "q", "x", nil); err == nil {
		t.Fatalf("missing runtime should error")
	}
}

func TestAnalyzerStreams(t *testing.T) {
	rt := &fakeStreamRuntime{chunks: []string{`{"summary":"str`, `eamed","insights":[]}`}}
	var seen strings.Builder
	a := &Analyzer{Runtime: rt, OnDelta: func(d string) { seen.WriteString(d) }}
	res, err := a.Analyze(context.Background(), "q", "x", nil)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Summary != "streamed" || seen.Len() == 0 {
		t.Fatalf("stream result = %+v, seen %q", res, seen.String())
	}
}

func TestRuntimeRegistry(t *testing.T) {
	for _, p := range []string{ProviderOpenRouter, ProviderOllama, ProviderGemini, "GOOGLE"} {
		if _, ok := GetRuntime(p, RuntimeConfig{}); !ok {
			t.Fatalf("provider %s not registered", p)
		}
	}
	if _, ok := GetRuntime("nope", RuntimeConfig{}); ok {
		t.Fatalf("unexpected provider")
	}
	if DefaultModel(ProviderGemini) != DefaultGeminiModel {
		t.Fatalf("default gemini model = %q", DefaultModel(ProviderGemini))
	}
	if mi, ok := LookupModel("llama3:latest"); !ok || mi.ContextTokens != 8192 {
		t.Fatalf("lookup = %+v, %v", mi, ok)
	}
}

func TestModelsByProvider(t *testing.T) {
	all := Models("")
	if len(all) != len(models) {
		t.Fatalf("Models(\"\") = %d entries, want %d", len(all), len(models))
	}
	ollama := Models(ProviderOllama)
	if len(ollama) != 3 || ollama[0].Name != "llama3.1:8b-instruct" {
		t.Fatalf("Models(ollama) = %+v", ollama)
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Provider > all[i].Provider {
			t.Fatalf("models not sorted by provider: %+v", all)
		}
	}
}
