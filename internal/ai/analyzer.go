package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/KaramelBytes/insighthub-cli/internal/analysis"
	"github.com/KaramelBytes/insighthub-cli/internal/utils"
)

// MaxPromptDataChars bounds how much raw data text goes into a prompt.
const MaxPromptDataChars = 5000

// AnalysisResult is the structured answer expected from the model.
type AnalysisResult struct {
	Summary                 string   `json:"summary"`
	Insights                []string `json:"insights"`
	VisualizationSuggestion string   `json:"visualizationSuggestion"`
}

// FallbackResult is returned when a model reply holds no JSON object.
func FallbackResult() *AnalysisResult {
	return &AnalysisResult{
		Summary:                 "Analysis completed but structured response could not be generated.",
		Insights:                []string{"The data was processed but no structured insights could be extracted."},
		VisualizationSuggestion: "table",
	}
}

// BuildAnalysisPrompt assembles the business-intelligence prompt for a
// question over a dataset. A nil schema is rendered as {}.
func BuildAnalysisPrompt(question string, schema *analysis.Schema, data string) (string, error) {
	schemaJSON := []byte("{}")
	if schema != nil {
		b, err := json.Marshal(schema)
		if err != nil {
			return "", fmt.Errorf("marshal schema: %w", err)
		}
		schemaJSON = b
	}
	var sb strings.Builder
	sb.WriteString("You are an AI business intelligence assistant analyzing data for InsightHub.\n\n")
	sb.WriteString("User Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nData Schema: ")
	sb.Write(schemaJSON)
	sb.WriteString("\n\nData Sample: ")
	sb.WriteString(utils.TruncateRunes(data, MaxPromptDataChars))
	sb.WriteString(`

Based on this information, please provide:
1. A concise summary of the analysis (2-3 sentences)
2. 3-5 key insights from the data
3. A suggestion for the most appropriate visualization type

Format your response as a JSON object with the following structure:
{
  "summary": "Your summary here",
  "insights": ["Insight 1", "Insight 2", "Insight 3"],
  "visualizationSuggestion": "bar chart"
}
`)
	return sb.String(), nil
}

var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

// ParseAnalysisResponse extracts the outermost {...} block of a model reply.
// A reply without one yields FallbackResult; a block that is not valid JSON
// is an error.
func ParseAnalysisResponse(text string) (*AnalysisResult, error) {
	block := jsonBlock.FindString(text)
	if block == "" {
		return FallbackResult(), nil
	}
	var out AnalysisResult
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return nil, fmt.Errorf("parse analysis response: %w", err)
	}
	if out.Insights == nil {
		out.Insights = []string{}
	}
	return &out, nil
}

// Analyzer asks a runtime to analyze a dataset.
type Analyzer struct {
	Runtime     Runtime
	Model       string
	MaxTokens   int
	Temperature float64
	// OnDelta, when set and the runtime streams, receives the raw reply as it arrives.
	OnDelta func(string)
}

// Analyze builds the prompt, calls the runtime and parses its reply.
func (a *Analyzer) Analyze(ctx context.Context, question, data string, schema *analysis.Schema) (*AnalysisResult, error) {
	if a == nil || a.Runtime == nil {
		return nil, errors.New("no AI runtime configured")
	}
	prompt, err := BuildAnalysisPrompt(question, schema, data)
	if err != nil {
		return nil, err
	}
	req := GenerateRequest{
		Model:       a.Model,
		Messages:    []Message{{Role: "user", Content: prompt}},
		MaxTokens:   a.MaxTokens,
		Temperature: a.Temperature,
	}
	var text string
	if sr, ok := a.Runtime.(StreamRuntime); ok && a.OnDelta != nil {
		var sb strings.Builder
		err = sr.GenerateStream(ctx, req, func(d string) {
			sb.WriteString(d)
			a.OnDelta(d)
		})
		text = sb.String()
	} else {
		var resp *GenerateResponse
		resp, err = a.Runtime.Generate(ctx, req)
		text = resp.Text()
	}
	if err != nil {
		return nil, err
	}
	return ParseAnalysisResponse(text)
}
