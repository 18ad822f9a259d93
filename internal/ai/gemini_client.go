package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is used when a request names no model.
const DefaultGeminiModel = "gemini-1.5-flash"

// GeminiClient calls Google's Gemini API through the generative-ai-go SDK.
// A new SDK client is opened per request so that each call is bound to its
// own context.
type GeminiClient struct {
	apiKey string
	opts   []option.ClientOption
}

// NewGeminiClient returns a client authenticating with apiKey. Extra options
// are passed to the SDK (endpoint overrides, custom HTTP clients).
func NewGeminiClient(apiKey string, opts ...option.ClientOption) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, opts: opts}
}

func (c *GeminiClient) open(ctx context.Context) (*genai.Client, error) {
	if c.apiKey == "" {
		return nil, errors.New("Gemini API key is missing (set GOOGLE_AI_API_KEY or INSIGHTHUB_GEMINI_API_KEY)")
	}
	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return client, nil
}

// session prepares a chat session from req: system messages become the
// system instruction, all but the last turn become history, and the last
// turn is returned as the prompt to send.
func (c *GeminiClient) session(client *genai.Client, req GenerateRequest) (*genai.ChatSession, []genai.Part, error) {
	model := req.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	m := client.GenerativeModel(model)
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.Temperature > 0 {
		m.SetTemperature(float32(req.Temperature))
	}
	system, history, last, err := splitMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	cs := m.StartChat()
	cs.History = history
	return cs, []genai.Part{genai.Text(last)}, nil
}

// splitMessages maps chat messages onto Gemini's user/model roles.
func splitMessages(msgs []Message) (system string, history []*genai.Content, last string, err error) {
	var sys []string
	var turns []Message
	for _, m := range msgs {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	if len(turns) == 0 {
		return "", nil, "", errors.New("messages cannot be empty")
	}
	for _, t := range turns[:len(turns)-1] {
		role := "user"
		if t.Role == "assistant" || t.Role == "model" {
			role = "model"
		}
		history = append(history, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(t.Content)}})
	}
	return strings.Join(sys, "\n\n"), history, turns[len(turns)-1].Content, nil
}

// Generate sends the conversation and returns the first candidate's text.
func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	client, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	cs, parts, err := c.session(client, req)
	if err != nil {
		return nil, err
	}
	resp, err := cs.SendMessage(ctx, parts...)
	if err != nil {
		return nil, classifyGeminiError(err)
	}
	return geminiResponse(resp), nil
}

// GenerateStream streams candidate text as it arrives.
func (c *GeminiClient) GenerateStream(ctx context.Context, req GenerateRequest, onDelta func(string)) error {
	client, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	cs, parts, err := c.session(client, req)
	if err != nil {
		return err
	}
	it := cs.SendMessageStream(ctx, parts...)
	for {
		resp, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return classifyGeminiError(err)
		}
		if s := candidateText(resp); s != "" {
			onDelta(s)
		}
	}
}

func geminiResponse(resp *genai.GenerateContentResponse) *GenerateResponse {
	out := &GenerateResponse{
		Choices: []Choice{{Message: Message{Role: "assistant", Content: candidateText(resp)}}},
	}
	if resp != nil && resp.UsageMetadata != nil {
		out.Usage = Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out
}

// candidateText concatenates the text parts of the first candidate.
func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
