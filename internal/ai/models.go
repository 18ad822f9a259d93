package ai

import "sort"

// Model metadata used to pick defaults and warn about oversized prompts.

type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int // approximate context window
}

var models = map[string]ModelInfo{
	"gemini-1.5-flash":            {Name: "gemini-1.5-flash", Provider: ProviderGemini, ContextTokens: 1000000},
	"gemini-1.5-pro":              {Name: "gemini-1.5-pro", Provider: ProviderGemini, ContextTokens: 2000000},
	"gemini-pro":                  {Name: "gemini-pro", Provider: ProviderGemini, ContextTokens: 32768},
	"openai/gpt-4o-mini":          {Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter, ContextTokens: 128000},
	"openai/gpt-4o":               {Name: "openai/gpt-4o", Provider: ProviderOpenRouter, ContextTokens: 128000},
	"anthropic/claude-3.5-sonnet": {Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter, ContextTokens: 200000},
	"google/gemini-1.5-flash":     {Name: "google/gemini-1.5-flash", Provider: ProviderOpenRouter, ContextTokens: 1000000},
	"llama3:latest":               {Name: "llama3:latest", Provider: ProviderOllama, ContextTokens: 8192},
	"llama3.1:8b-instruct":        {Name: "llama3.1:8b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
	"mistral:7b-instruct":         {Name: "mistral:7b-instruct", Provider: ProviderOllama, ContextTokens: 8192},
}

var defaultModels = map[string]string{
	ProviderGemini:     DefaultGeminiModel,
	ProviderGoogle:     DefaultGeminiModel,
	ProviderOpenRouter: "openai/gpt-4o-mini",
	ProviderOllama:     "llama3:latest",
	ProviderLocal:      "llama3:latest",
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// Models lists the known models sorted by provider, then name. An empty
// provider lists all of them.
func Models(provider string) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, mi := range models {
		if provider == "" || mi.Provider == provider {
			out = append(out, mi)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}
