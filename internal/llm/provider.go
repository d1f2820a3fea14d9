package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrProviderNotConfigured is returned when a request targets a provider
// whose credentials were not supplied at startup.
var ErrProviderNotConfigured = errors.New("llm provider not configured")

// Provider abstracts a vision-capable LLM provider (Gemini, OpenAI, Anthropic, Ollama).
type Provider interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Name() string
	Models() []string
}

// Gateway routes requests to a configured provider, with optional retry and fallback.
type Gateway interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Provider(name string) (Provider, error)
	ListModels() []ModelInfo
}

// Message represents a single chat message.
type Message struct {
	Role    string   `json:"role"` // system, user, assistant
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64 data URIs
}

// ChatRequest is the input for chat completions.
type ChatRequest struct {
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model"`
	Messages       []Message `json:"messages"`
	Temperature    float64   `json:"temperature,omitempty"`
	MaxTokens      int       `json:"max_tokens,omitempty"`
	TopP           float64   `json:"top_p,omitempty"`
	Stop           []string  `json:"stop,omitempty"`
	ResponseSchema *Schema   `json:"-"`
}

// ChatResponse is the output from chat completions.
type ChatResponse struct {
	ID           string  `json:"id"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	Content      string  `json:"content"`
	FinishReason string  `json:"finish_reason,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// ModelInfo describes an available model.
type ModelInfo struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Default  bool   `json:"default,omitempty"`
}

// systemPrompt joins every system message and appends the schema
// instruction for providers without native structured output.
func systemPrompt(req ChatRequest, withSchema bool) string {
	var parts []string
	for _, m := range req.Messages {
		if m.Role == "system" && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	if withSchema && req.ResponseSchema != nil {
		parts = append(parts, req.ResponseSchema.Instruction())
	}
	return strings.Join(parts, "\n\n")
}
