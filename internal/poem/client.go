package poem

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/photopoet/internal/llm"
)

const systemInstruction = "You write original poems about photographs. Answer with the poem only, inside the requested JSON object."

var poemSchema = &llm.Schema{
	Name:        "poem",
	Description: "A poem written about the supplied image.",
	Fields: []llm.SchemaField{
		{Name: "poem", Type: "string", Description: "The full poem. Separate stanzas with a blank line.", Required: true},
	},
}

// Result is a generated poem. ID correlates log lines and is never stored.
type Result struct {
	ID       string `json:"id"`
	Poem     string `json:"poem"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Client sends rendered prompts to the language model.
type Client struct {
	gateway llm.Gateway
	model   string // empty uses the gateway default
}

func NewClient(gw llm.Gateway, model string) *Client {
	return &Client{gateway: gw, model: model}
}

// Generate makes one model call and returns the poem. Any response that is
// not a JSON object with a non-empty string "poem" is an ErrGeneration.
func (c *Client) Generate(ctx context.Context, p Prompt) (*Result, error) {
	id := uuid.New().String()
	if flags := p.ToneFlags(); len(flags) > 0 {
		slog.WarnContext(ctx, "tone flagged by guardrails", "id", id, "flags", flags)
	}

	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: p.Text(), Images: []string{p.Image()}},
		},
		ResponseSchema: poemSchema,
	})
	if err != nil {
		slog.WarnContext(ctx, "poem generation failed", "id", id, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	text, err := parsePoem(resp.Content)
	if err != nil {
		slog.WarnContext(ctx, "poem response rejected", "id", id, "provider", resp.Provider, "model", resp.Model, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "poem generated",
		"id", id,
		"provider", resp.Provider,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"latency_ms", resp.LatencyMs,
	)
	return &Result{ID: id, Poem: text, Provider: resp.Provider, Model: resp.Model}, nil
}

func parsePoem(content string) (string, error) {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal([]byte(llm.StripCodeFence(content)), &payload); err != nil {
		return "", fmt.Errorf("%w: response is not a JSON object: %w", ErrGeneration, err)
	}
	raw, ok := payload["poem"]
	if !ok {
		return "", fmt.Errorf("%w: response has no poem field", ErrGeneration)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", fmt.Errorf("%w: poem field is not a string", ErrGeneration)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: poem is empty", ErrGeneration)
	}
	return text, nil
}
