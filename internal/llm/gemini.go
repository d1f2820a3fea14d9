package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/nikhilbhutani/photopoet/pkg/datauri"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Models() []string {
	return []string{
		"gemini-2.0-flash", "gemini-2.0-flash-lite", "gemini-2.5-flash", "gemini-2.5-pro",
	}
}

func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}

	gCfg := &genai.GenerateContentConfig{}
	if system := systemPrompt(req, false); system != "" {
		gCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature > 0 {
		gCfg.Temperature = genai.Ptr(float32(req.Temperature))
	}
	if req.TopP > 0 {
		gCfg.TopP = genai.Ptr(float32(req.TopP))
	}
	if req.MaxTokens > 0 {
		gCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Stop) > 0 {
		gCfg.StopSequences = req.Stop
	}
	if req.ResponseSchema != nil {
		gCfg.ResponseMIMEType = "application/json"
		gCfg.ResponseSchema = toGeminiSchema(req.ResponseSchema)
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, gCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	var content strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				content.WriteString(part.Text)
			}
		}
	}

	var inputTokens, outputTokens int
	if resp.UsageMetadata != nil {
		inputTokens = int(resp.UsageMetadata.PromptTokenCount)
		outputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return &ChatResponse{
		ID:           resp.ResponseID,
		Provider:     p.Name(),
		Model:        req.Model,
		Content:      content.String(),
		FinishReason: string(candidate.FinishReason),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      CalculateCost(req.Model, inputTokens, outputTokens),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

func toGeminiContents(msgs []Message) ([]*genai.Content, error) {
	var contents []*genai.Content
	for _, m := range msgs {
		var role genai.Role
		switch m.Role {
		case "system":
			continue
		case "assistant":
			role = genai.RoleModel
		default:
			role = genai.RoleUser
		}

		var parts []*genai.Part
		if m.Content != "" {
			parts = append(parts, genai.NewPartFromText(m.Content))
		}
		for _, img := range m.Images {
			uri, err := datauri.Parse(img)
			if err != nil {
				return nil, fmt.Errorf("gemini image part: %w", err)
			}
			parts = append(parts, genai.NewPartFromBytes(uri.Data, uri.MIMEType))
		}
		if len(parts) > 0 {
			contents = append(contents, genai.NewContentFromParts(parts, role))
		}
	}
	return contents, nil
}

func toGeminiSchema(s *Schema) *genai.Schema {
	props := make(map[string]*genai.Schema, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		props[f.Name] = &genai.Schema{
			Type:        geminiType(f.Type),
			Description: f.Description,
		}
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: s.Description,
		Properties:  props,
		Required:    required,
	}
}

func geminiType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}
