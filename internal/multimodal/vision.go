package multimodal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/photopoet/internal/llm"
)

// ErrAnalysis means the vision model call failed or returned nothing usable.
var ErrAnalysis = errors.New("image analysis failed")

// VisionService handles free-form image understanding using vision-capable LLMs.
type VisionService struct {
	gateway    llm.Gateway
	normalizer *Normalizer
	model      string // empty uses the gateway's configured model
}

func NewVisionService(gw llm.Gateway, normalizer *Normalizer, model string) *VisionService {
	return &VisionService{gateway: gw, normalizer: normalizer, model: model}
}

// VisionResponse holds the output from a vision task.
type VisionResponse struct {
	Content     string  `json:"content"`
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	InputTokens int     `json:"input_tokens"`
	CostUSD     float64 `json:"cost_usd"`
}

// Analyze sends images to a vision model with a prompt.
func (v *VisionService) Analyze(ctx context.Context, images []ImageInput, prompt string) (*VisionResponse, error) {
	if len(images) == 0 || strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("%w: images and prompt required", ErrInvalidImage)
	}

	dataURIs := make([]string, 0, len(images))
	for _, img := range images {
		uri, err := v.normalizer.Normalize(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("resolve image: %w", err)
		}
		dataURIs = append(dataURIs, uri)
	}

	resp, err := v.gateway.Chat(ctx, llm.ChatRequest{
		Model: v.model,
		Messages: []llm.Message{
			{
				Role:    "system",
				Content: "You are a helpful assistant that can analyze images. Describe what you see accurately and thoroughly.",
			},
			{
				Role:    "user",
				Content: prompt,
				Images:  dataURIs,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAnalysis, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: model returned no text", ErrAnalysis)
	}

	return &VisionResponse{
		Content:     resp.Content,
		Provider:    resp.Provider,
		Model:       resp.Model,
		InputTokens: resp.InputTokens,
		CostUSD:     resp.CostUSD,
	}, nil
}

// Describe generates a description of an image.
func (v *VisionService) Describe(ctx context.Context, image ImageInput) (string, error) {
	resp, err := v.Analyze(ctx, []ImageInput{image}, "Describe this image.")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
