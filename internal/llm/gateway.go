package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nikhilbhutani/photopoet/internal/config"
)

type gateway struct {
	providers        map[string]Provider
	defaultProvider  string
	defaultModel     string
	fallbackProvider string
	fallbackModel    string
	maxRetries       int
	backoff          func(attempt int) time.Duration
}

// NewGateway registers one provider per supplied credential. Providers
// without credentials are simply absent; requests routed to them fail with
// ErrProviderNotConfigured.
func NewGateway(cfg config.LLMConfig) Gateway {
	providers := make(map[string]Provider)

	if cfg.GeminiKey != "" {
		p, err := NewGeminiProvider(context.Background(), cfg.GeminiKey)
		if err != nil {
			slog.Warn("gemini provider unavailable", "error", err)
		} else {
			providers[p.Name()] = p
		}
	}
	if cfg.OpenAIKey != "" {
		if cfg.OpenAIBaseURL != "" {
			providers["openai"] = NewOpenAIProviderWithBaseURL(cfg.OpenAIKey, cfg.OpenAIBaseURL)
		} else {
			providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey)
		}
	}
	if cfg.AnthropicKey != "" {
		providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	return newGateway(providers, cfg)
}

func newGateway(providers map[string]Provider, cfg config.LLMConfig) *gateway {
	return &gateway{
		providers:        providers,
		defaultProvider:  cfg.DefaultProvider,
		defaultModel:     cfg.DefaultModel,
		fallbackProvider: cfg.FallbackProvider,
		fallbackModel:    cfg.FallbackModel,
		maxRetries:       cfg.MaxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 500 * time.Millisecond
		},
	}
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotConfigured, name)
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, g.withModel(providerName, req))
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName && ctx.Err() == nil {
		slog.WarnContext(ctx, "primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		fallbackReq := req
		fallbackReq.Model = ""
		return g.chatWithRetry(ctx, g.fallbackProvider, g.withModel(g.fallbackProvider, fallbackReq))
	}
	return resp, err
}

// withModel fills in the configured model for the provider when the
// request leaves it blank.
func (g *gateway) withModel(providerName string, req ChatRequest) ChatRequest {
	if req.Model != "" {
		return req
	}
	switch {
	case providerName == g.defaultProvider && g.defaultModel != "":
		req.Model = g.defaultModel
	case providerName == g.fallbackProvider && g.fallbackModel != "":
		req.Model = g.fallbackModel
	default:
		if p, ok := g.providers[providerName]; ok && len(p.Models()) > 0 {
			req.Model = p.Models()[0]
		}
	}
	return req
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.backoff(attempt)):
			}
			slog.DebugContext(ctx, "retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	if g.maxRetries == 0 {
		return nil, lastErr
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) ListModels() []ModelInfo {
	var models []ModelInfo
	for _, p := range g.providers {
		for _, m := range p.Models() {
			models = append(models, ModelInfo{
				Provider: p.Name(),
				Model:    m,
				Default:  p.Name() == g.defaultProvider && m == g.defaultModel,
			})
		}
	}
	sort.Slice(models, func(i, j int) bool {
		if models[i].Provider != models[j].Provider {
			return models[i].Provider < models[j].Provider
		}
		return models[i].Model < models[j].Model
	})
	return models
}
