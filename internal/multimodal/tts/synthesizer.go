package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	DefaultStability       = 0.5
	DefaultSimilarityBoost = 0.5
)

// SpeechRequest is the caller-facing request. Voice is a display name from
// the closed voice set.
type SpeechRequest struct {
	Text            string
	Voice           string
	Stability       float64
	SimilarityBoost float64
}

// NewSpeechRequest returns a request for text with the default voice settings.
func NewSpeechRequest(text string) SpeechRequest {
	return SpeechRequest{
		Text:            text,
		Voice:           string(DefaultVoice),
		Stability:       DefaultStability,
		SimilarityBoost: DefaultSimilarityBoost,
	}
}

// Synthesizer validates speech requests, resolves voice names and forwards
// them to a provider. It is safe for concurrent use.
type Synthesizer struct {
	provider TTSProvider
	voices   VoiceTable
}

func NewSynthesizer(provider TTSProvider, voices VoiceTable) *Synthesizer {
	return &Synthesizer{provider: provider, voices: voices}
}

// Voices returns the available voice names.
func (s *Synthesizer) Voices() []string {
	return s.voices.Names()
}

// HasVoice reports whether name is in the voice set.
func (s *Synthesizer) HasVoice(name string) bool {
	_, err := s.voices.Lookup(name)
	return err == nil
}

// Synthesize validates req and returns the complete audio. Invalid input is
// rejected before any network call.
func (s *Synthesizer) Synthesize(ctx context.Context, req SpeechRequest) (*SynthesisResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	if req.Stability < 0 || req.Stability > 1 {
		return nil, fmt.Errorf("%w: stability must be between 0 and 1", ErrValidation)
	}
	if req.SimilarityBoost < 0 || req.SimilarityBoost > 1 {
		return nil, fmt.Errorf("%w: similarity_boost must be between 0 and 1", ErrValidation)
	}
	voiceID, err := s.voices.Lookup(req.Voice)
	if err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	result, err := s.provider.Synthesize(ctx, SynthesisRequest{
		Text:            req.Text,
		VoiceID:         voiceID,
		Stability:       req.Stability,
		SimilarityBoost: req.SimilarityBoost,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "speech synthesized",
		"provider", s.provider.Name(),
		"voice", req.Voice,
		"chars", len(req.Text),
		"bytes", len(result.Audio),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
