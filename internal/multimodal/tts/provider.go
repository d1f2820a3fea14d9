package tts

import (
	"context"
	"errors"
)

var (
	ErrValidation    = errors.New("invalid speech request")
	ErrInvalidVoice  = errors.New("invalid voice")
	ErrSynthesis     = errors.New("speech synthesis failed")
	ErrNotConfigured = errors.New("speech synthesis not configured")
)

// SynthesisRequest is what a provider receives after voice lookup and
// validation. VoiceID is the provider's own identifier.
type SynthesisRequest struct {
	Text            string
	VoiceID         string
	Stability       float64
	SimilarityBoost float64
}

// SynthesisResult holds the generated audio and its content type.
type SynthesisResult struct {
	Audio       []byte
	ContentType string
}

// TTSProvider is the interface for text-to-speech backends.
type TTSProvider interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error)
	Name() string
}
