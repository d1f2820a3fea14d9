package poem

import (
	"context"

	"github.com/nikhilbhutani/photopoet/internal/multimodal"
)

// Tones are the suggestions offered to the UI. Any other tone is accepted.
var Tones = []string{"happy", "sad", "reflective", "angry", "inspirational", "romantic", "humorous", "melancholic"}

// Options are the style parameters of a poem.
type Options struct {
	Tone           string
	StanzaCount    int
	LinesPerStanza int
}

func DefaultOptions() Options {
	return Options{StanzaCount: DefaultStanzas, LinesPerStanza: DefaultLinesPerStanza}
}

// Service runs the whole pipeline: normalize the image, build the prompt,
// generate the poem.
type Service struct {
	normalizer *multimodal.Normalizer
	client     *Client
}

func NewService(normalizer *multimodal.Normalizer, client *Client) *Service {
	return &Service{normalizer: normalizer, client: client}
}

func (s *Service) Compose(ctx context.Context, image multimodal.ImageInput, opts Options) (*Result, error) {
	imageData, err := s.normalizer.Normalize(ctx, image)
	if err != nil {
		return nil, err
	}

	p, err := Build(Request{
		ImageData:      imageData,
		Tone:           opts.Tone,
		StanzaCount:    opts.StanzaCount,
		LinesPerStanza: opts.LinesPerStanza,
	})
	if err != nil {
		return nil, err
	}

	return s.client.Generate(ctx, p)
}
