package poem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/nikhilbhutani/photopoet/internal/guardrails"
	"github.com/nikhilbhutani/photopoet/internal/prompt"
	"github.com/nikhilbhutani/photopoet/pkg/datauri"
)

var (
	ErrValidation = errors.New("invalid poem request")
	ErrGeneration = errors.New("poem generation failed")
)

const (
	MinStanzas        = 1
	MaxStanzas        = 10
	MinLinesPerStanza = 2
	MaxLinesPerStanza = 10

	DefaultStanzas        = 3
	DefaultLinesPerStanza = 4
)

var poemTemplate = prompt.MustParse("poem", "You are a poet. Generate a poem based on the image provided.\n"+
	"The poem must have exactly {{stanzaCount}} stanzas.\n"+
	"Each stanza must have exactly {{linesPerStanza}} lines.\n"+
	"The poem should evoke the imagery of the photo.\n"+
	"{{#if tone}}The tone of the poem should be {{tone}}.\n{{/if}}"+
	"Here is the image:")

// Request is a validated-on-build generation request. ImageData must already
// be a data URI.
type Request struct {
	ImageData      string
	Tone           string
	StanzaCount    int
	LinesPerStanza int
}

// Prompt is the rendered instruction text plus the image it refers to.
// It cannot be modified after Build.
type Prompt struct {
	text      string
	image     string
	toneFlags []string
}

func (p Prompt) Text() string  { return p.text }
func (p Prompt) Image() string { return p.image }

// ToneFlags lists guardrail flags raised by the tone. Flagged tones are still
// used as given.
func (p Prompt) ToneFlags() []string { return p.toneFlags }

// Build validates req and renders the prompt. It performs no I/O.
func Build(req Request) (Prompt, error) {
	if req.StanzaCount < MinStanzas || req.StanzaCount > MaxStanzas {
		return Prompt{}, fmt.Errorf("%w: stanza count must be between %d and %d, got %d", ErrValidation, MinStanzas, MaxStanzas, req.StanzaCount)
	}
	if req.LinesPerStanza < MinLinesPerStanza || req.LinesPerStanza > MaxLinesPerStanza {
		return Prompt{}, fmt.Errorf("%w: lines per stanza must be between %d and %d, got %d", ErrValidation, MinLinesPerStanza, MaxLinesPerStanza, req.LinesPerStanza)
	}
	if _, _, err := datauri.Validate(req.ImageData); err != nil {
		return Prompt{}, fmt.Errorf("%w: image data: %w", ErrValidation, err)
	}
	tone := strings.TrimSpace(req.Tone)
	check := guardrails.CheckPhrase(tone)
	if !check.Allowed {
		return Prompt{}, fmt.Errorf("%w: tone %s", ErrValidation, check.Reason)
	}

	text, err := poemTemplate.Render(map[string]string{
		"stanzaCount":    strconv.Itoa(req.StanzaCount),
		"linesPerStanza": strconv.Itoa(req.LinesPerStanza),
		"tone":           tone,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("render prompt: %w", err)
	}
	return Prompt{text: text, image: req.ImageData, toneFlags: check.Flags}, nil
}
