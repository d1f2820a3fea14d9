package tts

import (
	"fmt"
	"slices"
)

// Voice is a display name from the fixed voice vocabulary.
type Voice string

const (
	Rachel Voice = "Rachel"
	Domi   Voice = "Domi"
	Bella  Voice = "Bella"
	Antoni Voice = "Antoni"
	Josh   Voice = "Josh"
	Arnold Voice = "Arnold"
	Adam   Voice = "Adam"
	Sam    Voice = "Sam"

	DefaultVoice = Rachel
)

// Voices lists the closed voice set in display order.
var Voices = []Voice{Rachel, Domi, Bella, Antoni, Josh, Arnold, Adam, Sam}

// VoiceTable maps voices to provider voice ids. It is immutable once built.
type VoiceTable struct {
	ids map[Voice]string
}

// NewVoiceTable copies ids and checks that every voice in the closed set has
// a non-empty id and that no other names are present.
func NewVoiceTable(ids map[Voice]string) (VoiceTable, error) {
	table := make(map[Voice]string, len(Voices))
	for _, v := range Voices {
		id := ids[v]
		if id == "" {
			return VoiceTable{}, fmt.Errorf("voice table: missing id for %s", v)
		}
		table[v] = id
	}
	for v := range ids {
		if !slices.Contains(Voices, v) {
			return VoiceTable{}, fmt.Errorf("voice table: unknown voice %q", v)
		}
	}
	return VoiceTable{ids: table}, nil
}

// ElevenLabsVoices returns the stock ElevenLabs voice ids.
func ElevenLabsVoices() VoiceTable {
	table, err := NewVoiceTable(map[Voice]string{
		Rachel: "21m00Tcm4TlvDq8ikWAM",
		Domi:   "AZnzlk1XvdvUeBnXmlld",
		Bella:  "EXAVITQu4vr4xnSDxMaL",
		Antoni: "ErXwobaYiN019PkySvjV",
		Josh:   "Josh",
		Arnold: "Arnold",
		Adam:   "Adam",
		Sam:    "Sam",
	})
	if err != nil {
		panic(err)
	}
	return table
}

// Lookup returns the provider id for a voice name. Names are matched exactly.
func (t VoiceTable) Lookup(name string) (string, error) {
	id, ok := t.ids[Voice(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidVoice, name)
	}
	return id, nil
}

// Names returns the voice names in display order.
func (t VoiceTable) Names() []string {
	names := make([]string, 0, len(Voices))
	for _, v := range Voices {
		if _, ok := t.ids[v]; ok {
			names = append(names, string(v))
		}
	}
	return names
}
