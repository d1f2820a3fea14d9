// Command poet writes a poem about a local photo and can read it aloud into
// an MP3 file or through an external audio player.
//
//	poet -image photo.jpg [-tone happy] [-stanzas 3] [-lines 4] [-speak out.mp3] [-play "mpg123 -q"] [-voice Rachel]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/nikhilbhutani/photopoet/internal/config"
	"github.com/nikhilbhutani/photopoet/internal/llm"
	"github.com/nikhilbhutani/photopoet/internal/multimodal"
	"github.com/nikhilbhutani/photopoet/internal/multimodal/tts"
	"github.com/nikhilbhutani/photopoet/internal/poem"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "poet:", err)
		os.Exit(1)
	}
}

func run() error {
	defaults := poem.DefaultOptions()
	var (
		image   = flag.String("image", "", "path or http(s) URL of the photo (required)")
		tone    = flag.String("tone", "", "tone of the poem, e.g. "+strings.Join(poem.Tones, ", "))
		stanzas = flag.Int("stanzas", defaults.StanzaCount, fmt.Sprintf("number of stanzas (%d-%d)", poem.MinStanzas, poem.MaxStanzas))
		lines   = flag.Int("lines", defaults.LinesPerStanza, fmt.Sprintf("lines per stanza (%d-%d)", poem.MinLinesPerStanza, poem.MaxLinesPerStanza))
		speak   = flag.String("speak", "", "write the poem as MP3 audio to this file")
		play    = flag.String("play", "", "audio player command to read the poem aloud, e.g. \"mpg123 -q\"")
		voice   = flag.String("voice", string(tts.DefaultVoice), "voice for -speak and -play")
		verbose = flag.Bool("v", false, "log to stderr")
	)
	flag.Parse()

	if *image == "" {
		flag.Usage()
		return errors.New("-image is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	if *verbose {
		level = cfg.Log.Level
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	input := multimodal.ImageInput{FilePath: *image}
	if strings.HasPrefix(*image, "http://") || strings.HasPrefix(*image, "https://") {
		input = multimodal.ImageInput{URL: *image}
	}

	gw := llm.NewGateway(cfg.LLM)
	svc := poem.NewService(multimodal.NewNormalizer(cfg.Image), poem.NewClient(gw, ""))
	result, err := svc.Compose(ctx, input, poem.Options{
		Tone:           *tone,
		StanzaCount:    *stanzas,
		LinesPerStanza: *lines,
	})
	if err != nil {
		return err
	}
	fmt.Println(result.Poem)

	if *speak == "" && *play == "" {
		return nil
	}

	var provider tts.TTSProvider
	if cfg.TTS.ElevenLabsKey != "" {
		provider = tts.NewElevenLabs(tts.ElevenLabsConfig{
			APIKey:  cfg.TTS.ElevenLabsKey,
			BaseURL: cfg.TTS.ElevenLabsBaseURL,
			Model:   cfg.TTS.ElevenLabsModel,
		})
	}
	req := tts.NewSpeechRequest(result.Poem)
	req.Voice = *voice
	audio, err := tts.NewSynthesizer(provider, tts.ElevenLabsVoices()).Synthesize(ctx, req)
	if err != nil {
		return err
	}
	if *speak != "" {
		if err := os.WriteFile(*speak, audio.Audio, 0o644); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		slog.Info("audio written", "path", *speak, "bytes", len(audio.Audio))
	}
	if *play != "" {
		return playAudio(ctx, *play, *speak, audio.Audio)
	}
	return nil
}
