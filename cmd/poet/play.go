package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nikhilbhutani/photopoet/internal/playback"
)

// mp3BitRate is the bit rate of ElevenLabs' default mp3_44100_128 output.
const mp3BitRate = 128_000

// clipDuration estimates the length of constant bit rate MP3 audio.
func clipDuration(size int) time.Duration {
	return time.Duration(size) * 8 * time.Second / mp3BitRate
}

// playAudio hands the audio to an external player and tracks it until the
// player exits or ctx is cancelled. Without a saved path the audio goes to a
// temporary file that is removed when the clip is released.
func playAudio(ctx context.Context, command, path string, audio []byte) error {
	args := strings.Fields(command)
	if len(args) == 0 {
		return errors.New("-play needs a player command")
	}

	var release func()
	if path == "" {
		f, err := os.CreateTemp("", "photopoet-*.mp3")
		if err != nil {
			return fmt.Errorf("create audio file: %w", err)
		}
		path = f.Name()
		release = func() { os.Remove(path) }
		_, werr := f.Write(audio)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			release()
			return fmt.Errorf("write audio: %w", werr)
		}
	}

	cmd := exec.CommandContext(ctx, args[0], append(args[1:], path)...)
	if err := cmd.Start(); err != nil {
		if release != nil {
			release()
		}
		return fmt.Errorf("start player: %w", err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	clip := playback.Clip{Duration: clipDuration(len(audio)), Release: release}
	err := playback.Track(ctx, playback.NewPlayer(), clip, done, 250*time.Millisecond, func(pct float64) {
		fmt.Fprintf(os.Stderr, "\rplaying %3.0f%%", pct)
	})
	fmt.Fprintln(os.Stderr)
	if errors.Is(err, context.Canceled) {
		<-done
		return nil
	}
	if err != nil {
		return fmt.Errorf("player: %w", err)
	}
	return nil
}
