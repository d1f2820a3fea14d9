package main

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipDuration(t *testing.T) {
	assert.Equal(t, time.Second, clipDuration(16_000))
	assert.Equal(t, 90*time.Second, clipDuration(1_440_000))
	assert.Zero(t, clipDuration(0))
}

func TestPlayAudio(t *testing.T) {
	for _, bin := range []string{"true", "false"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available: %v", bin, err)
		}
	}
	audio := []byte("ID3-mp3")

	saved := filepath.Join(t.TempDir(), "poem.mp3")
	require.NoError(t, os.WriteFile(saved, audio, 0o644))
	require.NoError(t, playAudio(context.Background(), "true", saved, audio))
	assert.FileExists(t, saved)

	require.NoError(t, playAudio(context.Background(), "true", "", audio))

	assert.ErrorContains(t, playAudio(context.Background(), "false", saved, audio), "player")
	assert.ErrorContains(t, playAudio(context.Background(), "no-such-player-binary", saved, audio), "start player")
	assert.Error(t, playAudio(context.Background(), "   ", saved, audio))
}
