package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Play blocks until mono samples have been played on the default output
// device or ctx is done. oto allows one context per process, so Play is
// meant for the one-shot CLI only.
func Play(ctx context.Context, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return errors.New("no samples to play")
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("create audio context: %w", err)
	}
	<-ready

	player := otoCtx.NewPlayer(bytes.NewReader(PCM16LE(samples)))
	defer func() { _ = player.Close() }()

	player.Play()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}
