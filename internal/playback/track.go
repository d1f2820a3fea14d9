package playback

import (
	"context"
	"time"
)

// Track plays clip on p while an external sink renders the audio. The
// position follows wall time in steps of tick. A value on done means the
// sink exited, which is the natural end; cancelling ctx stops playback.
// report, when set, receives the progress after each step while playing.
func Track(ctx context.Context, p *Player, clip Clip, done <-chan error, tick time.Duration, report func(float64)) error {
	p.Start(clip)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return ctx.Err()
		case err := <-done:
			p.Finish()
			return err
		case now := <-ticker.C:
			p.Advance(now.Sub(last))
			last = now
			if report != nil && p.State() == Playing {
				report(p.Progress())
			}
		}
	}
}
