package pulse

import (
	"context"
	"fmt"
	log "log/slog"
)

// Player plays WAV files with aplay on the default output and with
// paplay --device on a named sink. An optional Ducker lowers other streams
// for the duration of the playback.
type Player struct {
	aplay  string
	paplay string
	run    Runner
	ducker *Ducker
}

func NewPlayer(aplay, paplay string, run Runner, ducker *Ducker) *Player {
	if aplay == "" {
		aplay = "aplay"
	}
	if paplay == "" {
		paplay = "paplay"
	}
	if run == nil {
		run = ExecRunner
	}
	return &Player{aplay: aplay, paplay: paplay, run: run, ducker: ducker}
}

func (p *Player) PlayDefault(ctx context.Context, path string) error {
	return p.play(ctx, p.aplay, path)
}

func (p *Player) PlayDevice(ctx context.Context, path, device string) error {
	return p.play(ctx, p.paplay, "--device", device, path)
}

func (p *Player) play(ctx context.Context, name string, args ...string) error {
	if p.ducker != nil {
		if err := p.ducker.Duck(ctx); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		}
		defer func() {
			if err := p.ducker.Restore(context.WithoutCancel(ctx)); err != nil {
				log.Warn("Failed to restore other streams", "err", err)
			}
		}()
	}

	if _, err := p.run(ctx, name, args...); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
