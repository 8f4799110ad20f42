// Package wakeword decides when the assistant starts listening.
package wakeword

import (
	"context"
	log "log/slog"
)

// Detector blocks until the wake-word is heard.
type Detector interface {
	Wait(ctx context.Context) error
}

// Trigger is a detector released by explicit calls to Fire, e.g. from the
// control socket or a push-to-talk key binding.
type Trigger struct {
	ch chan struct{}
}

func NewTrigger() *Trigger {
	return &Trigger{ch: make(chan struct{}, 1)}
}

// Fire releases one pending or future Wait. Triggers that arrive while one
// is already pending are dropped and Fire reports false.
func (t *Trigger) Fire() bool {
	select {
	case t.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

func (t *Trigger) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.ch:
		return nil
	}
}

type first struct {
	ds []Detector
}

// First returns a detector released by whichever of ds returns first. The
// others are cancelled and waited for, so none still holds the microphone
// when Wait returns. A losing detector that also fired and can be re-armed
// (a Trigger) is fired again, so the pending request serves the next Wait.
func First(ds ...Detector) Detector {
	if len(ds) == 1 {
		return ds[0]
	}
	return &first{ds: ds}
}

func (f *first) Wait(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		d   Detector
		err error
	}
	done := make(chan outcome, len(f.ds))
	for _, d := range f.ds {
		go func() { done <- outcome{d, d.Wait(ctx)} }()
	}

	var result error
	for i := range f.ds {
		o := <-done
		if i == 0 {
			result = o.err
			cancel()
			continue
		}
		if r, ok := o.d.(interface{ Fire() bool }); ok && o.err == nil {
			r.Fire()
		}
	}
	return result
}

// Cue is played right after a detection.
type Cue interface {
	Play(ctx context.Context) error
}

type cued struct {
	Detector
	cue Cue
}

// WithCue plays cue after every successful Wait of d. A failing cue is only
// logged.
func WithCue(d Detector, cue Cue) Detector {
	if cue == nil {
		return d
	}
	return &cued{Detector: d, cue: cue}
}

func (c *cued) Wait(ctx context.Context) error {
	if err := c.Detector.Wait(ctx); err != nil {
		return err
	}
	if err := c.cue.Play(ctx); err != nil {
		log.Warn("Failed to play earcon", "err", err)
	}
	return nil
}
