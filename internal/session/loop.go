package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Deps struct {
	WakeWord    WakeWord
	Recorder    Recorder
	Transcriber Transcriber
	Generator   Generator
	Synthesizer Synthesizer
	Player      Player
	Mixer       Mixer
	Observers   []Observer
	Logger      *log.Logger
}

// Loop is single-threaded: every call blocks until its collaborator returns.
type Loop struct {
	opts Options

	wake   WakeWord
	rec    Recorder
	stt    Transcriber
	gen    Generator
	synth  Synthesizer
	player Player
	mixer  Mixer

	observers []Observer
	commands  []Command

	state    State
	phase    Phase
	failures int

	log   *log.Logger
	clock func() time.Time
}

func New(opts Options, deps Deps) *Loop {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	l := &Loop{
		opts:      opts,
		wake:      deps.WakeWord,
		rec:       deps.Recorder,
		stt:       deps.Transcriber,
		gen:       deps.Generator,
		synth:     deps.Synthesizer,
		player:    deps.Player,
		mixer:     deps.Mixer,
		observers: deps.Observers,
		state:     State{Device: opts.DefaultDevice},
		phase:     AwaitingWakeWord,
		log:       logger.With("component", "session"),
		clock:     time.Now,
	}
	l.commands = l.Commands()

	return l
}

func (l *Loop) State() State { return l.state }

func (l *Loop) Phase() Phase { return l.phase }

// Run repeats wake/capture/dispatch until an exit phrase is heard, the wake-word
// source fails, ctx is cancelled, or MaxFailures iterations in a row fail.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("Aeris is ready", "device", l.state.Device)

	for {
		l.setPhase(AwaitingWakeWord)

		if err := l.wake.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return stageErr(StageWake, err)
		}

		l.setPhase(Processing)

		done, err := l.process(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			l.failures++
			l.log.Error("Iteration failed", "stage", StageOf(err), "failures", l.failures, "err", err)

			if l.opts.MaxFailures > 0 && l.failures >= l.opts.MaxFailures {
				return fmt.Errorf("%w: %w", ErrTooManyFailures, err)
			}
			continue
		}
		l.failures = 0

		if done {
			l.setPhase(Terminated)
			return nil
		}
	}
}

func (l *Loop) process(ctx context.Context) (bool, error) {
	pcm, err := l.rec.Record(ctx, l.opts.RecordDuration)
	if err != nil {
		return false, stageErr(StageRecord, err)
	}
	l.log.Debug("Recorded", "samples", len(pcm))

	text, err := l.stt.Transcribe(ctx, pcm)
	if err != nil {
		return false, stageErr(StageTranscribe, err)
	}
	l.log.Info("Heard", "text", text)

	return l.Handle(ctx, text)
}

// Handle classifies one transcript and runs its command. It reports whether
// the session must end. Blank transcripts are ignored.
func (l *Loop) Handle(ctx context.Context, transcript string) (bool, error) {
	if strings.TrimSpace(transcript) == "" {
		l.log.Debug("Empty transcript, skipping")
		return false, nil
	}

	cmd := Classify(l.commands, transcript)
	l.log.Debug("Classified", "command", cmd.Name)

	turn := Turn{
		ID:         uuid.NewString(),
		Transcript: transcript,
		Command:    cmd.Name,
		At:         l.clock(),
	}

	res, err := cmd.Handle(ctx, l.state, transcript)
	if err == nil {
		l.state = res.State
		if res.Reply != "" {
			err = l.Speak(ctx, res.Reply)
		}
	}

	turn.Reply = res.Reply
	turn.Device = l.state.Device
	turn.Err = err
	l.notify(ctx, turn)

	if err != nil && res.Exit {
		// The exit phrase ends the session even when the farewell is lost.
		l.log.Warn("Failed to speak farewell", "err", err)
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return res.Exit, nil
}

// Speak synthesizes text and plays it on the active output device.
func (l *Loop) Speak(ctx context.Context, text string) error {
	l.log.Info("Aeris says", "text", text, "device", l.state.Device)

	path, err := l.synth.Synthesize(ctx, text)
	if err != nil {
		return stageErr(StageSynthesize, err)
	}

	if l.state.Device == l.opts.DefaultDevice {
		err = l.player.PlayDefault(ctx, path)
	} else {
		err = l.player.PlayDevice(ctx, path, l.state.Device)
	}
	return stageErr(StagePlay, err)
}

func (l *Loop) notify(ctx context.Context, t Turn) {
	for _, o := range l.observers {
		if err := o.Observe(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
			l.log.Warn("Observer failed", "turn", t.ID, "err", err)
		}
	}
}

func (l *Loop) setPhase(p Phase) {
	if l.phase == p {
		return
	}
	l.log.Debug("Phase", "from", l.phase, "to", p)
	l.phase = p
}
