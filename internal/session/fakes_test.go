package session

import (
	"context"
	"errors"
	"io"
	log "log/slog"
	"time"
)

type fakeWake struct {
	waits int
	limit int // 0 = unlimited
	err   error
}

func (f *fakeWake) Wait(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	if f.limit > 0 && f.waits >= f.limit {
		return errors.New("no more wake-words")
	}
	f.waits++
	return ctx.Err()
}

type fakeRecorder struct {
	calls    int
	duration time.Duration
	err      error
}

func (f *fakeRecorder) Record(_ context.Context, d time.Duration) ([]float32, error) {
	f.calls++
	f.duration = d
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, 16), nil
}

// fakeTranscriber returns its scripted transcripts in order, then repeats the last.
type fakeTranscriber struct {
	script []string
	calls  int
	err    error
}

func (f *fakeTranscriber) Transcribe(context.Context, []float32) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(f.script) == 0 {
		return "", nil
	}
	i := f.calls
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	f.calls++
	return f.script[i], nil
}

type genCall struct {
	prompt    string
	maxTokens int
}

type fakeGenerator struct {
	calls []genCall
	reply string
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	f.calls = append(f.calls, genCall{prompt: prompt, maxTokens: maxTokens})
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeSynth struct {
	texts []string
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.texts = append(f.texts, text)
	return "response.wav", nil
}

type playCall struct {
	path   string
	device string // "" for the default player
}

type fakePlayer struct {
	calls []playCall
}

func (f *fakePlayer) PlayDefault(_ context.Context, path string) error {
	f.calls = append(f.calls, playCall{path: path})
	return nil
}

func (f *fakePlayer) PlayDevice(_ context.Context, path, device string) error {
	f.calls = append(f.calls, playCall{path: path, device: device})
	return nil
}

type fakeMixer struct {
	sinks    []string
	defaults []string
	listErr  error
	setErr   error
}

func (f *fakeMixer) SinkNames(context.Context) ([]string, error) {
	return f.sinks, f.listErr
}

func (f *fakeMixer) SetDefaultSink(_ context.Context, name string) error {
	f.defaults = append(f.defaults, name)
	return f.setErr
}

type fakeObserver struct {
	turns []Turn
}

func (f *fakeObserver) Observe(_ context.Context, t Turn) error {
	f.turns = append(f.turns, t)
	return nil
}

type rig struct {
	wake  *fakeWake
	rec   *fakeRecorder
	stt   *fakeTranscriber
	gen   *fakeGenerator
	synth *fakeSynth
	play  *fakePlayer
	mixer *fakeMixer
	obs   *fakeObserver
	loop  *Loop
}

func testOptions() Options {
	return Options{
		DefaultDevice:     "alsa_output",
		BluetoothPatterns: []string{"bluez_sink"},
		BluetoothKeywords: []string{"bluetooth"},
		SpeakerKeywords:   []string{"haut-parleur"},
		StatusKeywords:    []string{"sortie"},
		ExitPhrases:       []string{"quit", "exit", "stop", "au revoir"},
		PromptPrefix:      "Réponds uniquement en français : ",
		MaxTokens:         200,
		RecordDuration:    5 * time.Second,
		MaxFailures:       3,
		Phrases: Phrases{
			BluetoothOn:      "bt on",
			BluetoothMissing: "bt missing",
			Speakers:         "speakers",
			StatusBluetooth:  "status bt",
			StatusSpeakers:   "status speakers",
			Farewell:         "Au revoir, à bientôt !",
		},
	}
}

func newRig(transcripts ...string) *rig {
	r := &rig{
		wake:  &fakeWake{},
		rec:   &fakeRecorder{},
		stt:   &fakeTranscriber{script: transcripts},
		gen:   &fakeGenerator{reply: "Paris."},
		synth: &fakeSynth{},
		play:  &fakePlayer{},
		mixer: &fakeMixer{sinks: []string{"alsa_output.platform", "bluez_sink.AA_BB.a2dp_sink", "bluez_sink.CC_DD.a2dp_sink"}},
		obs:   &fakeObserver{},
	}
	r.loop = New(testOptions(), Deps{
		WakeWord:    r.wake,
		Recorder:    r.rec,
		Transcriber: r.stt,
		Generator:   r.gen,
		Synthesizer: r.synth,
		Player:      r.play,
		Mixer:       r.mixer,
		Observers:   []Observer{r.obs},
		Logger:      log.New(log.NewTextHandler(io.Discard, nil)),
	})
	return r
}
