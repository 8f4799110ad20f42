// Package session drives the assistant: wait for the wake-word, capture one
// utterance, classify it and dispatch it to a command or to the language model.
package session

import (
	"context"
	"strings"
	"time"

	"aeris/internal/config"
)

// State is the only mutable session data. Handlers receive it by value and
// return the next one.
type State struct {
	Device string
}

type Phase int

const (
	AwaitingWakeWord Phase = iota
	Processing
	Terminated
)

func (p Phase) String() string {
	switch p {
	case AwaitingWakeWord:
		return "awaiting_wakeword"
	case Processing:
		return "processing"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// WakeWord blocks until the trigger phrase is heard.
type WakeWord interface {
	Wait(ctx context.Context) error
}

// Recorder captures a mono clip of fixed duration.
type Recorder interface {
	Record(ctx context.Context, d time.Duration) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Synthesizer renders text into an audio file and returns its path.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

type Player interface {
	PlayDefault(ctx context.Context, path string) error
	PlayDevice(ctx context.Context, path, device string) error
}

// Mixer is the OS audio subsystem: sink enumeration and default sink.
type Mixer interface {
	SinkNames(ctx context.Context) ([]string, error)
	SetDefaultSink(ctx context.Context, name string) error
}

// Observer receives every processed turn. Errors are logged, never fatal.
type Observer interface {
	Observe(ctx context.Context, t Turn) error
}

// Turn is the outcome of one processed utterance.
type Turn struct {
	ID         string
	Transcript string
	Command    string
	Reply      string
	Device     string
	Err        error
	At         time.Time
}

type Phrases struct {
	BluetoothOn      string
	BluetoothMissing string
	Speakers         string
	StatusBluetooth  string
	StatusSpeakers   string
	Farewell         string
}

type Options struct {
	DefaultDevice     string
	BluetoothPatterns []string

	BluetoothKeywords []string
	SpeakerKeywords   []string
	StatusKeywords    []string
	ExitPhrases       []string

	PromptPrefix   string
	MaxTokens      int
	RecordDuration time.Duration
	MaxFailures    int

	Phrases Phrases
}

func OptionsFromConfig(cfg config.Config) Options {
	p := cfg.Session.Phrases
	return Options{
		DefaultDevice:     cfg.Audio.DefaultSink,
		BluetoothPatterns: cfg.Audio.BluetoothPatterns,
		BluetoothKeywords: cfg.Session.BluetoothKeywords,
		SpeakerKeywords:   cfg.Session.SpeakerKeywords,
		StatusKeywords:    cfg.Session.StatusKeywords,
		ExitPhrases:       cfg.Session.ExitPhrases,
		PromptPrefix:      cfg.Session.PromptPrefix,
		MaxTokens:         cfg.Session.MaxTokens,
		RecordDuration:    time.Duration(cfg.Capture.DurationMS) * time.Millisecond,
		MaxFailures:       cfg.Session.MaxFailures,
		Phrases: Phrases{
			BluetoothOn:      p.BluetoothOn,
			BluetoothMissing: p.BluetoothMissing,
			Speakers:         p.Speakers,
			StatusBluetooth:  p.StatusBluetooth,
			StatusSpeakers:   p.StatusSpeakers,
			Farewell:         p.Farewell,
		},
	}
}

// IsBluetooth reports whether a sink identifier follows one of the Bluetooth
// naming patterns.
func IsBluetooth(device string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(device, p) {
			return true
		}
	}
	return false
}
