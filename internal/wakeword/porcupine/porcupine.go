// Package porcupine listens to the default microphone for a Picovoice
// Porcupine keyword.
package porcupine

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"

	porcupine "github.com/Picovoice/porcupine/binding/go/v3"
	"github.com/gordonklaus/portaudio"

	"aeris/internal/config"
)

type Detector struct {
	engine porcupine.Porcupine
}

func New(cfg config.WakeConfig) (*Detector, error) {
	if cfg.AccessKey == "" {
		return nil, errors.New("porcupine access key not set")
	}

	engine := porcupine.Porcupine{
		AccessKey:     cfg.AccessKey,
		ModelPath:     cfg.ModelPath,
		Sensitivities: []float32{cfg.Sensitivity},
	}
	if cfg.KeywordPath != "" {
		engine.KeywordPaths = []string{cfg.KeywordPath}
	} else {
		engine.BuiltInKeywords = []porcupine.BuiltInKeyword{porcupine.BuiltInKeyword(cfg.Keyword)}
	}

	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("init porcupine: %w", err)
	}
	if err := portaudio.Initialize(); err != nil {
		engine.Delete()
		return nil, fmt.Errorf("init portaudio: %w", err)
	}

	log.Debug("Porcupine ready", "version", porcupine.Version, "frame", porcupine.FrameLength, "rate", porcupine.SampleRate)
	return &Detector{engine: engine}, nil
}

// Wait opens the microphone and feeds frames to Porcupine until the keyword
// is detected. The stream is closed on return so the recorder can take the
// device.
func (d *Detector) Wait(ctx context.Context) error {
	frame := make([]int16, porcupine.FrameLength)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(porcupine.SampleRate), len(frame), frame)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start input: %w", err)
	}
	defer stream.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
			return fmt.Errorf("read input: %w", err)
		}

		idx, err := d.engine.Process(frame)
		if err != nil {
			return fmt.Errorf("process frame: %w", err)
		}
		if idx >= 0 {
			log.Info("Wake-word detected")
			return nil
		}
	}
}

func (d *Detector) Close() error {
	portaudio.Terminate()
	return d.engine.Delete()
}
