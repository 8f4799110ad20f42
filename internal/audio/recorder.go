// Package audio captures the utterance that follows the wake-word.
package audio

import (
	"context"
	"errors"
	log "log/slog"
	"math"
	"time"

	"github.com/gordonklaus/portaudio"
)

const frameSize = 1024

// Recorder reads a fixed-length mono clip from the default input device.
type Recorder struct {
	sampleRate int
}

func NewRecorder(sampleRate int) *Recorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &Recorder{sampleRate: sampleRate}
}

func (r *Recorder) Init() error {
	return portaudio.Initialize()
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// Record blocks for d and returns d*sampleRate samples in [-1, 1]. A
// cancelled context stops the capture early with ctx.Err().
func (r *Recorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	if d <= 0 {
		return nil, errors.New("record duration must be positive")
	}

	total := int(float64(r.sampleRate) * d.Seconds())
	buf := make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(r.sampleRate), len(buf), buf)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, err
	}
	defer stream.Stop()

	out := make([]float32, 0, total+frameSize)
	for len(out) < total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := stream.Read(); err != nil {
			return nil, err
		}
		out = append(out, buf...)
	}
	out = out[:total]

	log.Debug("Recorded", "samples", len(out), "rms", frameRMS(out))
	return out, nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
