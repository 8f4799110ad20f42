package audio

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"aeris/pkg/audioconv"
)

// FileRecorder replays a clip from disk in place of the microphone. The clip
// is cut or padded with silence to the requested duration.
type FileRecorder struct {
	path       string
	sampleRate int
}

func NewFileRecorder(path string, sampleRate int) *FileRecorder {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	return &FileRecorder{path: path, sampleRate: sampleRate}
}

func (r *FileRecorder) Record(ctx context.Context, d time.Duration) ([]float32, error) {
	total := int(float64(r.sampleRate) * d.Seconds())

	pcm, err := audioconv.ConvertFile(ctx, r.path, audioconv.Options{
		SampleRate: r.sampleRate,
		MaxSamples: total,
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", r.path, err)
	}

	if len(pcm) < total {
		pcm = append(pcm, make([]float32, total-len(pcm))...)
	}
	log.Debug("Replayed clip", "path", r.path, "samples", len(pcm))
	return pcm, nil
}
