// Package notify plays short sound cues through the default sound card.
package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// Earcon is the chime played after the wake-word.
type Earcon struct {
	path string

	once    sync.Once
	rate    beep.SampleRate
	initErr error
}

func NewEarcon(path string) *Earcon {
	return &Earcon{path: path}
}

// Play decodes the file and blocks until it has been played or ctx is done.
func (e *Earcon) Play(ctx context.Context) error {
	f, err := os.Open(e.path)
	if err != nil {
		return err
	}

	streamer, format, err := decode(f, e.path)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", e.path, err)
	}
	defer streamer.Close()

	e.once.Do(func() {
		e.rate = format.SampleRate
		e.initErr = speaker.Init(e.rate, e.rate.N(time.Second/10))
	})
	if e.initErr != nil {
		return fmt.Errorf("init speaker: %w", e.initErr)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != e.rate {
		s = beep.Resample(4, format.SampleRate, e.rate, streamer)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return wav.Decode(f)
	case ".ogg", ".oga":
		return vorbis.Decode(f)
	default:
		return mp3.Decode(f)
	}
}
