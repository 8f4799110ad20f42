package audioconv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func writeWAV(t *testing.T, path string, rate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
		Data:           data,
	}))
	require.NoError(t, enc.Close())
}

func TestConvertWAVStereo8k(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	// four stereo frames; channels cancel out on the first two
	writeWAV(t, path, 8000, 2, []int{16384, -16384, 16384, -16384, 16384, 16384, 16384, 16384})

	pcm, err := ConvertFile(context.Background(), path, Options{})
	require.NoError(t, err)
	require.Len(t, pcm, 8)

	assert.InDelta(t, 0, pcm[0], 1e-6)
	assert.InDelta(t, 0.5, pcm[len(pcm)-1], 1e-3)
}

func TestConvertMaxSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	writeWAV(t, path, 16000, 1, make([]int, 1600))

	pcm, err := ConvertFile(context.Background(), path, Options{SampleRate: 16000, MaxSamples: 100})
	require.NoError(t, err)
	assert.Len(t, pcm, 100)
}

func TestConvertSniffsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.raw")
	writeWAV(t, path, 16000, 1, []int{0, 32767})

	pcm, err := ConvertFile(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Len(t, pcm, 2)
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()

	junk := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(junk, []byte("hello world"), 0o644))
	_, err := ConvertFile(context.Background(), junk, Options{})
	require.Error(t, err)

	_, err = ConvertFile(context.Background(), filepath.Join(dir, "missing.wav"), Options{})
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ConvertFile(ctx, junk, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDownmix(t *testing.T) {
	assert.Equal(t, []float32{1, 2}, Downmix([]float32{1, 2}, 1))
	assert.Equal(t, []float32{0.5, -1}, Downmix([]float32{0, 1, -1, -1}, 2))
}

func TestResampleLength(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.SliceOfN(rapid.Float32Range(-1, 1), 1, 2000).Draw(t, "in")
		inRate := rapid.SampledFrom([]int{8000, 16000, 22050, 44100, 48000}).Draw(t, "inRate")

		out := Resample(in, inRate, 16000)
		want := len(in)
		if inRate != 16000 {
			want = int(float64(len(in))*16000/float64(inRate) + 0.999999)
		}
		if d := len(out) - want; d < -1 || d > 1 {
			t.Fatalf("len %d, want about %d", len(out), want)
		}
		for _, v := range out {
			if v < -1 || v > 1 {
				t.Fatalf("sample %v out of range", v)
			}
		}
	})
}
