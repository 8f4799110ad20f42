package stt

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeris/internal/config"
)

func TestLastLine(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"empty", "", ""},
		{"blank lines", "\n  \n\t\n", ""},
		{"plain", "whisper_init: loading model\n Bonjour Aeris\n", "Bonjour Aeris"},
		{"timestamped", "[00:00:00.000 --> 00:00:04.000]   Quelle est la capitale de la France ?\n\n", "Quelle est la capitale de la France ?"},
		{"last wins", "first\nsecond\n", "second"},
		{"timestamp only", "[00:00:00.000 --> 00:00:01.000]\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LastLine(tt.out))
		})
	}
}

type recorded struct {
	name string
	args []string
}

func TestExecTranscriber(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clips", "temp.wav")

	var got recorded
	run := func(_ context.Context, name string, args ...string) ([]byte, error) {
		got = recorded{name: name, args: args}
		return []byte("[00:00:00.000 --> 00:00:05.000]  Peux-tu activer le bluetooth\n"), nil
	}

	tr, err := NewExecTranscriber(config.STTConfig{
		Command:   `./whisper.cpp/main --threads 2`,
		ModelPath: "whisper.cpp/models/ggml-tiny.bin",
		Language:  "fr",
		InputPath: input,
	}, 16000, run)
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), []float32{0, 0.5, -0.5, 2})
	require.NoError(t, err)
	assert.Equal(t, "Peux-tu activer le bluetooth", text)

	assert.Equal(t, "./whisper.cpp/main", got.name)
	assert.Equal(t, []string{"--threads", "2", "-m", "whisper.cpp/models/ggml-tiny.bin", "-l", "fr", "-f", input}, got.args)

	f, err := os.Open(input)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 16000, int(dec.SampleRate))
	assert.Equal(t, 1, int(dec.NumChans))
	assert.Equal(t, []int{0, 16383, -16383, 32767}, buf.Data)
}

func TestExecTranscriberIgnoresExitStatus(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return []byte("au revoir\n"), &exec.ExitError{}
	}

	tr, err := NewExecTranscriber(config.STTConfig{Command: "whisper", InputPath: filepath.Join(t.TempDir(), "in.wav")}, 16000, run)
	require.NoError(t, err)

	text, err := tr.Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "au revoir", text)
}

func TestExecTranscriberStartFailure(t *testing.T) {
	run := func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exec: \"whisper\": executable file not found in $PATH")
	}

	tr, err := NewExecTranscriber(config.STTConfig{Command: "whisper", InputPath: filepath.Join(t.TempDir(), "in.wav")}, 16000, run)
	require.NoError(t, err)

	_, err = tr.Transcribe(context.Background(), []float32{0})
	require.Error(t, err)
}

func TestNewExecTranscriberRejectsEmptyCommand(t *testing.T) {
	_, err := NewExecTranscriber(config.STTConfig{Command: "  "}, 16000, nil)
	require.Error(t, err)

	_, err = NewExecTranscriber(config.STTConfig{Command: `whisper "unterminated`}, 16000, nil)
	require.Error(t, err)
}
