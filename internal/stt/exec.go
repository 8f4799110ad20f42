package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/mattn/go-shellwords"

	"aeris/internal/config"
)

// Runner runs a command and returns its stdout, even when it exits non-zero.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecTranscriber shells out to a whisper.cpp style binary:
//
//	<command> -m <model> -l <language> -f <input.wav>
type ExecTranscriber struct {
	cmd        []string
	model      string
	language   string
	input      string
	sampleRate int
	run        Runner
}

func NewExecTranscriber(cfg config.STTConfig, sampleRate int, run Runner) (*ExecTranscriber, error) {
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("stt command is empty")
	}
	if run == nil {
		run = execRun
	}

	return &ExecTranscriber{
		cmd:        args,
		model:      cfg.ModelPath,
		language:   cfg.Language,
		input:      cfg.InputPath,
		sampleRate: sampleRate,
		run:        run,
	}, nil
}

// Transcribe writes pcm to the input WAV and returns the last non-empty line
// the binary printed, or "" when it printed nothing.
func (t *ExecTranscriber) Transcribe(ctx context.Context, pcm []float32) (string, error) {
	if err := WriteWAV(t.input, pcm, t.sampleRate); err != nil {
		return "", err
	}

	args := append([]string{}, t.cmd[1:]...)
	if t.model != "" {
		args = append(args, "-m", t.model)
	}
	if t.language != "" {
		args = append(args, "-l", t.language)
	}
	args = append(args, "-f", t.input)

	out, err := t.run(ctx, t.cmd[0], args...)
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("run %s: %w", t.cmd[0], err)
		}
		log.Warn("Transcriber exited with error", "cmd", t.cmd[0], "err", err)
	}

	return LastLine(string(out)), nil
}

var timestampRe = regexp.MustCompile(`^\[[0-9:.]+\s*-->\s*[0-9:.]+\]\s*`)

// LastLine picks the transcript out of whisper output: the last line with
// text in it, without the segment timestamp prefix.
func LastLine(out string) string {
	lines := strings.Split(out, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(timestampRe.ReplaceAllString(strings.TrimSpace(lines[i]), ""))
		if line != "" {
			return line
		}
	}
	return ""
}

// WriteWAV stores mono float32 samples as 16-bit PCM.
func WriteWAV(path string, pcm []float32, sampleRate int) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create wav dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, len(pcm)),
	}
	for i, s := range pcm {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		buf.Data[i] = int(s * 32767)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
