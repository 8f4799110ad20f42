// Package tts turns reply text into an audio file that the player can route
// to the active output device.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"

	"aeris/internal/config"
)

// Runner runs name with args, feeding stdin to it.
type Runner func(ctx context.Context, stdin []byte, name string, args ...string) error

// ExecSynthesizer runs an offline synthesizer such as piper. The text goes to
// stdin; {text} and {output} in the arguments are replaced before the call.
type ExecSynthesizer struct {
	cmd    []string
	output string
	run    Runner
}

func NewExecSynthesizer(cfg config.TTSConfig, run Runner) (*ExecSynthesizer, error) {
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("tts command is empty")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("tts output path is empty")
	}
	if run == nil {
		run = execRun
	}
	return &ExecSynthesizer{cmd: args, output: cfg.OutputPath, run: run}, nil
}

// Synthesize renders text and returns the path of the audio artifact. The
// artifact is overwritten on every call. Line breaks are folded into spaces
// since piper renders each stdin line to the output file separately.
func (s *ExecSynthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "", errors.New("nothing to synthesize")
	}

	if dir := filepath.Dir(s.output); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create tts output dir: %w", err)
		}
	}

	r := strings.NewReplacer("{text}", text, "{output}", s.output)
	args := make([]string, 0, len(s.cmd)-1)
	for _, a := range s.cmd[1:] {
		args = append(args, r.Replace(a))
	}

	log.Debug("Synthesizing", "cmd", s.cmd[0], "chars", len(text))
	if err := s.run(ctx, []byte(text+"\n"), s.cmd[0], args...); err != nil {
		return "", fmt.Errorf("run %s: %w", s.cmd[0], err)
	}

	if _, err := os.Stat(s.output); err != nil {
		return "", fmt.Errorf("tts output missing: %w", err)
	}
	return s.output, nil
}

func execRun(ctx context.Context, stdin []byte, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}
