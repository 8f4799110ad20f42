package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Exec feeds {"prompt","max_tokens","temperature"} to a command on stdin and
// reads {"content"} from its stdout.
type Exec struct {
	cmd         []string
	temperature float64
	run         func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

type execRequest struct {
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

type execResponse struct {
	Content string `json:"content"`
}

func NewExec(command string, temperature float64) (*Exec, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse llm command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("llm command empty")
	}
	return &Exec{cmd: args, temperature: temperature, run: runWithStdin}, nil
}

func (g *Exec) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	input, err := json.Marshal(execRequest{Prompt: prompt, MaxTokens: maxTokens, Temperature: g.temperature})
	if err != nil {
		return "", err
	}

	output, err := g.run(ctx, input, g.cmd[0], g.cmd[1:]...)
	if err != nil {
		return "", fmt.Errorf("llm exec command failed: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode llm exec response: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

func runWithStdin(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	return cmd.Output()
}
