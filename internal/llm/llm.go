// Package llm holds the language model backends. Each one answers a single
// prompt with a bounded number of tokens.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aeris/internal/config"
	"aeris/internal/proxy"
)

// ErrEmptyCompletion is returned when the model answers with nothing to say.
var ErrEmptyCompletion = errors.New("empty completion")

type Generator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

func New(cfg config.LLMConfig) (Generator, error) {
	switch cfg.Mode {
	case "ollama":
		client := &http.Client{Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond}
		return NewOllama(cfg.Endpoint, cfg.Model, cfg.Temperature, client), nil
	case "openai":
		var client *http.Client
		if cfg.Proxy != "" {
			c, err := proxy.NewSocksClient(cfg.Proxy, time.Duration(cfg.TimeoutMS)*time.Millisecond)
			if err != nil {
				return nil, fmt.Errorf("socks proxy %s: %w", cfg.Proxy, err)
			}
			client = c
		}
		return NewOpenAI(cfg.APIKey, cfg.Endpoint, cfg.Model, cfg.Temperature, client), nil
	case "exec":
		return NewExec(cfg.Command, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unknown llm mode %q", cfg.Mode)
	}
}
