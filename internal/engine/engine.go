// Package engine provides the generative backends that turn a briefing
// prompt into the model's raw JSON reply.
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/kalambet/pulse/internal/config"
)

// Generator produces a raw completion for a single prompt. Implementations
// ask their backend for JSON output but do not validate it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Name identifies the backend and model, e.g. "ollama/llama3.1".
	Name() string
}

// Checker is implemented by generators that can verify their backend before
// the first run.
type Checker interface {
	Ready(ctx context.Context, w io.Writer) error
}

// New returns the generator selected by cfg.Engine.Backend.
func New(cfg config.Config) (Generator, error) {
	switch cfg.Engine.Backend {
	case "ollama", "":
		return NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Model), nil
	case "openrouter":
		if cfg.Proxy.OpenRouterAPIKey == "" {
			return nil, fmt.Errorf("engine: openrouter backend requires PULSE_OPENROUTER_API_KEY")
		}
		return NewOpenRouter(cfg.Proxy.OpenRouterAPIKey, cfg.Proxy.Model), nil
	default:
		return nil, fmt.Errorf("engine: unknown backend %q", cfg.Engine.Backend)
	}
}

// CheckReady runs g's readiness check when it has one.
func CheckReady(ctx context.Context, g Generator, w io.Writer) error {
	if c, ok := g.(Checker); ok {
		return c.Ready(ctx, w)
	}
	return nil
}
