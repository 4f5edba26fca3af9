package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/kalambet/pulse/internal/proxy"
)

// OpenRouterGenerator generates with a hosted model through OpenRouter.
type OpenRouterGenerator struct {
	client *proxy.Client
	model  string
}

func NewOpenRouter(apiKey, model string) *OpenRouterGenerator {
	return &OpenRouterGenerator{client: proxy.NewClient(apiKey), model: model}
}

func newOpenRouterWithClient(c *proxy.Client, model string) *OpenRouterGenerator {
	return &OpenRouterGenerator{client: c, model: model}
}

func (g *OpenRouterGenerator) Name() string { return "openrouter/" + g.model }

func (g *OpenRouterGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temp := 0.4
	return g.client.Complete(ctx, proxy.CompletionRequest{
		Model:          g.model,
		Messages:       []proxy.Message{{Role: "user", Content: prompt}},
		Temperature:    &temp,
		ResponseFormat: &proxy.ResponseFormat{Type: "json_object"},
	})
}

// Ready verifies the API key by listing models.
func (g *OpenRouterGenerator) Ready(ctx context.Context, w io.Writer) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openrouter: %w", err)
	}
	fmt.Fprintf(w, "model %s: ready\n", g.model)
	return nil
}
