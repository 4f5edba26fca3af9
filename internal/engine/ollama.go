package engine

import (
	"context"
	"io"

	"github.com/kalambet/pulse/internal/ollama"
)

// briefingSchema constrains Ollama's structured output to the reply shape
// the reconciler parses.
var briefingSchema = &ollama.Schema{
	Type: "object",
	Properties: map[string]ollama.SchemaProperty{
		"completed_tasks": {Type: "array", Description: "tasks to close: {id, status}"},
		"new_projects":    {Type: "array", Description: "projects to create: {name, tag}"},
		"new_people":      {Type: "array", Description: "people to remember: {name, role, weight}"},
		"new_tasks":       {Type: "array", Description: "tasks to create: {title, priority, project_name}"},
		"logs":            {Type: "array", Description: "log entries: {type, content}"},
		"briefing":        {Type: "string", Description: "the message sent to the user"},
	},
	Required: []string{"briefing"},
}

// OllamaGenerator generates with a local Ollama model.
type OllamaGenerator struct {
	client *ollama.Client
	model  string
}

func NewOllama(baseURL, model string) *OllamaGenerator {
	return &OllamaGenerator{client: ollama.New(baseURL), model: model}
}

func (g *OllamaGenerator) Name() string { return "ollama/" + g.model }

func (g *OllamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.client.Chat(ctx, g.model, []ollama.Message{{Role: "user", Content: prompt}}, briefingSchema)
}

// Ready pulls the model if needed and warms it up.
func (g *OllamaGenerator) Ready(ctx context.Context, w io.Writer) error {
	return ollama.EnsureReady(ctx, g.client, g.model, w)
}
