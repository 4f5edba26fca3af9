package reconcile

import (
	"context"
	"log/slog"
	"time"

	"github.com/kalambet/pulse/internal/aggregate"
)

const defaultTimeout = 30 * time.Second

// Generator is the generative service. Implemented by the engine backends.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reconciler calls the Generator with a bounded deadline and never fails:
// service errors, timeouts and unusable replies all become a fallback Result.
type Reconciler struct {
	gen     Generator
	timeout time.Duration
}

func New(gen Generator, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reconciler{gen: gen, timeout: timeout}
}

func (r *Reconciler) Reconcile(ctx context.Context, b aggregate.Bundle) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	raw, err := r.gen.Generate(ctx, BuildPrompt(b))
	if err != nil {
		slog.Warn("generative service failed, using fallback", "tenant", b.Profile.ID, "error", err)
		return Fallback(len(b.Dumps))
	}
	return ParseOrFallback(raw, len(b.Dumps))
}
