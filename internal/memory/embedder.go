package memory

import (
	"context"
	"fmt"

	"github.com/kalambet/juskvi/internal/fault"
)

// EmbedEngine is a provider that can embed text with a named model.
type EmbedEngine interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder binds an EmbedEngine to one embedding model.
type Embedder struct {
	engine EmbedEngine
	model  string
}

// NewEmbedder creates an Embedder. A nil engine yields an Embedder that
// reports fault.ErrUnconfigured.
func NewEmbedder(e EmbedEngine, model string) *Embedder {
	return &Embedder{engine: e, model: model}
}

// Embed returns the embedding vector for text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.engine == nil {
		return nil, fmt.Errorf("embedding provider: %w", fault.ErrUnconfigured)
	}
	vec, err := e.engine.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fault.Transient(fmt.Errorf("embedding text: %w", err))
	}
	if len(vec) == 0 {
		return nil, fault.Transient(fmt.Errorf("embedding text: empty vector"))
	}
	return vec, nil
}
