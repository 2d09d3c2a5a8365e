package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"wikirag/internal/metrics"
)

// Strategy is one remote embedding source in the fallback chain.
type Strategy interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider tries each strategy in order and falls back to HashVector, so
// Embed always yields a vector of the configured dimension.
type Provider struct {
	strategies []Strategy
	dim        int
}

func NewProvider(dim int, strategies ...Strategy) *Provider {
	return &Provider{strategies: strategies, dim: dim}
}

func (p *Provider) Dimensions() int { return p.dim }

// FallbackStrategy names vectors produced by HashVector.
const FallbackStrategy = "hash"

// Embed never returns a non-nil error; the signature matches the Embedder
// interfaces of its callers.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := p.EmbedWithStrategy(ctx, text)
	return vec, err
}

// EmbedWithStrategy is Embed plus the name of the strategy that produced the
// vector, FallbackStrategy when every remote strategy failed.
func (p *Provider) EmbedWithStrategy(ctx context.Context, text string) ([]float32, string, error) {
	for _, s := range p.strategies {
		vec, err := s.Embed(ctx, text)
		if err == nil {
			err = p.check(vec)
		}
		if err == nil {
			return vec, s.Name(), nil
		}

		metrics.EmbeddingFallbacks.WithLabelValues(s.Name()).Inc()
		slog.WarnContext(ctx, "embedding strategy failed, trying next", "strategy", s.Name(), "error", err)
	}
	return HashVector(text, p.dim), FallbackStrategy, nil
}

func (p *Provider) check(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty embedding")
	}
	if len(vec) != p.dim {
		return fmt.Errorf("embedding has %d dimensions, want %d", len(vec), p.dim)
	}
	return nil
}
