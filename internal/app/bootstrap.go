package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"wikirag/internal/adapter/bolt"
	"wikirag/internal/adapter/gemini"
	"wikirag/internal/adapter/ollama"
	"wikirag/internal/config"
	"wikirag/internal/embedding"
	"wikirag/internal/metrics"
	"wikirag/internal/vector"
)

type Dependencies struct {
	VectorStore *vector.Guarded
	Ollama      *ollama.Client
	Embedder    *embedding.Provider
	closers     []io.Closer
}

// Pinger is anything with a cheap liveness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type bootstrapOptions struct {
	healStore bool
}

type Option func(*bootstrapOptions)

// WithStoreHeal lets Bootstrap clear a locked store file and reopen it. Only
// the long-running server should ask for this: a lock is normally held by a
// live process, and healing deletes that process's data.
func WithStoreHeal() Option {
	return func(o *bootstrapOptions) { o.healStore = true }
}

// Bootstrap never fails on an unreachable inference runtime or an unusable
// store directory; both degrade instead.
func Bootstrap(ctx context.Context, cfg *config.Config, opts ...Option) (*Dependencies, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}

	var o bootstrapOptions
	for _, opt := range opts {
		opt(&o)
	}

	deps := &Dependencies{}

	// Vector store
	deps.VectorStore = OpenVectorStore(cfg.StorePath(), bolt.Options{LockTimeout: cfg.StoreLockTimeout}, o.healStore)
	deps.closers = append(deps.closers, deps.VectorStore)
	slog.InfoContext(ctx, "vector store ready", "mode", deps.VectorStore.Mode(), "path", cfg.StorePath())

	// Inference runtime
	deps.Ollama = ollama.NewClient(ollama.Config{
		BaseURL:           cfg.OllamaURL,
		EmbeddingModel:    cfg.EmbeddingModel,
		GenerationModel:   cfg.OllamaModel,
		EmbeddingTimeout:  cfg.EmbeddingTimeout,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	if err := EnsureProviderWithRetry(ctx, deps.Ollama, cfg.BootstrapRetryAttempts, cfg.BootstrapRetryDelay); err != nil {
		slog.WarnContext(ctx, "inference runtime unreachable, embeddings will use the hash fallback until it recovers",
			"url", cfg.OllamaURL, "error", err)
	}

	// Embedding chain
	strategies := []embedding.Strategy{deps.Ollama}
	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewEmbedder(ctx, cfg.GeminiAPIKey, cfg.GeminiEmbeddingModel)
		if err != nil {
			slog.WarnContext(ctx, "gemini embedder disabled", "error", err)
		} else {
			strategies = append(strategies, g)
			deps.closers = append(deps.closers, g)
		}
	}
	deps.Embedder = embedding.NewProvider(cfg.EmbeddingDimensions, strategies...)

	return deps, nil
}

func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// OpenVectorStore walks the backing chain until one opens: the durable file,
// the durable file again after healing a lock error (only when heal is set),
// a temporary file, and finally memory.
func OpenVectorStore(path string, opts bolt.Options, heal bool) *vector.Guarded {
	return openVectorStore(path, opts, heal, bolt.OpenTemp)
}

func openVectorStore(path string, opts bolt.Options, heal bool, openTemp func(bolt.Options) (*bolt.Store, error)) *vector.Guarded {
	s, err := bolt.Open(path, opts)
	if err == nil {
		return vector.NewGuarded(s, vector.ModeDurable)
	}
	metrics.StoreErrors.WithLabelValues("open").Inc()
	slog.Warn("durable vector store unavailable", "path", path, "error", err)

	switch {
	case bolt.IsLockError(err) && !heal:
		slog.Warn("vector store in use by another process, leaving it untouched", "path", path)
	case bolt.IsLockError(err):
		if herr := bolt.Heal(path); herr != nil {
			slog.Error("failed to heal vector store", "path", path, "error", herr)
		} else if s, err = bolt.Open(path, opts); err == nil {
			slog.Info("vector store healed", "path", path)
			return vector.NewGuarded(s, vector.ModeDurable)
		} else {
			slog.Warn("vector store still unavailable after heal", "path", path, "error", err)
		}
	}

	tmp, err := openTemp(opts)
	if err == nil {
		slog.Warn("using temporary vector store, data will not survive a restart", "path", tmp.Path())
		return vector.NewGuarded(tmp, vector.ModeTemporary)
	}
	metrics.StoreErrors.WithLabelValues("open").Inc()
	slog.Error("temporary vector store unavailable, falling back to memory", "error", err)

	return vector.NewGuarded(vector.NewMemoryStore(), vector.ModeMemory)
}

// EnsureProviderWithRetry pings p up to attempts times with a constant delay.
func EnsureProviderWithRetry(ctx context.Context, p Pinger, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = time.Millisecond
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := p.Ping(ctx); err != nil {
			slog.DebugContext(ctx, "provider ping failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("provider not reachable after %d attempts: %w", attempt, err)
	}
	return nil
}
