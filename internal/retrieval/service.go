package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"wikirag/internal/embedding"
	"wikirag/internal/metrics"
	"wikirag/internal/middleware"
	"wikirag/internal/vector"
)

var ErrEmptyQuery = errors.New("query must not be empty")

const (
	StrategyStore = "store"
	StrategyCache = "cache"
	StrategyNone  = "none"
)

type SearchResult struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Title    string            `json:"title,omitempty"`
	URL      string            `json:"url,omitempty"`
	Metadata map[string]string `json:"metadata"`
}

func fromVector(r vector.Result) SearchResult {
	return SearchResult{
		ID:       r.ID,
		Content:  r.Content,
		Score:    r.Score,
		Title:    r.SourceTitle,
		URL:      r.SourceURL,
		Metadata: r.MetadataMap(),
	}
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// StrategyEmbedder also reports which strategy produced a vector. Vectors
// from embedding.FallbackStrategy are never memoized, so a recovered runtime
// is used again on the next search.
type StrategyEmbedder interface {
	EmbedWithStrategy(ctx context.Context, text string) ([]float32, string, error)
}

type VectorStore interface {
	Search(ctx context.Context, query []float32, limit int) ([]vector.Result, error)
}

// CacheSearcher is the in-process chunk cache consulted when the store
// returns nothing.
type CacheSearcher interface {
	Search(query []float32, limit int) []vector.Result
}

type Options struct {
	TopK           int
	QueryCacheSize int
}

type Service struct {
	embedder Embedder
	store    VectorStore
	cache    CacheSearcher
	logger   *QueryLogger
	vectors  *lru.Cache[string, []float32]
	topK     atomic.Int64
}

func NewService(e Embedder, s VectorStore, c CacheSearcher, l *QueryLogger, opts Options) (*Service, error) {
	svc := &Service{embedder: e, store: s, cache: c, logger: l}
	svc.SetTopK(opts.TopK)
	if opts.QueryCacheSize > 0 {
		vectors, err := lru.New[string, []float32](opts.QueryCacheSize)
		if err != nil {
			return nil, fmt.Errorf("query cache: %w", err)
		}
		svc.vectors = vectors
	}
	return svc, nil
}

func (s *Service) TopK() int { return int(s.topK.Load()) }

// SetTopK changes the default result count. Values <= 0 reset it to 5.
func (s *Service) SetTopK(n int) {
	if n <= 0 {
		n = 5
	}
	s.topK.Store(int64(n))
}

// Search returns up to limit chunks most similar to query. A limit <= 0 uses
// the configured default. Store failures degrade to the chunk cache and are
// never returned to the caller.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.TopK()
	}

	start := time.Now()

	vec, err := s.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	strategy := StrategyStore
	found, err := s.store.Search(ctx, vec, limit)
	if err != nil {
		metrics.StoreErrors.WithLabelValues("search").Inc()
		slog.WarnContext(ctx, "vector store search failed, using chunk cache", "error", err)
		found = nil
	}

	if len(found) == 0 && s.cache != nil {
		strategy = StrategyCache
		found = s.cache.Search(vec, limit)
	}
	if len(found) == 0 {
		strategy = StrategyNone
	}

	results := make([]SearchResult, len(found))
	for i, r := range found {
		results[i] = fromVector(r)
	}

	elapsed := time.Since(start)
	metrics.SearchDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if s.logger != nil {
		s.logger.Log(QueryLogEntry{
			Query:         query,
			NumResults:    len(results),
			Strategy:      strategy,
			Duration:      elapsed,
			CorrelationID: middleware.GetCorrelationID(ctx),
		})
	}

	return results, nil
}

func (s *Service) embed(ctx context.Context, query string) ([]float32, error) {
	if s.vectors != nil {
		if vec, ok := s.vectors.Get(query); ok {
			return vec, nil
		}
	}

	var (
		vec      []float32
		strategy string
		err      error
	)
	if se, ok := s.embedder.(StrategyEmbedder); ok {
		vec, strategy, err = se.EmbedWithStrategy(ctx, query)
	} else {
		vec, err = s.embedder.Embed(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	if s.vectors != nil && strategy != embedding.FallbackStrategy {
		s.vectors.Add(query, vec)
	}
	return vec, nil
}
