package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"wikirag/internal/metrics"
	"wikirag/internal/text"
	"wikirag/internal/vector"
)

type Config struct {
	ChunkSize     int
	ChunkOverlap  int
	BatchSize     int
	MinChunkChars int
	BatchDelay    time.Duration
}

// Pipeline chunks, embeds and stores one page at a time. Re-ingesting a URL
// replaces its previous chunks.
type Pipeline struct {
	cfg      Config
	embedder Embedder
	store    VectorStore
	cache    *ChunkCache
}

func NewPipeline(cfg Config, e Embedder, s VectorStore, cache *ChunkCache) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cache == nil {
		cache = NewChunkCache()
	}
	return &Pipeline{cfg: cfg, embedder: e, store: s, cache: cache}
}

func (p *Pipeline) Cache() *ChunkCache { return p.cache }

func (p *Pipeline) Ingest(ctx context.Context, title, url, content string) error {
	_, err := p.IngestDocument(ctx, Document{Title: title, URL: url, Content: content})
	return err
}

// IngestDocument returns the number of chunks embedded. A store failure does
// not stop the page: the cache still serves its chunks, and the call returns
// the full count together with an error wrapping ErrPersist.
func (p *Pipeline) IngestDocument(ctx context.Context, doc Document) (int, error) {
	// 1. Drop old chunks (idempotency)
	if err := p.store.DeleteBySource(ctx, doc.URL); err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		slog.ErrorContext(ctx, "failed to delete old chunks", "url", doc.URL, "error", err)
	}
	if n := p.cache.RemoveSource(doc.URL); n > 0 {
		slog.DebugContext(ctx, "replaced cached chunks", "url", doc.URL, "count", n)
	}

	// 2. Chunk
	windows := text.Split(doc.Content, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	stem := text.SanitizeID(doc.Title)

	var (
		embedded, retained, unsaved int
		lastErr, persistErr         error
	)

	// 3. Embed and store batch by batch
	for start := 0; start < len(windows); start += p.cfg.BatchSize {
		if start > 0 {
			if err := pause(ctx, p.cfg.BatchDelay); err != nil {
				return embedded, err
			}
		}
		end := min(start+p.cfg.BatchSize, len(windows))

		var batch []Chunk
		for i := start; i < end; i++ {
			if text.IsNoise(windows[i], p.cfg.MinChunkChars) {
				continue
			}
			retained++

			vec, err := p.embedder.Embed(ctx, windows[i])
			if err != nil {
				lastErr = err
				slog.WarnContext(ctx, "failed to embed chunk", "url", doc.URL, "chunk_index", i, "error", err)
				continue
			}

			batch = append(batch, Chunk{
				ID:          stem + "_" + strconv.Itoa(i),
				Content:     windows[i],
				SourceURL:   doc.URL,
				SourceTitle: doc.Title,
				ChunkIndex:  i,
				Vector:      vec,
				Metadata:    chunkMetadata(doc, i),
			})
		}
		if len(batch) == 0 {
			continue
		}

		p.cache.Add(batch...)
		embedded += len(batch)
		metrics.IngestedChunks.Add(float64(len(batch)))

		records := make([]vector.Record, len(batch))
		for i, ch := range batch {
			records[i] = ch.Record()
		}
		if err := p.store.InsertBatch(ctx, records); err != nil {
			metrics.StoreErrors.WithLabelValues("insert").Inc()
			slog.ErrorContext(ctx, "failed to store chunk batch", "url", doc.URL, "batch_size", len(records), "error", err)
			unsaved += len(records)
			persistErr = err
		}
	}

	if retained > 0 && embedded == 0 {
		return 0, fmt.Errorf("%w for %s: %w", ErrEmbedding, doc.URL, lastErr)
	}
	if persistErr != nil {
		return embedded, fmt.Errorf("%w: %d of %d for %s: %w", ErrPersist, unsaved, embedded, doc.URL, persistErr)
	}

	slog.InfoContext(ctx, "page ingested", "title", doc.Title, "url", doc.URL, "chunks", embedded)
	return embedded, nil
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// DeleteSource removes every chunk of url from the store and the cache.
func (p *Pipeline) DeleteSource(ctx context.Context, url string) (int, error) {
	removed := p.cache.RemoveSource(url)
	if err := p.store.DeleteBySource(ctx, url); err != nil {
		metrics.StoreErrors.WithLabelValues("delete").Inc()
		return removed, fmt.Errorf("delete %s: %w", url, err)
	}
	return removed, nil
}
