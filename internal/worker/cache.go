package worker

import (
	"slices"
	"strings"
	"sync"

	"wikirag/internal/vector"
)

// ChunkCache holds every chunk embedded in this process. Retrieval scans it
// when the vector store has nothing to offer.
type ChunkCache struct {
	mu     sync.RWMutex
	chunks []Chunk
}

func NewChunkCache() *ChunkCache {
	return &ChunkCache{}
}

func (c *ChunkCache) Add(chunks ...Chunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, chunks...)
}

// RemoveSource drops all chunks for url and returns how many were removed.
func (c *ChunkCache) RemoveSource(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.chunks[:0]
	removed := 0
	for _, ch := range c.chunks {
		if ch.SourceURL == url {
			removed++
			continue
		}
		kept = append(kept, ch)
	}
	clear(c.chunks[len(kept):])
	c.chunks = kept
	return removed
}

func (c *ChunkCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.chunks)
}

// Search ranks cached chunks by cosine similarity to query.
func (c *ChunkCache) Search(query []float32, limit int) []vector.Result {
	c.mu.RLock()
	records := make([]vector.Record, 0, len(c.chunks))
	for _, ch := range c.chunks {
		records = append(records, ch.Record())
	}
	c.mu.RUnlock()

	return vector.Rank(records, query, limit)
}

// SourceSummary describes one ingested page held in the cache.
type SourceSummary struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Chunks int    `json:"chunks"`
}

// Sources groups cached chunks by source URL, ordered by URL.
func (c *ChunkCache) Sources() []SourceSummary {
	c.mu.RLock()
	byURL := make(map[string]*SourceSummary)
	for _, ch := range c.chunks {
		s, ok := byURL[ch.SourceURL]
		if !ok {
			s = &SourceSummary{URL: ch.SourceURL, Title: ch.SourceTitle}
			byURL[ch.SourceURL] = s
		}
		s.Chunks++
	}
	c.mu.RUnlock()

	out := make([]SourceSummary, 0, len(byURL))
	for _, s := range byURL {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b SourceSummary) int { return strings.Compare(a.URL, b.URL) })
	return out
}
