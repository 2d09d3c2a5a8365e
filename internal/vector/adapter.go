package vector

import (
	"context"
	"sync"
)

// Guarded serializes writes to a backend through one handle. Searches and
// counts share a read lock, so a search never observes half of a batch.
type Guarded struct {
	mu    sync.RWMutex
	store Store
	mode  Mode
}

func NewGuarded(store Store, mode Mode) *Guarded {
	return &Guarded{store: store, mode: mode}
}

func (g *Guarded) Mode() Mode { return g.mode }

func (g *Guarded) InsertBatch(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.InsertBatch(ctx, records)
}

func (g *Guarded) Search(ctx context.Context, query []float32, limit int) ([]Result, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.Search(ctx, query, limit)
}

func (g *Guarded) DeleteBySource(ctx context.Context, sourceURL string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.DeleteBySource(ctx, sourceURL)
}

func (g *Guarded) Count(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store.Count(ctx)
}

func (g *Guarded) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.store.Close()
}
