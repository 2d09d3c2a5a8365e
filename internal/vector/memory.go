package vector

import (
	"context"
	"sync"
)

// MemoryStore is the ephemeral backend used when no on-disk store can be
// opened. Records are kept in insertion order so ranking ties are stable.
type MemoryStore struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) InsertBatch(_ context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if _, exists := s.records[r.ID]; !exists {
			s.order = append(s.order, r.ID)
		}
		s.records[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) Search(_ context.Context, query []float32, limit int) ([]Result, error) {
	s.mu.RLock()
	all := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.records[id])
	}
	s.mu.RUnlock()

	return Rank(all, query, limit), nil
}

func (s *MemoryStore) DeleteBySource(_ context.Context, sourceURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.order[:0]
	for _, id := range s.order {
		if s.records[id].SourceURL == sourceURL {
			delete(s.records, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return nil
}

func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *MemoryStore) Close() error { return nil }
