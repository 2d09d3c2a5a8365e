package settings

import (
	"context"
	"sync"
)

// MemoryRepo keeps settings for the lifetime of the process. Restarts fall
// back to the environment configuration.
type MemoryRepo struct {
	mu  sync.RWMutex
	cur Settings
}

func NewMemoryRepo(initial Settings) *MemoryRepo {
	return &MemoryRepo{cur: initial}
}

func (r *MemoryRepo) Get(_ context.Context) (*Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.cur
	return &s, nil
}

func (r *MemoryRepo) Update(_ context.Context, s *Settings) error {
	r.mu.Lock()
	r.cur = *s
	r.mu.Unlock()
	return nil
}
