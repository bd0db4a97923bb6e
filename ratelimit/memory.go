package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps hits in process memory. Limits are per process.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: map[string][]time.Time{}}
}

func (s *MemoryStore) Increment(_ context.Context, key string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits[key] = append(s.hits[key], at)
	return nil
}

func (s *MemoryStore) Prune(_ context.Context, key string, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.hits[key]
	kept := hits[:0]
	for _, at := range hits {
		if !at.Before(before) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(s.hits, key)
		return nil
	}
	s.hits[key] = kept
	return nil
}

func (s *MemoryStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits[key]), nil
}
