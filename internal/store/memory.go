package store

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps results in process. Used when no database is configured.
type MemoryStore struct {
	mu      sync.Mutex
	results []Result
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(_ context.Context, r Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.results {
		if have.MatchID == r.MatchID {
			return nil
		}
	}
	r.ID = uint(len(s.results) + 1)
	r.Players = slices.Clone(r.Players)
	s.results = append(s.results, r)
	return nil
}

func (s *MemoryStore) Recent(_ context.Context, limit int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.results)
	slices.SortStableFunc(out, func(a, b Result) int { return b.EndedAt.Compare(a.EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
