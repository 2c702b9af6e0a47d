package mapping

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory CacheStore. It is safe for concurrent use;
// entries are lost on restart. For persistence use the BigQuery-backed
// store in internal/infra/bigquery.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[CacheKey]*CacheEntry
}

// NewMemoryStore creates an empty in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[CacheKey]*CacheEntry)}
}

// Get implements CacheStore.
func (s *MemoryStore) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}

	// Return a copy to keep stored entries immutable.
	cp := *entry
	return &cp, nil
}

// Put implements CacheStore.
func (s *MemoryStore) Put(ctx context.Context, entry *CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *entry
	s.entries[entry.Key] = &cp
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ CacheStore = (*MemoryStore)(nil)
