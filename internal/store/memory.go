package store

import (
	"context"
	"sync"
	"time"

	"github.com/onnwee/searchrank/internal/ranking"
)

type entry struct {
	data    []byte
	expires time.Time
}

// MemoryStore is an in-process Store. Entries are kept CBOR-encoded, like in
// Redis, and expire after the configured TTL. Thread-safe for concurrent access.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an in-memory store. A ttl <= 0 keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the info stored under id, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id string) (ranking.StoredInfo, error) {
	if id == "" {
		return ranking.StoredInfo{}, ErrEmptyID
	}
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()

	if !ok || (!e.expires.IsZero() && s.now().After(e.expires)) {
		return ranking.StoredInfo{}, ErrNotFound
	}
	return Decode(e.data)
}

// Put stores info under id, replacing any previous value.
func (s *MemoryStore) Put(ctx context.Context, id string, info ranking.StoredInfo) error {
	if id == "" {
		return ErrEmptyID
	}
	data, err := Encode(info)
	if err != nil {
		return err
	}

	e := entry{data: data}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return nil
}

// Cleanup removes expired entries to prevent memory leaks.
func (s *MemoryStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if !e.expires.IsZero() && now.After(e.expires) {
			delete(s.entries, id)
		}
	}
}

// Len returns the number of entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
