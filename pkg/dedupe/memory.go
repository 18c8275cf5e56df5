package dedupe

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the in-process Store for tests and single-node dev runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	if expiry, exists := s.entries[key]; exists && expiry.After(now) {
		return false, nil
	}

	s.entries[key] = now.Add(ttl)

	return true, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
