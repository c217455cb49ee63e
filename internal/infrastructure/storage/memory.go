package storage

import (
	"context"

	"balance_aggregator/internal/app/port"

	"github.com/patrickmn/go-cache"
)

// MemoryStore is a process-local store backed by go-cache without expiration.
type MemoryStore struct {
	c *cache.Cache
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{c: cache.New(cache.NoExpiration, 0)}
}

// Get implements port.KeyValueStore.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := s.c.Get(key)
	if !ok {
		return nil, port.ErrNotFound
	}
	data := v.([]byte)
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set implements port.KeyValueStore.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	data := make([]byte, len(value))
	copy(data, value)
	s.c.Set(key, data, cache.NoExpiration)
	return nil
}

// Delete implements port.KeyValueStore.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.c.Delete(key)
	return nil
}
