package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is an in-process TTL cache, the default backend when Redis is not
// configured.
type Memory struct {
	store *gocache.Cache
}

func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{
		store: gocache.New(defaultTTL, 2*defaultTTL),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	value, ok := m.store.Get(key)
	if !ok {
		return nil, false
	}
	data, ok := value.([]byte)
	return data, ok
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.store.Set(key, value, ttl)
	return nil
}
