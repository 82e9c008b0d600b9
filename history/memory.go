package history

import (
	"context"

	"github.com/patrickmn/go-cache"
)

type MemoryBackend struct {
	cache *cache.Cache
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{cache: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryBackend) Load(_ context.Context, key string) ([]Entry, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, nil
	}
	stored := v.([]Entry)
	return append([]Entry(nil), stored...), nil
}

func (m *MemoryBackend) Save(_ context.Context, key string, entries []Entry) error {
	m.cache.Set(key, append([]Entry(nil), entries...), cache.NoExpiration)
	return nil
}
