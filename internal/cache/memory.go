package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory is a TTL-evicting in-process cache.
type Memory struct {
	inner *gocache.Cache
}

// NewMemory creates a memory cache with the given default TTL.
func NewMemory(defaultTTL time.Duration) *Memory {
	return &Memory{inner: gocache.New(defaultTTL, 2*defaultTTL)}
}

func (m *Memory) Get(key string) ([]byte, bool) {
	val, found := m.inner.Get(key)
	if !found {
		return nil, false
	}
	return val.([]byte), true
}

func (m *Memory) Set(key string, value []byte, ttl time.Duration) error {
	m.inner.Set(key, value, ttl)
	return nil
}

func (m *Memory) Delete(key string) error {
	m.inner.Delete(key)
	return nil
}

func (m *Memory) Clear() error {
	m.inner.Flush()
	return nil
}
