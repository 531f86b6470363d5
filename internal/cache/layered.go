package cache

import "time"

// Layered reads through a memory layer into a disk layer, promoting
// disk hits back into memory.
type Layered struct {
	memory Cache
	disk   Cache
}

// NewLayered builds the standard memory-over-disk cache.
func NewLayered(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *Layered {
	return &Layered{
		memory: NewMemory(memoryTTL),
		disk:   NewDisk(diskDir, diskTTL),
	}
}

func (l *Layered) Get(key string) ([]byte, bool) {
	if val, ok := l.memory.Get(key); ok {
		return val, true
	}
	if val, ok := l.disk.Get(key); ok {
		_ = l.memory.Set(key, val, 0)
		return val, true
	}
	return nil, false
}

func (l *Layered) Set(key string, value []byte, ttl time.Duration) error {
	if err := l.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return l.disk.Set(key, value, ttl)
}

func (l *Layered) Delete(key string) error {
	if err := l.memory.Delete(key); err != nil {
		return err
	}
	return l.disk.Delete(key)
}

func (l *Layered) Clear() error {
	if err := l.memory.Clear(); err != nil {
		return err
	}
	return l.disk.Clear()
}
