// Package cache provides the snapshot cache used by the statistics
// command: a small memory layer backed by an optional disk layer.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores opaque byte values under string keys with a TTL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key from an arbitrary identifier such as
// "repo|include_pending".
func Key(id string) string {
	sum := sha256.Sum256([]byte(id))
	return "kathana:v1:" + hex.EncodeToString(sum[:])
}
