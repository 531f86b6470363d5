package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Disk persists cache entries as one JSON file per key, so snapshots
// survive between CLI invocations.
type Disk struct {
	dir        string
	defaultTTL time.Duration
}

// NewDisk creates a disk cache rooted at dir.
func NewDisk(dir string, defaultTTL time.Duration) *Disk {
	return &Disk{dir: dir, defaultTTL: defaultTTL}
}

type diskEntry struct {
	Value   []byte    `json:"value"`
	Expires time.Time `json:"expires"`
}

func (d *Disk) file(key string) string {
	return filepath.Join(d.dir, key+".json")
}

func (d *Disk) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(d.file(key))
	if err != nil {
		return nil, false
	}
	var entry diskEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if time.Now().After(entry.Expires) {
		_ = os.Remove(d.file(key))
		return nil, false
	}
	return entry.Value, true
}

func (d *Disk) Set(key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = d.defaultTTL
	}
	data, err := json.Marshal(diskEntry{Value: value, Expires: time.Now().Add(ttl)})
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	return os.WriteFile(d.file(key), data, 0o644)
}

func (d *Disk) Delete(key string) error {
	err := os.Remove(d.file(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (d *Disk) Clear() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}
