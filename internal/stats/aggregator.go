// Package stats computes corpus statistics as a streaming fold over
// bounded batches, so peak memory tracks the batch size rather than
// the corpus size.
package stats

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/piyumals/kathana/internal/cache"
	"github.com/piyumals/kathana/internal/model"
	"github.com/piyumals/kathana/internal/store"
)

// Aggregator streams the dataset and sums record and character counts.
type Aggregator struct {
	store          store.Store
	batchSize      int
	includePending bool
	pendingDir     string

	cache    cache.Cache
	cacheKey string
	cacheTTL time.Duration
}

// NewAggregator creates an Aggregator. A non-positive batch size falls
// back to the default (100 records per batch).
func NewAggregator(st store.Store, cfg model.StatsConfig) *Aggregator {
	def := model.DefaultConfig().Stats
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.PendingDir == "" {
		cfg.PendingDir = def.PendingDir
	}
	return &Aggregator{
		store:          st,
		batchSize:      cfg.BatchSize,
		includePending: cfg.IncludePending,
		pendingDir:     cfg.PendingDir,
	}
}

// WithCache makes Compute reuse a recent snapshot stored under key
// instead of re-streaming the corpus on every call.
func (a *Aggregator) WithCache(c cache.Cache, key string, ttl time.Duration) *Aggregator {
	a.cache = c
	a.cacheKey = cache.Key(key)
	a.cacheTTL = ttl
	return a
}

// Compute streams the dataset and returns the summary snapshot. Any
// iteration failure yields a zeroed snapshot plus the error; the
// average is defined as 0 for an empty corpus.
func (a *Aggregator) Compute(ctx context.Context) (model.StatsSnapshot, error) {
	if a.cache != nil {
		if data, ok := a.cache.Get(a.cacheKey); ok {
			var snap model.StatsSnapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return snap, nil
			}
		}
	}

	var snap model.StatsSnapshot

	batches := a.store.StreamAll(ctx, a.batchSize)
	for batches.Next() {
		for _, rec := range batches.Batch() {
			snap.TotalRecords++
			snap.TotalChars += int64(utf8.RuneCountInString(rec.Text))
		}
	}
	if err := batches.Err(); err != nil {
		return model.StatsSnapshot{}, err
	}

	if a.includePending {
		if err := a.addPending(ctx, &snap); err != nil {
			return model.StatsSnapshot{}, err
		}
	}

	if snap.TotalRecords > 0 {
		snap.AvgChars = float64(snap.TotalChars) / float64(snap.TotalRecords)
	}

	if a.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			_ = a.cache.Set(a.cacheKey, data, a.cacheTTL)
		}
	}
	return snap, nil
}

// addPending counts records sitting in pending JSONL files that have
// not been merged into the main dataset yet. Lines that fail to parse
// are skipped rather than aborting the file.
func (a *Aggregator) addPending(ctx context.Context, snap *model.StatsSnapshot) error {
	files, err := a.store.ListFiles(ctx)
	if err != nil {
		return err
	}

	prefix := a.pendingDir + "/"
	for _, path := range files {
		if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, ".jsonl") {
			continue
		}
		data, err := a.store.ReadFile(ctx, path)
		if err != nil {
			return err
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var entry model.PendingEntry
			if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Story == "" {
				continue
			}
			snap.TotalRecords++
			snap.TotalChars += int64(utf8.RuneCountInString(entry.Story))
		}
	}
	return nil
}
