// Package dedup implements the probable-duplicate heuristic: compare
// the candidate's leading code points against the prefixes of a
// bounded window of the most recent records.
package dedup

import (
	"context"
	"strings"

	"github.com/piyumals/kathana/internal/model"
	"github.com/piyumals/kathana/internal/store"
)

// Checker tests candidate stories against the recent corpus window.
type Checker struct {
	store     store.Store
	window    int
	prefixLen int
}

// NewChecker creates a Checker. Non-positive settings fall back to the
// defaults (window 100, prefix 200 code points).
func NewChecker(st store.Store, cfg model.DedupConfig) *Checker {
	def := model.DefaultConfig().Dedup
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.PrefixLength <= 0 {
		cfg.PrefixLength = def.PrefixLength
	}
	return &Checker{store: st, window: cfg.Window, prefixLen: cfg.PrefixLength}
}

// Verdict is the outcome of one duplicate check. The check is
// advisory: a remote failure is recorded in RemoteErr and the verdict
// fails open (not a duplicate) instead of blocking the submission.
type Verdict struct {
	Suspected  bool
	WindowSize int
	RemoteErr  error
}

// Check fetches the recent window and tests whether the candidate's
// prefix is contained in any existing record's prefix. The containment
// is deliberately asymmetric (candidate prefix inside existing prefix,
// never the reverse) and the first match wins; a short candidate whose
// whole prefix appears at the head of a longer stored story is exactly
// the resubmission case this is meant to catch.
//
// TODO: replace prefix containment with a shingle or simhash measure
// once the corpus is big enough to evaluate thresholds against.
func (c *Checker) Check(ctx context.Context, candidate string) Verdict {
	prefix := prefixOf(strings.TrimSpace(candidate), c.prefixLen)
	if prefix == "" {
		return Verdict{}
	}

	records, err := c.store.FetchWindow(ctx, c.window)
	if err != nil {
		return Verdict{RemoteErr: err}
	}

	verdict := Verdict{WindowSize: len(records)}
	for _, rec := range records {
		if strings.Contains(prefixOf(rec.Text, c.prefixLen), prefix) {
			verdict.Suspected = true
			break
		}
	}
	return verdict
}

// prefixOf returns the first n code points of s.
func prefixOf(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
