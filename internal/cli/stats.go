package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/piyumals/kathana/internal/cache"
	"github.com/piyumals/kathana/internal/stats"
	"github.com/piyumals/kathana/internal/store"
)

var (
	statsBatchSize      int
	statsIncludePending bool
	statsNoCache        bool
	statsTimeout        time.Duration
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Compute corpus statistics by streaming the dataset",
	Long: `Stats streams the full dataset in bounded batches and reports the
record count, total character count, and average story length. Peak
memory stays proportional to the batch size, not the corpus size.

With --include-pending, records still sitting in pending JSONL files
are counted as well.

Recent results are cached on disk; use --no-cache to force a fresh
pass over the corpus.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().IntVar(&statsBatchSize, "batch-size", 0, "records per batch (default from config)")
	statsCmd.Flags().BoolVar(&statsIncludePending, "include-pending", false, "count unmerged pending submissions too")
	statsCmd.Flags().BoolVar(&statsNoCache, "no-cache", false, "disable the snapshot cache")
	statsCmd.Flags().DurationVar(&statsTimeout, "timeout", 5*time.Minute, "overall computation timeout")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	cfg := buildConfig()
	if statsBatchSize > 0 {
		cfg.Stats.BatchSize = statsBatchSize
	}
	cfg.Stats.IncludePending = statsIncludePending
	if statsNoCache {
		cfg.Cache.Enabled = false
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Repo: %s\n", cfg.Hub.Repo)
		fmt.Fprintf(os.Stderr, "Batch size: %d\n", cfg.Stats.BatchSize)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	agg := stats.NewAggregator(store.NewHub(cfg.Hub), cfg.Stats)
	if cfg.Cache.Enabled {
		c := cache.NewLayered(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		key := fmt.Sprintf("stats|%s|pending=%v", cfg.Hub.Repo, cfg.Stats.IncludePending)
		agg.WithCache(c, key, cfg.Cache.DiskTTL)
	}

	snap, err := agg.Compute(ctx)
	if err != nil {
		return fmt.Errorf("statistics could not be computed (try again later): %w", err)
	}

	fmt.Printf("Stories:          %d\n", snap.TotalRecords)
	fmt.Printf("Total characters: %d\n", snap.TotalChars)
	fmt.Printf("Average length:   %.1f characters\n", snap.AvgChars)
	return nil
}
