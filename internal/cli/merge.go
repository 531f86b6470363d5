package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/piyumals/kathana/internal/merge"
	"github.com/piyumals/kathana/internal/store"
)

var (
	mergeWorkers int
	mergeTimeout time.Duration
)

// mergeCmd represents the merge command
var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Fold pending submissions into the main dataset file",
	Long: `Merge downloads every pending JSONL file, appends its records to the
main data file, and deletes the processed files, all in a single
commit. Requires a token with write access to the repo.`,
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().IntVar(&mergeWorkers, "workers", 0, "concurrent pending-file downloads (default from config)")
	mergeCmd.Flags().DurationVar(&mergeTimeout, "timeout", 10*time.Minute, "overall merge timeout")
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), mergeTimeout)
	defer cancel()

	cfg := buildConfig()
	if mergeWorkers > 0 {
		cfg.Merge.DownloadWorkers = mergeWorkers
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Repo: %s\n", cfg.Hub.Repo)
		fmt.Fprintf(os.Stderr, "Data file: %s\n", cfg.Hub.DataFile)
		fmt.Fprintln(os.Stderr)
	}

	m := merge.NewMerger(store.NewHub(cfg.Hub), cfg)
	result, err := m.Run(ctx)
	if err != nil {
		return fmt.Errorf("merge failed, the repo was left unchanged: %w", err)
	}

	if result.PendingFiles == 0 {
		fmt.Println("No pending files found. Nothing to do.")
		return nil
	}
	fmt.Printf("✓ Merged %d entries from %d pending files\n", result.Merged, result.PendingFiles)
	if result.Skipped > 0 {
		fmt.Printf("! Skipped %d malformed lines\n", result.Skipped)
	}
	return nil
}
