package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/piyumals/kathana/internal/pipeline"
	"github.com/piyumals/kathana/internal/store"
)

var statusTimeout time.Duration

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending submissions and the last merge",
	Long: `Status reports how many submissions are waiting in the pending area
and when the last merge into the main dataset happened.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", time.Minute, "overall status timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	cfg := buildConfig()
	if verbose {
		fmt.Fprintf(os.Stderr, "Repo: %s\n\n", cfg.Hub.Repo)
	}

	p := pipeline.New(store.NewHub(cfg.Hub), cfg)
	status, err := p.Status(ctx)
	if err != nil {
		return fmt.Errorf("status unavailable, the dataset service could not be reached: %w", err)
	}

	fmt.Printf("Pending stories: %d\n", status.PendingCount)
	if status.LastMerge.IsZero() {
		fmt.Println("Last merge:      unknown (no merge commit found)")
	} else {
		fmt.Printf("Last merge:      %s (%s)\n",
			status.LastMerge.Format("2006-01-02 15:04:05 UTC"),
			relativeAge(status.LastMerge, time.Now().UTC()))
	}
	fmt.Printf("State:           %s\n", status.State)
	fmt.Printf("  %s\n", status.Detail)
	return nil
}
