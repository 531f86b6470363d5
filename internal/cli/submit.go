package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/piyumals/kathana/internal/pipeline"
	"github.com/piyumals/kathana/internal/store"
)

var (
	submitFile    string
	submitForce   bool
	submitTimeout time.Duration
)

// submitCmd represents the submit command
var submitCmd = &cobra.Command{
	Use:   "submit [text]",
	Short: "Validate a story and append it to the pending area",
	Long: `Submit validates a story text, checks it against the most recent
corpus window for probable duplicates, and appends it as a pending
entry to the dataset repo.

The story can be given as an argument, read from a file with --file,
or piped on stdin with --file -.

A suspected duplicate does not fail the command: rerun with --force to
submit anyway.

Example:
  kathana submit --file story.txt
  cat story.txt | kathana submit --file -
  kathana submit --file story.txt --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().StringVarP(&submitFile, "file", "f", "", "read the story from a file ('-' for stdin)")
	submitCmd.Flags().BoolVar(&submitForce, "force", false, "submit even if a probable duplicate was detected")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 2*time.Minute, "overall submission timeout")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	text, err := submissionText(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	cfg := buildConfig()
	if verbose {
		fmt.Fprintf(os.Stderr, "Repo: %s\n", cfg.Hub.Repo)
		fmt.Fprintf(os.Stderr, "Duplicate window: %d records\n", cfg.Dedup.Window)
		fmt.Fprintln(os.Stderr)
	}

	p := pipeline.New(store.NewHub(cfg.Hub), cfg)
	result, err := p.Submit(ctx, text, submitForce)

	for _, m := range result.Messages.Rejections() {
		fmt.Printf("✗ %s\n", m.Text)
	}
	for _, m := range result.Messages.Warnings() {
		fmt.Printf("! %s\n", m.Text)
	}
	if !result.Messages.Accepted() {
		return fmt.Errorf("story rejected: edit the text and try again")
	}

	if v := result.Verdict; v != nil {
		if v.RemoteErr != nil {
			// Advisory check only; fail open but say so.
			fmt.Printf("! duplicate check unavailable (%v), continuing\n", v.RemoteErr)
		}
		if v.Suspected {
			fmt.Printf("✗ looks like a duplicate of a recent story (window of %d records)\n", v.WindowSize)
			fmt.Println("  rerun with --force to submit anyway")
			return nil
		}
	}

	if err != nil {
		return fmt.Errorf("submission failed, nothing was stored (is the dataset service reachable?): %w", err)
	}

	fmt.Println("✓ Submitted: stored under the repo's pending area")
	fmt.Println("  a separate merge run folds pending entries into the main dataset")
	return nil
}

// submissionText resolves the story text from the argument, a file, or
// stdin.
func submissionText(args []string) (string, error) {
	if len(args) == 1 && submitFile != "" {
		return "", fmt.Errorf("pass the story either as an argument or with --file, not both")
	}
	if len(args) == 1 {
		return args[0], nil
	}
	switch submitFile {
	case "":
		return "", fmt.Errorf("no story given: pass it as an argument or with --file")
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(submitFile)
		if err != nil {
			return "", fmt.Errorf("read story file: %w", err)
		}
		return string(data), nil
	}
}
