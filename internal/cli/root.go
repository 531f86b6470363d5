package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/piyumals/kathana/internal/model"
)

var (
	cfgFile string
	verbose bool
	repo    string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "kathana",
	Short: "Kathana - Sinhala story dataset contributions",
	Long: `Kathana is a small client for a community Sinhala-story dataset
hosted on the Hugging Face Hub.

It validates story texts, checks new submissions against the recent
corpus for probable duplicates, appends accepted stories to the repo's
pending area, and computes corpus statistics by streaming the dataset
in bounded batches. A separate merge command folds pending submissions
into the main data file.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kathana v0.1.2")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.kathana/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&repo, "repo", "", "dataset repo id (owner/name)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("hub.repo", rootCmd.PersistentFlags().Lookup("repo"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(filepath.Join(home, ".kathana"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match KATHANA_*
	viper.SetEnvPrefix("KATHANA")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// buildConfig assembles the effective configuration: defaults, then
// config file and environment, then the global flags. Per-command
// flags are applied by each command after this.
func buildConfig() *model.Config {
	cfg := model.DefaultConfig()

	if v := viper.GetString("hub.repo"); v != "" {
		cfg.Hub.Repo = v
	}
	if v := viper.GetString("hub.endpoint"); v != "" {
		cfg.Hub.Endpoint = v
	}
	if v := viper.GetString("hub.rows_endpoint"); v != "" {
		cfg.Hub.RowsEndpoint = v
	}
	if v := viper.GetString("hub.revision"); v != "" {
		cfg.Hub.Revision = v
	}
	if v := viper.GetString("hub.pending_dir"); v != "" {
		cfg.Hub.PendingDir = v
		cfg.Stats.PendingDir = v
	}
	if v := viper.GetString("hub.data_file"); v != "" {
		cfg.Hub.DataFile = v
	}
	if v := viper.GetDuration("hub.timeout"); v > 0 {
		cfg.Hub.Timeout = v
	}
	if v := viper.GetInt("validation.min_length"); v > 0 {
		cfg.Validation.MinLength = v
	}
	if v := viper.GetInt("validation.max_length"); v > 0 {
		cfg.Validation.MaxLength = v
	}
	if v := viper.GetInt("dedup.window"); v > 0 {
		cfg.Dedup.Window = v
	}
	if v := viper.GetInt("dedup.prefix_length"); v > 0 {
		cfg.Dedup.PrefixLength = v
	}
	if v := viper.GetInt("stats.batch_size"); v > 0 {
		cfg.Stats.BatchSize = v
	}

	// Token: KATHANA_TOKEN via viper, HF_TOKEN as the conventional
	// fallback. Never stored in config dumps.
	cfg.Hub.Token = viper.GetString("token")
	if cfg.Hub.Token == "" {
		cfg.Hub.Token = os.Getenv("HF_TOKEN")
	}

	if cfg.Cache.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Cache.Dir = filepath.Join(home, ".kathana", "cache")
		}
	}
	if v := viper.GetDuration("cache.disk_ttl"); v > 0 {
		cfg.Cache.DiskTTL = v
	}

	cfg.Output.Verbose = verbose
	return cfg
}

// relativeAge renders a timestamp the way the status output wants it.
func relativeAge(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%d day(s) ago", int(d.Hours())/24)
	case d >= time.Hour:
		return fmt.Sprintf("%d hour(s) ago", int(d.Hours()))
	default:
		min := int(d.Minutes())
		if min < 0 {
			min = 0
		}
		return fmt.Sprintf("%d minute(s) ago", min)
	}
}
