package model

import "time"

// Config holds the complete runtime configuration. It is constructed
// once (defaults, then config file, env, flags) and passed explicitly
// into each component; nothing reads ambient global state.
type Config struct {
	Hub        HubConfig        `yaml:"hub" mapstructure:"hub"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Dedup      DedupConfig      `yaml:"dedup" mapstructure:"dedup"`
	Stats      StatsConfig      `yaml:"stats" mapstructure:"stats"`
	Merge      MergeConfig      `yaml:"merge" mapstructure:"merge"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// HubConfig configures access to the hosted dataset repo.
type HubConfig struct {
	// Endpoint is the hub API base, RowsEndpoint the dataset viewer
	// base used for paged row reads.
	Endpoint     string `yaml:"endpoint" mapstructure:"endpoint"`
	RowsEndpoint string `yaml:"rows_endpoint" mapstructure:"rows_endpoint"`

	// Token is never written to config dumps; supply it via
	// KATHANA_TOKEN or HF_TOKEN.
	Token string `yaml:"-" mapstructure:"token"`

	Repo       string `yaml:"repo" mapstructure:"repo"`
	Revision   string `yaml:"revision" mapstructure:"revision"`
	Subset     string `yaml:"subset" mapstructure:"subset"`
	Split      string `yaml:"split" mapstructure:"split"`
	PendingDir string `yaml:"pending_dir" mapstructure:"pending_dir"`
	DataFile   string `yaml:"data_file" mapstructure:"data_file"`

	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`

	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`

	// Explicit proxy overrides; empty means honor the usual
	// HTTP_PROXY / HTTPS_PROXY / NO_PROXY environment.
	HTTPProxy  string `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy" mapstructure:"https_proxy"`
}

// ValidationConfig bounds accepted story length, measured in code
// points of the trimmed text.
type ValidationConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length"`
	MaxLength int `yaml:"max_length" mapstructure:"max_length"`
}

// DedupConfig tunes the probable-duplicate heuristic.
type DedupConfig struct {
	// Window is how many of the most recent records to scan.
	Window int `yaml:"window" mapstructure:"window"`
	// PrefixLength is how many leading code points are compared.
	PrefixLength int `yaml:"prefix_length" mapstructure:"prefix_length"`
}

// StatsConfig tunes streaming statistics.
type StatsConfig struct {
	BatchSize      int    `yaml:"batch_size" mapstructure:"batch_size"`
	IncludePending bool   `yaml:"include_pending" mapstructure:"include_pending"`
	PendingDir     string `yaml:"pending_dir" mapstructure:"pending_dir"`
}

// MergeConfig tunes the pending-into-main merge job.
type MergeConfig struct {
	DownloadWorkers int `yaml:"download_workers" mapstructure:"download_workers"`
}

// CacheConfig controls the statistics snapshot cache.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig controls CLI output behavior.
type OutputConfig struct {
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Hub: HubConfig{
			Endpoint:          "https://huggingface.co",
			RowsEndpoint:      "https://datasets-server.huggingface.co",
			Repo:              "Isuru0x01/sinhala_stories",
			Revision:          "main",
			Subset:            "default",
			Split:             "train",
			PendingDir:        "pending",
			DataFile:          "data/train.jsonl",
			Timeout:           30 * time.Second,
			UserAgent:         "kathana/0.1 (+https://github.com/piyumals/kathana)",
			MaxBodyBytes:      64 << 20,
			RequestsPerSecond: 4,
			Burst:             4,
		},
		Validation: ValidationConfig{
			MinLength: 50,
			MaxLength: 50_000,
		},
		Dedup: DedupConfig{
			Window:       100,
			PrefixLength: 200,
		},
		Stats: StatsConfig{
			BatchSize:  100,
			PendingDir: "pending",
		},
		Merge: MergeConfig{
			DownloadWorkers: 4,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 5 * time.Minute,
			DiskTTL:   30 * time.Minute,
		},
	}
}
