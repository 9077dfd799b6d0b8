package recall

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/recallkit/recall/chunk"
)

// Config holds engine tuning and the backend selections used by the CLI.
// Zero values are replaced with defaults; see DefaultConfig.
type Config struct {
	// DataDir is where the store persists its index files.
	DataDir string `yaml:"data_dir"`

	// WorkspaceRoot anchors bulk reindexing, the file watcher, and the
	// relative paths shown in formatted retrieval results.
	WorkspaceRoot string `yaml:"workspace_root"`

	// ChunkSize and ChunkOverlap size the chunker window, in runes.
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// IndexIntervalSecs is the drain tick period (default 5).
	IndexIntervalSecs int `yaml:"index_interval_secs"`

	// QueueBatchSize caps tasks processed per drain (default 10).
	QueueBatchSize int `yaml:"queue_batch_size"`

	// DrainTimeoutSecs bounds one whole drain cycle so a hung embedding
	// call cannot stall indexing forever (default 60).
	DrainTimeoutSecs int `yaml:"drain_timeout_secs"`

	// MaxFileBytes is the bulk-indexing size ceiling; larger files are
	// skipped and logged (default 1 MiB).
	MaxFileBytes int64 `yaml:"max_file_bytes"`

	// TopK is the default neighbour count for retrieval (default 5).
	TopK int `yaml:"top_k"`

	// MinQueryLength is the retrieval gate's minimum query length in
	// runes (default 5).
	MinQueryLength int `yaml:"min_query_length"`

	// CacheTTLSecs is the single-slot retrieval cache lifetime
	// (default 5).
	CacheTTLSecs int `yaml:"cache_ttl_secs"`

	// LatencyWarnMs is the advisory retrieval latency budget; slower
	// retrievals are logged but still returned (default 300).
	LatencyWarnMs int `yaml:"latency_warn_ms"`

	Embedder EmbedderConfig `yaml:"embedder"`
	Store    StoreConfig    `yaml:"store"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	// Type is one of "mock", "openai", "onnx".
	Type string `yaml:"type"`

	// Cache enables the ristretto memoization wrapper.
	Cache bool `yaml:"cache"`

	OpenAI OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	ONNX   ONNXEmbedderConfig   `yaml:"onnx,omitempty"`
}

// OpenAIEmbedderConfig configures the OpenAI-compatible provider.
type OpenAIEmbedderConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	Dimensions        int     `yaml:"dimensions"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	BatchGroup        int     `yaml:"batch_group"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ONNXEmbedderConfig configures the local ONNX provider.
type ONNXEmbedderConfig struct {
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
	Dimensions    int    `yaml:"dimensions"`
}

// StoreConfig selects the vector store backend.
type StoreConfig struct {
	// Backend is one of "flat", "sqlite", "chromem".
	Backend string `yaml:"backend"`
}

// DefaultConfig returns the defaults used when no config file exists.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads a YAML config from path. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DataDir == "" {
		c.DataDir = ".recall"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = chunk.DefaultTargetSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = chunk.DefaultOverlap
	}
	if c.IndexIntervalSecs <= 0 {
		c.IndexIntervalSecs = 5
	}
	if c.QueueBatchSize <= 0 {
		c.QueueBatchSize = 10
	}
	if c.DrainTimeoutSecs <= 0 {
		c.DrainTimeoutSecs = 60
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = 1 << 20
	}
	if c.TopK <= 0 {
		c.TopK = 5
	}
	if c.MinQueryLength <= 0 {
		c.MinQueryLength = 5
	}
	if c.CacheTTLSecs <= 0 {
		c.CacheTTLSecs = 5
	}
	if c.LatencyWarnMs <= 0 {
		c.LatencyWarnMs = 300
	}
	if c.Embedder.Type == "" {
		c.Embedder.Type = "mock"
	}
	if c.Store.Backend == "" {
		c.Store.Backend = "flat"
	}
}

func (c *Config) indexInterval() time.Duration {
	return time.Duration(c.IndexIntervalSecs) * time.Second
}

func (c *Config) drainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSecs) * time.Second
}

func (c *Config) cacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

func (c *Config) latencyWarn() time.Duration {
	return time.Duration(c.LatencyWarnMs) * time.Millisecond
}
