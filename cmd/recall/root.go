package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/recallkit/recall"
	"github.com/recallkit/recall/embedder"
	"github.com/recallkit/recall/embedder/cached"
	"github.com/recallkit/recall/embedder/mock"
	"github.com/recallkit/recall/embedder/onnx"
	"github.com/recallkit/recall/embedder/openai"
	"github.com/recallkit/recall/store"
	"github.com/recallkit/recall/store/chromem"
	"github.com/recallkit/recall/store/flat"
	"github.com/recallkit/recall/store/sqlite"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Local semantic memory for conversational agents",
	Long: `recall maintains a locally-persisted vector index of notes and
conversation history, and answers similarity queries against it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "recall.yaml", "path to YAML config file")
}

// loadConfig reads the config file and anchors the workspace root to the
// current directory when unset.
func loadConfig() (*recall.Config, error) {
	cfg, err := recall.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.WorkspaceRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.WorkspaceRoot = wd
	}
	return cfg, nil
}

// buildProvider assembles the configured embedding provider, optionally
// wrapped with the memoization cache.
func buildProvider(cfg *recall.Config) (embedder.Provider, error) {
	var provider embedder.Provider
	switch cfg.Embedder.Type {
	case "mock":
		provider = mock.New()
	case "openai":
		oc := cfg.Embedder.OpenAI
		apiKey := ""
		if oc.APIKeyEnv != "" {
			apiKey = os.Getenv(oc.APIKeyEnv)
		}
		provider = openai.New(openai.Config{
			BaseURL:           oc.BaseURL,
			APIKey:            apiKey,
			Model:             oc.Model,
			Dimensions:        oc.Dimensions,
			Timeout:           time.Duration(oc.TimeoutSecs) * time.Second,
			BatchGroup:        oc.BatchGroup,
			RequestsPerSecond: oc.RequestsPerSecond,
		})
	case "onnx":
		nc := cfg.Embedder.ONNX
		p, err := onnx.New(onnx.Config{
			ModelPath:     nc.ModelPath,
			TokenizerPath: nc.TokenizerPath,
			LibraryPath:   nc.LibraryPath,
			Dimensions:    nc.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		provider = p
	default:
		return nil, fmt.Errorf("unknown embedder type %q", cfg.Embedder.Type)
	}

	if cfg.Embedder.Cache {
		wrapped, err := cached.New(provider, cached.Config{})
		if err != nil {
			return nil, err
		}
		provider = wrapped
	}
	return provider, nil
}

// buildStore assembles the configured vector store backend.
func buildStore(cfg *recall.Config, dims int) (store.Store, error) {
	switch cfg.Store.Backend {
	case "flat":
		return flat.New(cfg.DataDir, dims), nil
	case "sqlite":
		return sqlite.New(filepath.Join(cfg.DataDir, "recall.db"), dims), nil
	case "chromem":
		return chromem.New(dims), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// buildEngine wires config, provider and store into an initialized engine.
func buildEngine(cmd *cobra.Command) (*recall.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	st, err := buildStore(cfg, provider.Dimensions())
	if err != nil {
		return nil, err
	}
	eng := recall.New(cfg, st, provider)
	if err := eng.Initialize(cmd.Context()); err != nil {
		return nil, err
	}
	return eng, nil
}
