package recall

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ".recall", cfg.DataDir)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.IndexIntervalSecs)
	assert.Equal(t, 10, cfg.QueueBatchSize)
	assert.Equal(t, int64(1<<20), cfg.MaxFileBytes)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 5, cfg.MinQueryLength)
	assert.Equal(t, "mock", cfg.Embedder.Type)
	assert.Equal(t, "flat", cfg.Store.Backend)

	assert.Equal(t, 5*time.Second, cfg.indexInterval())
	assert.Equal(t, 60*time.Second, cfg.drainTimeout())
	assert.Equal(t, 5*time.Second, cfg.cacheTTL())
	assert.Equal(t, 300*time.Millisecond, cfg.latencyWarn())
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))

	require.NoError(t, err)
	assert.Equal(t, ".recall", cfg.DataDir)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/recall
top_k: 8
embedder:
  type: openai
  openai:
    model: text-embedding-3-small
    api_key_env: OPENAI_API_KEY
store:
  backend: sqlite
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/recall", cfg.DataDir)
	assert.Equal(t, 8, cfg.TopK)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "sqlite", cfg.Store.Backend)

	// Unset fields keep their defaults.
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 5, cfg.IndexIntervalSecs)
}

func TestLoadConfig_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
