package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := New(Config{})
	assert.Error(t, err)
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{APIKey: "test-key"})
	require.NoError(t, err)

	assert.Equal(t, defaultModel, string(c.model))
	assert.Equal(t, int64(defaultMaxTokens), c.maxTokens)
}

func TestNew_Overrides(t *testing.T) {
	c, err := New(Config{APIKey: "test-key", Model: "claude-haiku-4-5", MaxTokens: 256})
	require.NoError(t, err)

	assert.Equal(t, "claude-haiku-4-5", string(c.model))
	assert.Equal(t, int64(256), c.maxTokens)
}
