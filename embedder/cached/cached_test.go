package cached

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallkit/recall/embedder/mock"
)

// countingProvider wraps the mock embedder and counts inner calls.
type countingProvider struct {
	*mock.Embedder
	embedCalls int
	batchTexts int
}

func (c *countingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.Embedder.Embed(ctx, text)
}

func (c *countingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchTexts += len(texts)
	return c.Embedder.EmbedBatch(ctx, texts)
}

func TestEmbed_CachesRepeats(t *testing.T) {
	inner := &countingProvider{Embedder: mock.New()}
	p, err := New(inner, Config{})
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()

	first, err := p.Embed(ctx, "repeated text")
	require.NoError(t, err)
	p.Wait()

	second, err := p.Embed(ctx, "repeated text")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.embedCalls)
}

func TestEmbedBatch_OnlyMissesHitProvider(t *testing.T) {
	inner := &countingProvider{Embedder: mock.New()}
	p, err := New(inner, Config{})
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()

	_, err = p.Embed(ctx, "warm")
	require.NoError(t, err)
	p.Wait()

	vecs, err := p.EmbedBatch(ctx, []string{"warm", "cold", "colder"})
	require.NoError(t, err)

	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, mock.DefaultDimensions)
	}
	assert.Equal(t, 2, inner.batchTexts)
}

func TestEmbedBatch_AllHits(t *testing.T) {
	inner := &countingProvider{Embedder: mock.New()}
	p, err := New(inner, Config{})
	require.NoError(t, err)
	defer p.Close()
	ctx := context.Background()

	_, err = p.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	p.Wait()

	before := inner.batchTexts
	_, err = p.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)

	assert.Equal(t, before, inner.batchTexts)
}

func TestDimensions(t *testing.T) {
	p, err := New(mock.NewWithDimensions(32), Config{})
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 32, p.Dimensions())
}
