package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallkit/recall/chunk"
	"github.com/recallkit/recall/store"
)

const testDims = 4

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(testDims)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func vec(vals ...float32) []float32 {
	v := make([]float32, testDims)
	copy(v, vals)
	return v
}

func testChunk(text string) chunk.Chunk {
	return chunk.Chunk{ID: "chunk-" + text, Text: text, Timestamp: time.Now()}
}

func TestAddAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, testChunk("x-axis"), vec(1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
	_, err = s.Add(ctx, testChunk("y-axis"), vec(0, 1))
	require.NoError(t, err)

	results, err := s.Search(ctx, vec(1), 2)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "x-axis", results[0].Chunk.Text)
	assert.InDelta(t, 0.0, results[0].Distance, 1e-5)
	assert.Equal(t, "y-axis", results[1].Chunk.Text)
}

func TestSearch_KLargerThanStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, testChunk("only"), vec(1))
	require.NoError(t, err)

	results, err := s.Search(ctx, vec(1), 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestSearch_Empty(t *testing.T) {
	s := newTestStore(t)

	results, err := s.Search(context.Background(), vec(1), 5)
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, testChunk("a"), []float32{1})
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1}, 5)
	assert.ErrorIs(t, err, store.ErrDimensionMismatch)
}

func TestDelete_HidesFromSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, testChunk("gone"), vec(1))
	require.NoError(t, err)
	_, err = s.Add(ctx, testChunk("kept"), vec(0, 1))
	require.NoError(t, err)

	ok, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, vec(1), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kept", results[0].Chunk.Text)
}

func TestClear_ResetsIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, testChunk("a"), vec(1))
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	assert.Equal(t, 0, s.Count())
	id, err := s.Add(ctx, testChunk("b"), vec(1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), id)
}

func TestNotInitialized(t *testing.T) {
	s := New(testDims)

	_, err := s.Add(context.Background(), testChunk("a"), vec(1))
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}
