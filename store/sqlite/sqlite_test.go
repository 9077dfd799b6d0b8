package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallkit/recall/chunk"
	"github.com/recallkit/recall/store"
)

const testDims = 4

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall.db")
	s := New(path, testDims)
	require.NoError(t, s.Initialize(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s, path
}

func vec(vals ...float32) []float32 {
	v := make([]float32, testDims)
	copy(v, vals)
	return v
}

func testChunk(text string) chunk.Chunk {
	return chunk.Chunk{
		ID:         "chunk-" + text,
		Text:       text,
		SourcePath: "/notes/" + text + ".md",
		Timestamp:  time.Now().UTC(),
		Metadata:   map[string]string{"origin": "test"},
	}
}

func TestAddAndSearch(t *testing.T) {
	s, _ := newTestStore(t)
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
	assert.Equal(t, "/notes/x-axis.md", results[0].Chunk.SourcePath)
	assert.Equal(t, "test", results[0].Chunk.Metadata["origin"])
}

func TestAddBatch_SkipsBadItems(t *testing.T) {
	s, _ := newTestStore(t)

	items := []store.Item{
		{Chunk: testChunk("a"), Embedding: vec(1)},
		{Chunk: testChunk("bad"), Embedding: []float32{1}},
		{Chunk: testChunk("b"), Embedding: vec(0, 1)},
	}
	ids, err := s.AddBatch(context.Background(), items)

	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, ids)
	assert.Equal(t, 2, s.Count())
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	s, path := newTestStore(t)
	ctx := context.Background()

	deleted, err := s.Add(ctx, testChunk("deleted"), vec(1))
	require.NoError(t, err)
	_, err = s.Add(ctx, testChunk("kept"), vec(0, 1))
	require.NoError(t, err)
	ok, err := s.Delete(ctx, deleted)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, s.Close())

	reopened := New(path, testDims)
	require.NoError(t, reopened.Initialize(ctx))
	defer reopened.Close()

	assert.Equal(t, 1, reopened.Count())

	// The id counter is persisted independently of the rows, so the
	// deleted id is never handed out again.
	next, err := reopened.Add(ctx, testChunk("later"), vec(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestDelete_RemovesRow(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, testChunk("gone"), vec(1))
	require.NoError(t, err)

	ok, err := s.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Delete(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	results, err := s.Search(ctx, vec(1), 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t)
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
	s := New(filepath.Join(t.TempDir(), "recall.db"), testDims)

	_, err := s.Add(context.Background(), testChunk("a"), vec(1))
	assert.ErrorIs(t, err, store.ErrNotInitialized)
}
