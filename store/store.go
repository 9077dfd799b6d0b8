// Package store defines the vector storage contract shared by all index
// backends, along with the document and search result types.
//
// Backends:
//   - flat: durable flat inner-product index persisted as two files
//   - sqlite: durable SQLite-backed index
//   - chromem: ephemeral chromem-go index for tests and short-lived runs
package store

import (
	"context"
	"errors"
	"math"

	"github.com/recallkit/recall/chunk"
)

// Sentinel errors shared across backends.
var (
	// ErrDimensionMismatch is returned when an embedding's length disagrees
	// with the store's configured dimension. Inside a batch the offending
	// item is skipped instead.
	ErrDimensionMismatch = errors.New("store: embedding dimension mismatch")

	// ErrCorruptIndex is returned by Initialize when one persistence
	// artifact is present without its pair, or either fails to parse.
	// The caller decides whether to rebuild from scratch.
	ErrCorruptIndex = errors.New("store: corrupt or incomplete index files")

	// ErrNotInitialized is returned by operations invoked before
	// Initialize has completed.
	ErrNotInitialized = errors.New("store: not initialized")
)

// Document is a stored chunk with its embedding. Document ids are assigned
// from a single monotonically increasing counter and are never reused, even
// after deletion.
type Document struct {
	ID        int64       `json:"id"`
	Chunk     chunk.Chunk `json:"chunk"`
	Embedding []float32   `json:"-"`
}

// Item pairs a chunk with its embedding for batch insertion.
type Item struct {
	Chunk     chunk.Chunk
	Embedding []float32
}

// SearchResult is a single nearest neighbour. Distance is 1 minus the inner
// product of L2-normalized vectors, so smaller is always more similar.
type SearchResult struct {
	ID       int64
	Distance float64
	Chunk    chunk.Chunk
}

// Store is the vector storage contract. Implementations serialize all
// mutations internally; searches may interleave with writes.
type Store interface {
	// Initialize loads persisted state if present, or creates an empty
	// index for the configured dimension. A half-present or unparseable
	// persistence pair fails with ErrCorruptIndex.
	Initialize(ctx context.Context) error

	// Add validates, normalizes and appends one embedding, returning the
	// assigned document id.
	Add(ctx context.Context, c chunk.Chunk, embedding []float32) (int64, error)

	// AddBatch inserts items one by one. Items failing dimension checks
	// are skipped and omitted from the returned id list; partial success
	// is the norm, not an error.
	AddBatch(ctx context.Context, items []Item) ([]int64, error)

	// Search returns the k most similar documents in ascending distance
	// order. k is clamped to the document count; an empty store yields an
	// empty result, not an error.
	Search(ctx context.Context, embedding []float32, k int) ([]SearchResult, error)

	// Flush persists state if it changed since the last persist.
	Flush(ctx context.Context) error

	// Delete removes the document's metadata entry and reports whether it
	// existed. Backends built on append-only index structures do not
	// reclaim the underlying vector slot.
	Delete(ctx context.Context, id int64) (bool, error)

	// Clear resets to an empty index with the id counter at zero.
	Clear(ctx context.Context) error

	// Count returns the number of live documents (metadata entries, not
	// raw index slots, since deletions diverge the two).
	Count() int

	// Dimensions returns the configured embedding dimension.
	Dimensions() int
}

// Normalize returns the L2-normalized copy of vec. Zero vectors are returned
// unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := 1 / math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) * inv)
	}
	return out
}

// Dot returns the inner product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
