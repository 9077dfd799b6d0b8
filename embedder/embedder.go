// Package embedder defines the embedding provider contract used by the
// indexing and retrieval paths.
//
// Implementations:
//   - mock: deterministic hash-based vectors for tests and offline runs
//   - openai: OpenAI-compatible HTTP embeddings API (also covers Ollama
//     and LM Studio style endpoints)
//   - onnx: local all-MiniLM-L6-v2 inference (build tag "onnx")
//   - cached: memoizing wrapper over any other provider
package embedder

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider could not be reached or
// returned an unusable response. The current task or query is abandoned;
// there is no automatic retry.
var ErrUnavailable = errors.New("embedder: provider unavailable")

// DefaultBatchGroup bounds how many texts are sent to a provider in one
// request, to keep peak memory and payload sizes predictable.
const DefaultBatchGroup = 32

// Provider converts text to fixed-dimension vectors.
type Provider interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts many texts at once. Implementations batch
	// internally in bounded groups.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
