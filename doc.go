// Package recall maintains a locally-persisted semantic index of
// conversational text and answers similarity queries against it under an
// advisory latency budget, so a host agent can silently recall relevant
// history before composing a response.
//
// Architecture:
//   - chunk: deterministic, boundary-aware text segmentation
//   - store: durable vector index with incremental add/search/persist
//     (flat reference backend, plus sqlite and chromem alternatives)
//   - embedder: pluggable text-to-vector providers (openai, onnx, mock)
//   - Engine (this package): priority-ordered indexing queue with a
//     periodic drain loop, and a latency-bounded retrieval path with
//     deduplication and a short-TTL single-slot cache
//
// The engine is an explicitly constructed, explicitly owned instance:
//
//	st := flat.New(dataDir, provider.Dimensions())
//	eng := recall.New(cfg, st, provider)
//	if err := eng.Initialize(ctx); err != nil { ... }
//	eng.Start(ctx)                  // background drain ticker
//	defer eng.Shutdown(ctx)         // stop + final flush
//
// Retrieval is strictly best-effort: when memory is unavailable
// (uninitialized, empty, or erroring) the retrieval path behaves like a
// cold system with no history and never blocks or errors the caller's
// primary flow.
package recall
