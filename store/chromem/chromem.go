// Package chromem implements store.Store over chromem-go, a pure Go
// embedded vector database. The backend is ephemeral: nothing is persisted
// across process restarts, which makes it a good fit for tests and
// short-lived sessions. Flush is a no-op.
//
// Deletion follows the flat store's semantics: the metadata entry goes away
// while the vector stays in the collection, and stale hits are filtered out
// of search results.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/recallkit/recall/chunk"
	"github.com/recallkit/recall/store"
)

const collectionName = "documents"

// Store is the chromem-backed implementation of store.Store.
type Store struct {
	dims int

	mu          sync.Mutex
	initialized bool
	db          *chromemgo.DB
	col         *chromemgo.Collection
	nextID      int64
	slots       int
	docs        map[int64]chunk.Chunk
}

var _ store.Store = (*Store)(nil)

// New creates an uninitialized chromem store for the given dimension.
func New(dims int) *Store {
	return &Store{dims: dims}
}

// Initialize creates a fresh in-memory collection. There is never persisted
// state to load.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked()
}

func (s *Store) resetLocked() error {
	db := chromemgo.NewDB()
	col, err := db.CreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.db = db
	s.col = col
	s.nextID = 0
	s.slots = 0
	s.docs = make(map[int64]chunk.Chunk)
	s.initialized = true
	return nil
}

// Add stores one chunk with its embedding.
func (s *Store) Add(ctx context.Context, c chunk.Chunk, embedding []float32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, store.ErrNotInitialized
	}
	return s.addLocked(ctx, c, embedding)
}

// AddBatch stores items one by one, skipping dimension mismatches.
func (s *Store) AddBatch(ctx context.Context, items []store.Item) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, store.ErrNotInitialized
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		id, err := s.addLocked(ctx, it.Chunk, it.Embedding)
		if err != nil {
			log.Printf("[CHROMEM] skipping item (source=%s): %v", it.Chunk.SourcePath, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) addLocked(ctx context.Context, c chunk.Chunk, embedding []float32) (int64, error) {
	if len(embedding) != s.dims {
		return 0, fmt.Errorf("%w: got %d, want %d", store.ErrDimensionMismatch, len(embedding), s.dims)
	}
	id := s.nextID
	doc := chromemgo.Document{
		ID:        strconv.FormatInt(id, 10),
		Content:   c.Text,
		Embedding: store.Normalize(embedding),
	}
	if err := s.col.AddDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("add document: %w", err)
	}
	s.nextID++
	s.slots++
	s.docs[id] = c
	return id, nil
}

// Search queries the collection and maps hits back to documents, skipping
// ids whose metadata has been deleted.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]store.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, store.ErrNotInitialized
	}
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", store.ErrDimensionMismatch, len(embedding), s.dims)
	}
	if len(s.docs) == 0 {
		return nil, nil
	}

	// Ask for extra results to cover vectors whose metadata was deleted;
	// chromem still returns them and we filter below.
	want := k + (s.slots - len(s.docs))
	if want > s.slots {
		want = s.slots
	}

	// chromem rejects result counts above the collection size; shrink on
	// that specific error like a concurrent-delete race would require.
	var hits []chromemgo.Result
	for limit := want; limit >= 1; limit-- {
		var err error
		hits, err = s.col.QueryEmbedding(ctx, store.Normalize(embedding), limit, nil, nil)
		if err == nil {
			break
		}
		if isTooManyResultsError(err) {
			continue
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	results := make([]store.SearchResult, 0, k)
	for _, hit := range hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		c, ok := s.docs[id]
		if !ok {
			continue // deleted
		}
		results = append(results, store.SearchResult{
			ID:       id,
			Distance: 1 - float64(hit.Similarity),
			Chunk:    c,
		})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Flush is a no-op: this backend is ephemeral by design.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return store.ErrNotInitialized
	}
	return nil
}

// Delete removes the metadata entry; the vector stays in the collection.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, store.ErrNotInitialized
	}
	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

// Clear swaps in a fresh collection and resets the id counter.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return store.ErrNotInitialized
	}
	return s.resetLocked()
}

// Count returns the number of live documents.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Dimensions returns the configured embedding dimension.
func (s *Store) Dimensions() int { return s.dims }

func isTooManyResultsError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
