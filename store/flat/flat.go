// Package flat implements the durable reference Store: a flat inner-product
// index over L2-normalized vectors, persisted as two files in one directory.
//
// The index file holds the raw vectors in gob encoding; the metadata file
// holds the id-to-chunk map and the next-id counter as JSON. Both must be
// present and mutually consistent to load; the presence of one without the
// other is treated as corruption and surfaced to the caller.
//
// The index is append-only. Deleting a document removes only its metadata
// entry; the vector slot is never reclaimed. True removal would require a
// full rebuild, which is out of scope for incremental operation.
package flat

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/recallkit/recall/chunk"
	"github.com/recallkit/recall/store"
)

// On-disk artifact names, relative to the store directory.
const (
	IndexFileName    = "index.bin"
	MetadataFileName = "metadata.json"
)

// Store is the flat-index implementation of store.Store. All methods are
// safe for concurrent use; a single mutex serializes every operation.
type Store struct {
	dir  string
	dims int

	mu          sync.Mutex
	initialized bool
	dirty       bool
	nextID      int64
	slots       []slot
	docs        map[int64]chunk.Chunk
}

// slot is one append-only index entry. The vector stays even after the
// document's metadata is deleted.
type slot struct {
	id  int64
	vec []float32
}

type indexSnapshot struct {
	Dims    int
	IDs     []int64
	Vectors [][]float32
}

type metadataSnapshot struct {
	NextID    int64      `json:"next_id"`
	Documents []docEntry `json:"documents"`
}

type docEntry struct {
	ID    int64       `json:"id"`
	Chunk chunk.Chunk `json:"chunk"`
}

var _ store.Store = (*Store)(nil)

// New creates a flat store persisting under dir with the given embedding
// dimension. Initialize must be called before any other operation.
func New(dir string, dims int) *Store {
	return &Store{dir: dir, dims: dims}
}

// Initialize loads the persisted index and metadata pair if both exist,
// creates an empty index if neither does, and fails with
// store.ErrCorruptIndex when only one is present or either fails to parse.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	indexPath := filepath.Join(s.dir, IndexFileName)
	metaPath := filepath.Join(s.dir, MetadataFileName)
	haveIndex := fileExists(indexPath)
	haveMeta := fileExists(metaPath)

	switch {
	case !haveIndex && !haveMeta:
		s.slots = nil
		s.docs = make(map[int64]chunk.Chunk)
		s.nextID = 0
	case haveIndex != haveMeta:
		return fmt.Errorf("%w: %s present without %s", store.ErrCorruptIndex,
			presentName(haveIndex), absentName(haveIndex))
	default:
		if err := s.load(indexPath, metaPath); err != nil {
			return err
		}
	}

	s.initialized = true
	s.dirty = false
	log.Printf("[STORE] initialized: dir=%s dims=%d documents=%d", s.dir, s.dims, len(s.docs))
	return nil
}

func (s *Store) load(indexPath, metaPath string) error {
	indexData, err := os.ReadFile(indexPath)
	if err != nil {
		return fmt.Errorf("%w: read index: %v", store.ErrCorruptIndex, err)
	}
	var snap indexSnapshot
	if err := gob.NewDecoder(bytes.NewReader(indexData)).Decode(&snap); err != nil {
		return fmt.Errorf("%w: decode index: %v", store.ErrCorruptIndex, err)
	}
	if snap.Dims != s.dims {
		return fmt.Errorf("%w: index dims %d, configured %d", store.ErrCorruptIndex, snap.Dims, s.dims)
	}
	if len(snap.IDs) != len(snap.Vectors) {
		return fmt.Errorf("%w: %d ids for %d vectors", store.ErrCorruptIndex, len(snap.IDs), len(snap.Vectors))
	}

	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("%w: read metadata: %v", store.ErrCorruptIndex, err)
	}
	var meta metadataSnapshot
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return fmt.Errorf("%w: decode metadata: %v", store.ErrCorruptIndex, err)
	}

	slots := make([]slot, len(snap.IDs))
	for i := range snap.IDs {
		if len(snap.Vectors[i]) != s.dims {
			return fmt.Errorf("%w: vector %d has dims %d", store.ErrCorruptIndex, snap.IDs[i], len(snap.Vectors[i]))
		}
		slots[i] = slot{id: snap.IDs[i], vec: snap.Vectors[i]}
	}
	docs := make(map[int64]chunk.Chunk, len(meta.Documents))
	for _, entry := range meta.Documents {
		docs[entry.ID] = entry.Chunk
	}

	s.slots = slots
	s.docs = docs
	s.nextID = meta.NextID
	return nil
}

// Add appends one embedding and returns the assigned document id.
func (s *Store) Add(ctx context.Context, c chunk.Chunk, embedding []float32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, store.ErrNotInitialized
	}
	return s.addLocked(c, embedding)
}

// AddBatch appends items one by one, skipping those that fail dimension
// validation. The returned ids cover only the stored items.
func (s *Store) AddBatch(ctx context.Context, items []store.Item) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, store.ErrNotInitialized
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		id, err := s.addLocked(it.Chunk, it.Embedding)
		if err != nil {
			log.Printf("[STORE] skipping item (source=%s): %v", it.Chunk.SourcePath, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) addLocked(c chunk.Chunk, embedding []float32) (int64, error) {
	if len(embedding) != s.dims {
		return 0, fmt.Errorf("%w: got %d, want %d", store.ErrDimensionMismatch, len(embedding), s.dims)
	}
	id := s.nextID
	s.nextID++
	s.slots = append(s.slots, slot{id: id, vec: store.Normalize(embedding)})
	s.docs[id] = c
	s.dirty = true
	return id, nil
}

// Search returns up to k results ordered by ascending distance. Index slots
// whose metadata has been deleted are skipped.
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

	query := store.Normalize(embedding)
	results := make([]store.SearchResult, 0, len(s.docs))
	for _, sl := range s.slots {
		c, ok := s.docs[sl.id]
		if !ok {
			continue // deleted; vector slot remains
		}
		results = append(results, store.SearchResult{
			ID:       sl.id,
			Distance: 1 - store.Dot(query, sl.vec),
			Chunk:    c,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if k > len(results) {
		k = len(results)
	}
	if k < 0 {
		k = 0
	}
	return results[:k], nil
}

// Flush persists the index and metadata if anything changed since the last
// persist. Each artifact is written to a temp file and renamed into place.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return store.ErrNotInitialized
	}
	if !s.dirty {
		return nil
	}

	snap := indexSnapshot{
		Dims:    s.dims,
		IDs:     make([]int64, len(s.slots)),
		Vectors: make([][]float32, len(s.slots)),
	}
	for i, sl := range s.slots {
		snap.IDs[i] = sl.id
		snap.Vectors[i] = sl.vec
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	meta := metadataSnapshot{NextID: s.nextID, Documents: make([]docEntry, 0, len(s.docs))}
	for id, c := range s.docs {
		meta.Documents = append(meta.Documents, docEntry{ID: id, Chunk: c})
	}
	sort.Slice(meta.Documents, func(i, j int) bool { return meta.Documents[i].ID < meta.Documents[j].ID })
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	// Index first: a crash between the two writes leaves a stale but
	// consistent metadata file.
	if err := writeAtomic(filepath.Join(s.dir, IndexFileName), buf.Bytes()); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := writeAtomic(filepath.Join(s.dir, MetadataFileName), metaData); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	s.dirty = false
	log.Printf("[STORE] flushed: documents=%d slots=%d", len(s.docs), len(s.slots))
	return nil
}

// Delete removes the document's metadata entry and reports whether it
// existed. The vector slot is not reclaimed.
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
	s.dirty = true
	return true, nil
}

// Clear resets to an empty index with the id counter at zero.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return store.ErrNotInitialized
	}
	s.slots = nil
	s.docs = make(map[int64]chunk.Chunk)
	s.nextID = 0
	s.dirty = true
	return nil
}

// Count returns the number of live documents.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Dimensions returns the configured embedding dimension.
func (s *Store) Dimensions() int { return s.dims }

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func presentName(index bool) string {
	if index {
		return IndexFileName
	}
	return MetadataFileName
}

func absentName(index bool) string {
	if index {
		return MetadataFileName
	}
	return IndexFileName
}
