// Package sqlite implements store.Store on a single SQLite database file
// using the pure Go modernc.org/sqlite driver.
//
// Unlike the flat backend, rows are durable as soon as their transaction
// commits, so Flush only checkpoints the id counter. Deletion removes the
// whole row: this backend can reclaim vector storage, which the interface
// explicitly permits. The id counter is persisted separately so ids are
// never reused even after the highest row is deleted.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/recallkit/recall/chunk"
	"github.com/recallkit/recall/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id           INTEGER PRIMARY KEY,
	chunk_id     TEXT NOT NULL,
	text         TEXT NOT NULL,
	source_path  TEXT NOT NULL DEFAULT '',
	chunk_offset INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	session_key  TEXT NOT NULL DEFAULT '',
	metadata     TEXT NOT NULL DEFAULT '{}',
	vector       TEXT NOT NULL,
	dim          INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the SQLite-backed implementation of store.Store.
type Store struct {
	path string
	dims int

	mu          sync.Mutex
	initialized bool
	db          *sql.DB
	nextID      int64
}

var _ store.Store = (*Store)(nil)

// New creates a SQLite store writing to the database file at path.
func New(path string, dims int) *Store {
	return &Store{path: path, dims: dims}
}

// Initialize opens the database, applies the schema and loads the id
// counter.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return fmt.Errorf("%w: apply schema: %v", store.ErrCorruptIndex, err)
	}

	var raw string
	err = db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key='next_id'`).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
		s.nextID = 0
	case err != nil:
		db.Close()
		return fmt.Errorf("%w: load id counter: %v", store.ErrCorruptIndex, err)
	default:
		s.nextID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			db.Close()
			return fmt.Errorf("%w: bad id counter %q", store.ErrCorruptIndex, raw)
		}
	}

	s.db = db
	s.initialized = true
	log.Printf("[SQLITE] initialized: path=%s dims=%d documents=%d", s.path, s.dims, s.countLocked(ctx))
	return nil
}

// Add inserts one document.
func (s *Store) Add(ctx context.Context, c chunk.Chunk, embedding []float32) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return 0, store.ErrNotInitialized
	}
	return s.addLocked(ctx, c, embedding)
}

// AddBatch inserts items one by one, skipping dimension mismatches.
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
			log.Printf("[SQLITE] skipping item (source=%s): %v", it.Chunk.SourcePath, err)
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

	vecJSON, err := json.Marshal(store.Normalize(embedding))
	if err != nil {
		return 0, fmt.Errorf("encode vector: %w", err)
	}
	metaJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}

	id := s.nextID
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents(id, chunk_id, text, source_path, chunk_offset, created_at, session_key, metadata, vector, dim)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		id, c.ID, c.Text, c.SourcePath, c.Offset, c.Timestamp.Format(time.RFC3339Nano),
		c.SessionKey, string(metaJSON), string(vecJSON), s.dims,
	); err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO store_meta(key, value) VALUES('next_id', ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		strconv.FormatInt(id+1, 10),
	); err != nil {
		return 0, fmt.Errorf("update id counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.nextID = id + 1
	return id, nil
}

// Search scans all stored vectors and ranks by inner product. Vectors are
// normalized at insert time, so the dot product is the cosine similarity.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]store.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, store.ErrNotInitialized
	}
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", store.ErrDimensionMismatch, len(embedding), s.dims)
	}

	query := store.Normalize(embedding)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chunk_id, text, source_path, chunk_offset, created_at, session_key, metadata, vector
		 FROM documents WHERE dim=?`, s.dims)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.SearchResult
	for rows.Next() {
		var (
			id                                    int64
			chunkID, text, sourcePath             string
			offset                                int
			createdAt, sessionKey, metaRaw, vecRaw string
		)
		if err := rows.Scan(&id, &chunkID, &text, &sourcePath, &offset, &createdAt, &sessionKey, &metaRaw, &vecRaw); err != nil {
			return nil, err
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vecRaw), &vec); err != nil || len(vec) != s.dims {
			continue
		}
		var metadata map[string]string
		if err := json.Unmarshal([]byte(metaRaw), &metadata); err != nil {
			metadata = nil
		}
		ts, _ := time.Parse(time.RFC3339Nano, createdAt)
		results = append(results, store.SearchResult{
			ID:       id,
			Distance: 1 - store.Dot(query, vec),
			Chunk: chunk.Chunk{
				ID:         chunkID,
				Text:       text,
				SourcePath: sourcePath,
				Offset:     offset,
				Timestamp:  ts,
				SessionKey: sessionKey,
				Metadata:   metadata,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

// Flush is a near no-op: rows are durable on commit.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return store.ErrNotInitialized
	}
	return nil
}

// Delete removes the document row entirely.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return false, store.ErrNotInitialized
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Clear removes all rows and resets the id counter.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return store.ErrNotInitialized
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM store_meta WHERE key='next_id'`); err != nil {
		return err
	}
	s.nextID = 0
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return 0
	}
	return s.countLocked(context.Background())
}

func (s *Store) countLocked(ctx context.Context) int {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Dimensions returns the configured embedding dimension.
func (s *Store) Dimensions() int { return s.dims }

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.initialized = false
	return err
}
