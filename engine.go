package recall

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/recallkit/recall/chunk"
	"github.com/recallkit/recall/embedder"
	"github.com/recallkit/recall/store"
)

// Engine ties the chunker, task queue, embedding provider and vector store
// into one explicitly owned instance. Lifecycle: Initialize, Start (optional
// background draining), operate, Shutdown.
//
// The drain loop is the only write path into the store. Searches may
// interleave freely; the store serializes its own state.
type Engine struct {
	cfg      *Config
	store    store.Store
	provider embedder.Provider
	queue    *taskQueue
	cache    *resultCache

	initialized atomic.Bool
	processing  atomic.Bool
	started     atomic.Bool

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// SearchHit is one search result in the engine's caller-facing shape.
type SearchHit struct {
	ID        int64     `json:"id"`
	Distance  float64   `json:"distance"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// ReindexReport summarizes a workspace-wide bulk indexing pass.
type ReindexReport struct {
	Indexed int `json:"indexed"`
	Errors  int `json:"errors"`
}

// Stats is a point-in-time snapshot of engine state.
type Stats struct {
	Initialized   bool `json:"initialized"`
	DocumentCount int  `json:"document_count"`
	QueueLength   int  `json:"queue_length"`
	IsProcessing  bool `json:"is_processing"`
}

// New creates an engine. Call Initialize before any other operation.
func New(cfg *Config, st store.Store, provider embedder.Provider) *Engine {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}
	return &Engine{
		cfg:      cfg,
		store:    st,
		provider: provider,
		queue:    newTaskQueue(),
		cache:    &resultCache{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Initialize loads or creates the underlying store. A corrupt persistence
// pair propagates to the caller, who decides whether to rebuild; the engine
// itself does not auto-recover.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.store.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	e.initialized.Store(true)
	return nil
}

// Start launches the background drain ticker. It returns immediately and is
// idempotent.
func (e *Engine) Start(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.cfg.indexInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-e.stop:
				return
			case <-ticker.C:
				if err := e.DrainOnce(ctx); err != nil {
					log.Printf("[QUEUE] drain failed: %v", err)
				}
			}
		}
	}()
}

// Shutdown stops the drain ticker and flushes the store.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.stopOnce.Do(func() { close(e.stop) })
	if e.started.Load() {
		select {
		case <-e.done:
		case <-ctx.Done():
		}
	}
	if !e.initialized.Load() {
		return nil
	}
	return e.store.Flush(ctx)
}

// Index enqueues an indexing task and returns its id.
func (e *Engine) Index(payload TaskPayload, priority int) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("nil task payload")
	}
	id := e.queue.add(payload, priority)
	log.Printf("[QUEUE] queued %s task %s (priority=%d, pending=%d)", payload.Kind(), id, priority, e.queue.len())
	return id, nil
}

// IndexText enqueues plain text at normal priority.
func (e *Engine) IndexText(content, sourcePath string) (string, error) {
	return e.Index(TextTask{Content: content, SourcePath: sourcePath}, PriorityNormal)
}

// IndexFile enqueues file content at normal priority.
func (e *Engine) IndexFile(path, content string) (string, error) {
	return e.Index(FileTask{Path: path, Content: content}, PriorityNormal)
}

// IndexConversation enqueues conversation turns at high priority; fresh
// dialogue is what retrieval is most likely to be asked about.
func (e *Engine) IndexConversation(turns []chunk.Turn, sessionKey string) (string, error) {
	return e.Index(ConversationTask{Turns: turns, SessionKey: sessionKey}, PriorityHigh)
}

// DrainOnce processes at most one batch of pending tasks: chunk, embed in
// one batched provider call, store, then flush once. If a previous drain is
// still running the call is a no-op, so overlapping ticks never pile up.
func (e *Engine) DrainOnce(ctx context.Context) error {
	if !e.processing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.processing.Store(false)

	if !e.initialized.Load() {
		return store.ErrNotInitialized
	}

	batch := e.queue.take(e.cfg.QueueBatchSize)
	if len(batch) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.drainTimeout())
	defer cancel()

	var items []store.Item
	for _, task := range batch {
		chunks, err := e.chunkTask(task)
		if err != nil {
			log.Printf("[QUEUE] abandoning task %s: %v", task.ID, err)
			continue
		}
		if len(chunks) == 0 {
			continue // nothing to index; dropped silently
		}
		for _, c := range chunks {
			items = append(items, store.Item{Chunk: c})
		}
	}
	if len(items) == 0 {
		return nil
	}

	texts := make([]string, len(items))
	for i := range items {
		texts[i] = items[i].Chunk.Text
	}
	vecs, err := e.provider.EmbedBatch(ctx, texts)
	if err != nil {
		log.Printf("[QUEUE] abandoning batch of %d tasks: embed: %v", len(batch), err)
		return fmt.Errorf("embed batch: %w", err)
	}
	if len(vecs) != len(items) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks", embedder.ErrUnavailable, len(vecs), len(items))
	}
	for i := range items {
		items[i].Embedding = vecs[i]
	}

	ids, err := e.store.AddBatch(ctx, items)
	if err != nil {
		return fmt.Errorf("store batch: %w", err)
	}
	if err := e.store.Flush(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	log.Printf("[QUEUE] drained %d tasks into %d documents", len(batch), len(ids))
	return nil
}

// chunkTask routes a task to the chunker matching its kind.
func (e *Engine) chunkTask(task QueuedTask) ([]chunk.Chunk, error) {
	opts := chunk.Options{
		TargetSize: e.cfg.ChunkSize,
		Overlap:    e.cfg.ChunkOverlap,
	}
	switch p := task.Payload.(type) {
	case TextTask:
		opts.SourcePath = p.SourcePath
		opts.SessionKey = p.SessionKey
		opts.Metadata = p.Metadata
		return chunk.Split(p.Content, opts), nil
	case FileTask:
		opts.SourcePath = p.Path
		if isMarkdown(p.Path) {
			return chunk.SplitMarkdown(p.Content, opts), nil
		}
		return chunk.Split(p.Content, opts), nil
	case ConversationTask:
		opts.SessionKey = p.SessionKey
		return chunk.SplitConversation(p.Turns, opts), nil
	default:
		return nil, fmt.Errorf("unknown task payload %T", task.Payload)
	}
}

// Search embeds the query and returns raw neighbours without the retrieval
// path's gating, dedup or caching.
func (e *Engine) Search(ctx context.Context, query string, topK int) ([]SearchHit, error) {
	if !e.initialized.Load() {
		return nil, store.ErrNotInitialized
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	vec, err := e.provider.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := e.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, err
	}
	hits := make([]SearchHit, len(results))
	for i, r := range results {
		hits[i] = SearchHit{
			ID:        r.ID,
			Distance:  r.Distance,
			Text:      r.Chunk.Text,
			Source:    r.Chunk.SourcePath,
			Timestamp: r.Chunk.Timestamp,
		}
	}
	return hits, nil
}

// indexableExtensions lists the file types bulk reindexing picks up.
var indexableExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".text":     true,
	".log":      true,
}

// ReindexWorkspace walks the workspace root and enqueues every indexable
// file at background priority. Files over the size ceiling are skipped and
// logged; unreadable files count as errors. The report counts enqueued
// tasks, not yet-drained documents.
func (e *Engine) ReindexWorkspace(ctx context.Context) (ReindexReport, error) {
	var report ReindexReport
	root := e.cfg.WorkspaceRoot
	if root == "" {
		return report, fmt.Errorf("no workspace root configured")
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			report.Errors++
			return nil
		}
		if d.IsDir() {
			if skipDir(d.Name(), path == root) {
				return filepath.SkipDir
			}
			return nil
		}
		if !indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			report.Errors++
			return nil
		}
		if info.Size() > e.cfg.MaxFileBytes {
			log.Printf("[QUEUE] skipping large file %s (%d bytes)", path, info.Size())
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			report.Errors++
			return nil
		}
		if _, err := e.Index(FileTask{Path: path, Content: string(data)}, PriorityBackground); err != nil {
			report.Errors++
			return nil
		}
		report.Indexed++
		return nil
	})
	if err != nil {
		return report, err
	}
	log.Printf("[QUEUE] reindex queued %d files (%d errors)", report.Indexed, report.Errors)
	return report, nil
}

func skipDir(name string, isRoot bool) bool {
	if isRoot {
		return false
	}
	return strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor"
}

// Stats returns a snapshot of engine state.
func (e *Engine) Stats() Stats {
	s := Stats{
		Initialized:  e.initialized.Load(),
		QueueLength:  e.queue.len(),
		IsProcessing: e.processing.Load(),
	}
	if s.Initialized {
		s.DocumentCount = e.store.Count()
	}
	return s
}

func isMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}
