// Package watch feeds filesystem changes into the indexing queue. It wraps
// fsnotify with recursive directory registration, hidden-path filtering and
// a size ceiling, so edits to workspace notes land in the index on the next
// queue drain without an explicit reindex.
package watch

import (
	"context"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Indexer is the queue surface the watcher needs. *recall.Engine satisfies
// it.
type Indexer interface {
	IndexFile(path, content string) (string, error)
}

// Options configures a Watcher.
type Options struct {
	// Extensions is the set of lowercase file extensions (with dot) to
	// index. Empty means DefaultExtensions.
	Extensions map[string]bool

	// MaxFileBytes skips files larger than this. Zero means 1 MiB.
	MaxFileBytes int64
}

// DefaultExtensions mirrors what bulk reindexing picks up.
var DefaultExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".text":     true,
	".log":      true,
}

// Watcher tails a workspace tree and enqueues changed files.
type Watcher struct {
	root    string
	indexer Indexer
	opts    Options
	fsw     *fsnotify.Watcher
}

// New creates a watcher rooted at root. Call Run to start it.
func New(root string, indexer Indexer, opts Options) (*Watcher, error) {
	if opts.Extensions == nil {
		opts.Extensions = DefaultExtensions
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = 1 << 20
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{root: root, indexer: indexer, opts: opts, fsw: fsw}
	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks processing events until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	log.Printf("[WATCH] watching %s", w.root)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[WATCH] watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if isHidden(event.Name, w.root) {
		return
	}

	// New directories need their own watch; fsnotify is not recursive.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				log.Printf("[WATCH] cannot watch %s: %v", event.Name, err)
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}
	if !w.opts.Extensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	info, err := os.Stat(event.Name)
	if err != nil || info.IsDir() {
		return
	}
	if info.Size() > w.opts.MaxFileBytes {
		log.Printf("[WATCH] skipping large file %s (%d bytes)", event.Name, info.Size())
		return
	}
	data, err := os.ReadFile(event.Name)
	if err != nil {
		log.Printf("[WATCH] cannot read %s: %v", event.Name, err)
		return
	}
	if _, err := w.indexer.IndexFile(event.Name, string(data)); err != nil {
		log.Printf("[WATCH] cannot queue %s: %v", event.Name, err)
		return
	}
	log.Printf("[WATCH] queued %s", event.Name)
}

// addRecursive registers dir and every non-hidden subdirectory.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(path, w.root) {
			return filepath.SkipDir
		}
		if name := d.Name(); name == "node_modules" || name == "vendor" {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// isHidden reports whether any path element below root starts with a dot.
func isHidden(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
