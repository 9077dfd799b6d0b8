package recall

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/recallkit/recall/store"
)

// dedupePrefix is how many leading runes of a passage are compared when
// collapsing near-identical results. Overlapping chunks from the same source
// routinely share long prefixes.
const dedupePrefix = 200

// RetrievalResult is a ranked, deduplicated retrieval outcome. A nil result
// means "no memory": empty store, gated query, cold start, or a provider
// failure absorbed by the best-effort policy.
type RetrievalResult struct {
	Query         string               `json:"query"`
	Results       []store.SearchResult `json:"results,omitempty"`
	FormattedText string               `json:"formatted_text"`
	ElapsedMs     int64                `json:"elapsed_ms"`
}

// resultCache is the single-slot retrieval cache: at most one live entry,
// keyed on the exact query string.
type resultCache struct {
	mu         sync.Mutex
	query      string
	formatted  string
	capturedAt time.Time
}

func (c *resultCache) get(query string, ttl time.Duration) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.query != query || c.query == "" {
		return "", false
	}
	if time.Since(c.capturedAt) > ttl {
		return "", false
	}
	return c.formatted, true
}

func (c *resultCache) put(query, formatted string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.query = query
	c.formatted = formatted
	c.capturedAt = time.Now()
}

// greetings are rejected as retrieval queries when they match exactly
// (case-insensitive).
var greetings = []string{
	"hi", "hello", "hey", "yo", "ok", "okay", "yes", "no",
	"thanks", "thank you", "bye", "goodbye", "good morning", "good night",
	"你好", "谢谢", "再见", "好的",
}

// ShouldRetrieve is the caller-facing gate deciding whether a query is worth
// a retrieval round trip. It rejects empty strings, command invocations,
// very short queries, bare greetings, and emoji-only content.
func (e *Engine) ShouldRetrieve(query string) bool {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false
	}
	if strings.HasPrefix(trimmed, "/") {
		return false
	}
	if utf8.RuneCountInString(trimmed) < e.cfg.MinQueryLength {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, g := range greetings {
		if lower == g {
			return false
		}
	}
	return hasSubstance(trimmed)
}

// hasSubstance reports whether s contains at least one letter or digit, so
// emoji-and-punctuation-only strings are filtered out.
func hasSubstance(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return true
		}
	}
	return false
}

// Retrieve answers a query with ranked, deduplicated passages within the
// advisory latency budget. Absence of memory is a normal outcome, not an
// error: an uninitialized or empty store, a failing provider, or a fully
// deduplicated-away result all return nil. A repeat of the same query within
// the cache TTL short-circuits to the cached formatted text without touching
// the store or the provider.
func (e *Engine) Retrieve(ctx context.Context, query string, topK int) (*RetrievalResult, error) {
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	if formatted, ok := e.cache.get(query, e.cfg.cacheTTL()); ok {
		log.Printf("[RETRIEVE] cache hit for %q", truncate(query, 50))
		return &RetrievalResult{Query: query, FormattedText: formatted}, nil
	}

	if !e.initialized.Load() || e.store.Count() == 0 {
		return nil, nil
	}

	start := time.Now()
	vec, err := e.provider.Embed(ctx, query)
	if err != nil {
		log.Printf("[RETRIEVE] embed failed, returning no memory: %v", err)
		return nil, nil
	}
	results, err := e.store.Search(ctx, vec, topK)
	if err != nil {
		log.Printf("[RETRIEVE] search failed, returning no memory: %v", err)
		return nil, nil
	}
	elapsed := time.Since(start)
	if elapsed > e.cfg.latencyWarn() {
		log.Printf("[RETRIEVE] slow retrieval: %s for %q (budget %s)", elapsed, truncate(query, 50), e.cfg.latencyWarn())
	}

	deduped := dedupeResults(results)
	if len(deduped) == 0 {
		return nil, nil
	}

	formatted := e.formatResults(deduped)
	e.cache.put(query, formatted)

	return &RetrievalResult{
		Query:         query,
		Results:       deduped,
		FormattedText: formatted,
		ElapsedMs:     elapsed.Milliseconds(),
	}, nil
}

// dedupeResults collapses results whose leading runes match, keeping the
// highest-ranked occurrence and preserving rank order.
func dedupeResults(results []store.SearchResult) []store.SearchResult {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		key := runePrefix(r.Chunk.Text, dedupePrefix)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// formatResults renders passages as a numbered, blank-line separated
// listing with workspace-relative sources and two-decimal relevance.
func (e *Engine) formatResults(results []store.SearchResult) string {
	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = fmt.Sprintf("[%d] (source: %s, relevance: %.2f) %s",
			i+1, e.displaySource(r.Chunk.SourcePath), 1-r.Distance, r.Chunk.Text)
	}
	return strings.Join(entries, "\n\n")
}

// displaySource renders a source path relative to the workspace root when
// possible. Chunks without a path (conversation captures) show as memory.
func (e *Engine) displaySource(path string) string {
	if path == "" {
		return "memory"
	}
	if e.cfg.WorkspaceRoot != "" {
		if rel, err := filepath.Rel(e.cfg.WorkspaceRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return path
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
