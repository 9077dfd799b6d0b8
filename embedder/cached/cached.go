// Package cached wraps an embedder.Provider with a ristretto memoization
// cache so repeated texts (re-indexed files, repeated queries) skip the
// provider entirely.
package cached

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/recallkit/recall/embedder"
)

// Config tunes the cache.
type Config struct {
	// MaxBytes caps the approximate memory spent on cached vectors
	// (default 64 MiB).
	MaxBytes int64

	// TTL expires entries after a fixed age. Zero means no expiry.
	TTL time.Duration
}

// Provider memoizes embeddings by exact text.
type Provider struct {
	inner embedder.Provider
	cache *ristretto.Cache
	ttl   time.Duration
	cost  int64
}

var _ embedder.Provider = (*Provider)(nil)

// New wraps inner with a memoization cache.
func New(inner embedder.Provider, cfg Config) (*Provider, error) {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Provider{
		inner: inner,
		cache: cache,
		ttl:   cfg.TTL,
		cost:  int64(inner.Dimensions()) * 4,
	}, nil
}

// Embed returns the cached vector for text, or asks the inner provider and
// caches the result.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := p.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := p.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	p.set(text, vec)
	return vec, nil
}

// EmbedBatch serves cache hits locally and batches only the misses through
// the inner provider.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if v, ok := p.cache.Get(t); ok {
			out[i] = v.([]float32)
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := p.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", embedder.ErrUnavailable, len(vecs), len(missTexts))
	}
	for i, vec := range vecs {
		out[missIdx[i]] = vec
		p.set(missTexts[i], vec)
	}
	return out, nil
}

// Dimensions returns the inner provider's dimension.
func (p *Provider) Dimensions() int { return p.inner.Dimensions() }

// Wait blocks until buffered cache writes are applied. Intended for tests.
func (p *Provider) Wait() { p.cache.Wait() }

// Close releases cache resources.
func (p *Provider) Close() { p.cache.Close() }

func (p *Provider) set(text string, vec []float32) {
	if p.ttl > 0 {
		p.cache.SetWithTTL(text, vec, p.cost, p.ttl)
		return
	}
	p.cache.Set(text, vec, p.cost)
}
