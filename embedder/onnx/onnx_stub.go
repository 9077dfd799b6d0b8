//go:build !onnx

// Package onnx embeds text locally with ONNX Runtime. Without the "onnx"
// build tag this stub keeps the package buildable; New always fails.
package onnx

import (
	"context"
	"fmt"

	"github.com/recallkit/recall/embedder"
)

// Config configures the local embedder. See the tagged implementation.
type Config struct {
	ModelPath         string
	TokenizerPath     string
	LibraryPath       string
	Dimensions        int
	MaxSequenceLength int
}

// Provider is unavailable without the "onnx" build tag.
type Provider struct{}

var _ embedder.Provider = (*Provider)(nil)

// New fails: the binary was built without ONNX support.
func New(cfg Config) (*Provider, error) {
	return nil, fmt.Errorf("onnx: built without the onnx build tag")
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("onnx: built without the onnx build tag")
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("onnx: built without the onnx build tag")
}

func (p *Provider) Dimensions() int { return 0 }

// Close is a no-op in the stub.
func (p *Provider) Close() error { return nil }
