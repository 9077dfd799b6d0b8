// Package llm defines the narrow language-model surface the engine can
// optionally use. The engine never talks to a model SDK directly; callers
// inject a TextCompleter when they want model-backed behavior and omit it
// otherwise.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the model backend cannot be reached or refused
// the request.
var ErrUnavailable = errors.New("llm: backend unavailable")

// TextCompleter produces a single text completion for a prompt. It is the
// only model capability this module depends on.
type TextCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
