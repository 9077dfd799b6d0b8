// Package chunk splits conversational text, markdown and file content into
// overlapping, boundary-aware segments sized for embedding.
package chunk

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default sizing, in characters (runes).
const (
	DefaultTargetSize = 1000
	DefaultOverlap    = 200
)

// Chunk is a bounded contiguous slice of source text prepared for embedding.
// A Chunk is immutable once created.
type Chunk struct {
	ID         string            `json:"id"`
	Text       string            `json:"text"`
	SourcePath string            `json:"source_path"`
	Offset     int               `json:"offset"`
	Timestamp  time.Time         `json:"timestamp"`
	SessionKey string            `json:"session_key,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Options controls how text is split.
type Options struct {
	// TargetSize is the desired chunk length in runes (default 1000).
	TargetSize int

	// Overlap is the number of runes shared between consecutive chunks
	// (default 200). Must be smaller than TargetSize.
	Overlap int

	// SourcePath is recorded on every emitted chunk.
	SourcePath string

	// SessionKey optionally ties chunks to a conversation session.
	SessionKey string

	// Metadata is copied onto every emitted chunk.
	Metadata map[string]string
}

func (o Options) normalized() Options {
	if o.TargetSize <= 0 {
		o.TargetSize = DefaultTargetSize
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.TargetSize {
		o.Overlap = o.TargetSize / 4
	}
	return o
}

// Boundary candidates, tried in order. Earlier classes are preferred:
// paragraph break, line break, CJK sentence end, Latin sentence end,
// comma/semicolon.
var boundaryClasses = [][]string{
	{"\n\n"},
	{"\n"},
	{"。", "！", "？"},
	{".", "!", "?"},
	{",", ";", "，", "；"},
}

// Split cuts text into overlapping chunks.
//
// Empty or whitespace-only input yields no chunks. Input no longer than the
// target size yields exactly one chunk holding the trimmed text at offset 0.
// Longer input is scanned with a sliding window of TargetSize advancing by
// TargetSize-Overlap; each window is shrunk to end at the last natural
// boundary found in its final quarter. The scan cursor advances by the full
// step regardless of where a boundary landed.
func Split(text string, opts Options) []Chunk {
	opts = opts.normalized()

	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= opts.TargetSize {
		return []Chunk{newChunk(strings.TrimSpace(text), 0, opts)}
	}

	step := opts.TargetSize - opts.Overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + opts.TargetSize
		if end > len(runes) {
			end = len(runes)
		} else {
			end = shrinkToBoundary(runes, start, end)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece == "" {
			continue
		}
		chunks = append(chunks, newChunk(piece, start, opts))
	}
	return chunks
}

// shrinkToBoundary moves end back to just after the last natural boundary in
// the final quarter of the window. If no boundary class matches, the raw
// window end is kept.
func shrinkToBoundary(runes []rune, start, end int) int {
	window := string(runes[start:end])
	searchFrom := len([]rune(window)) * 3 / 4
	tail := string([]rune(window)[searchFrom:])

	for _, class := range boundaryClasses {
		best := -1
		bestLen := 0
		for _, marker := range class {
			if i := strings.LastIndex(tail, marker); i >= 0 && i > best {
				best = i
				bestLen = len([]rune(marker))
			}
		}
		if best >= 0 {
			cut := searchFrom + len([]rune(tail[:best])) + bestLen
			return start + cut
		}
	}
	return end
}

func newChunk(text string, offset int, opts Options) Chunk {
	return Chunk{
		ID:         uuid.New().String(),
		Text:       text,
		SourcePath: opts.SourcePath,
		Offset:     offset,
		Timestamp:  time.Now(),
		SessionKey: opts.SessionKey,
		Metadata:   cloneMetadata(opts.Metadata),
	}
}

func cloneMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
