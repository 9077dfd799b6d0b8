package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	assert.Nil(t, Split("", Options{}))
	assert.Nil(t, Split("   \n\t  ", Options{}))
}

func TestSplit_ShortInput(t *testing.T) {
	chunks := Split("  a short note about caching  ", Options{})

	require.Len(t, chunks, 1)
	assert.Equal(t, "a short note about caching", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Offset)
	assert.NotEmpty(t, chunks[0].ID)
	assert.False(t, chunks[0].Timestamp.IsZero())
}

func TestSplit_OptionsPropagate(t *testing.T) {
	chunks := Split("remember this", Options{
		SourcePath: "/notes/a.md",
		SessionKey: "sess-1",
		Metadata:   map[string]string{"k": "v"},
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, "/notes/a.md", chunks[0].SourcePath)
	assert.Equal(t, "sess-1", chunks[0].SessionKey)
	assert.Equal(t, "v", chunks[0].Metadata["k"])
}

func TestSplit_MetadataIsCopied(t *testing.T) {
	meta := map[string]string{"k": "v"}
	chunks := Split("remember this", Options{Metadata: meta})

	require.Len(t, chunks, 1)
	meta["k"] = "changed"
	assert.Equal(t, "v", chunks[0].Metadata["k"])
}

func TestSplit_WindowAdvancesByStep(t *testing.T) {
	text := strings.Repeat("word! ", 100) // 600 runes
	opts := Options{TargetSize: 100, Overlap: 30}

	chunks := Split(text, opts)

	require.Greater(t, len(chunks), 1)
	step := opts.TargetSize - opts.Overlap
	for i, c := range chunks {
		assert.Equal(t, i*step, c.Offset)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), opts.TargetSize)
	}
}

func TestSplit_ShrinksToSentenceBoundary(t *testing.T) {
	text := strings.Repeat("this sentence ends here. ", 40) // 1000 runes
	chunks := Split(text, Options{TargetSize: 100, Overlap: 20})

	require.Greater(t, len(chunks), 1)
	// Every window except the final one should have been cut at a period.
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c.Text, "."), "chunk %q should end at a sentence boundary", c.Text)
	}
}

func TestSplit_PrefersParagraphBoundary(t *testing.T) {
	para := strings.Repeat("x", 80)
	text := para + "\n\n" + para + ". more text\n\n" + para
	chunks := Split(text, Options{TargetSize: 100, Overlap: 20})

	require.Greater(t, len(chunks), 1)
	// The first window [0,100) has a paragraph break at 80..82, inside the
	// final quarter, so the cut lands there rather than at the later period.
	assert.Equal(t, para, chunks[0].Text)
}

func TestSplit_CJKBoundary(t *testing.T) {
	text := strings.Repeat("这是一个关于缓存设计的句子。", 40) // 560 runes
	chunks := Split(text, Options{TargetSize: 100, Overlap: 20})

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c.Text, "。"), "chunk %q should end at a CJK sentence boundary", c.Text)
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 60)
	opts := Options{TargetSize: 200, Overlap: 40}

	a := Split(text, opts)
	b := Split(text, opts)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Text, b[i].Text)
		assert.Equal(t, a[i].Offset, b[i].Offset)
	}
}

func TestSplit_DegenerateOverlap(t *testing.T) {
	// Overlap >= TargetSize would stall the cursor; it is clamped instead.
	text := strings.Repeat("abcdefghij ", 50)
	chunks := Split(text, Options{TargetSize: 100, Overlap: 100})

	assert.NotEmpty(t, chunks)
}

func TestSplitMarkdown_Sections(t *testing.T) {
	text := `intro before any header

# Setup

install the thing

## Configuration

edit the file

not a # header line`

	chunks := SplitMarkdown(text, Options{})

	require.Len(t, chunks, 3)
	assert.NotContains(t, chunks[0].Metadata, MetadataSection)
	assert.Equal(t, "Setup", chunks[1].Metadata[MetadataSection])
	assert.Equal(t, "Configuration", chunks[2].Metadata[MetadataSection])

	// The header line stays in the section body.
	assert.True(t, strings.HasPrefix(chunks[1].Text, "# Setup"))
	assert.Contains(t, chunks[2].Text, "not a # header line")
}

func TestSplitMarkdown_NoHeaders(t *testing.T) {
	chunks := SplitMarkdown("plain text without headers", Options{})

	require.Len(t, chunks, 1)
	assert.NotContains(t, chunks[0].Metadata, MetadataSection)
}

func TestSplitConversation(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "what cache did we pick?"},
		{Role: "assistant", Content: "we settled on ristretto"},
	}

	chunks := SplitConversation(turns, Options{SessionKey: "sess-9"})

	require.Len(t, chunks, 1)
	assert.Equal(t, "[user]: what cache did we pick?\n\n[assistant]: we settled on ristretto", chunks[0].Text)
	assert.Equal(t, "conversation", chunks[0].Metadata[MetadataType])
	assert.Equal(t, "2", chunks[0].Metadata[MetadataMessageCount])
	assert.Equal(t, "sess-9", chunks[0].SessionKey)
}

func TestSplitConversation_Empty(t *testing.T) {
	assert.Nil(t, SplitConversation(nil, Options{}))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	// 8 Latin runes / 4 = 2.
	assert.Equal(t, 2, EstimateTokens("abcdefgh"))
	// 3 CJK runes / 1.5 = 2.
	assert.Equal(t, 2, EstimateTokens("你好吗"))
	// Mixed: 3/1.5 + 4/4 = 3.
	assert.Equal(t, 3, EstimateTokens("你好吗abcd"))
}
