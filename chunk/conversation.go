package chunk

import (
	"fmt"
	"strconv"
	"strings"
)

// Metadata keys set on conversation chunks.
const (
	MetadataType         = "type"
	MetadataMessageCount = "messages"

	typeConversation = "conversation"
)

// Turn is a single message in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SplitConversation renders turns as "[Role]: content" lines separated by
// blank lines and chunks the result as plain text. Chunks are tagged with
// the message count and a conversation type marker.
func SplitConversation(turns []Turn, opts Options) []Chunk {
	if len(turns) == 0 {
		return nil
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("[%s]: %s", t.Role, t.Content))
	}

	opts.Metadata = cloneMetadata(opts.Metadata)
	if opts.Metadata == nil {
		opts.Metadata = make(map[string]string, 2)
	}
	opts.Metadata[MetadataType] = typeConversation
	opts.Metadata[MetadataMessageCount] = strconv.Itoa(len(turns))

	return Split(strings.Join(lines, "\n\n"), opts)
}
