package recall

import (
	"time"

	"github.com/recallkit/recall/chunk"
)

// TaskPayload is the closed set of indexable inputs. Exactly one concrete
// type exists per task kind; the drain loop matches them exhaustively.
type TaskPayload interface {
	// Kind names the payload variant for logging.
	Kind() string
}

// TextTask indexes a free-form piece of text.
type TextTask struct {
	Content    string
	SourcePath string
	SessionKey string
	Metadata   map[string]string
}

// FileTask indexes file content. Paths with a markdown extension are routed
// through the markdown-aware chunker.
type FileTask struct {
	Path    string
	Content string
}

// ConversationTask indexes a list of conversation turns.
type ConversationTask struct {
	Turns      []chunk.Turn
	SessionKey string
}

func (TextTask) Kind() string         { return "text" }
func (FileTask) Kind() string         { return "file" }
func (ConversationTask) Kind() string { return "conversation" }

// Task priorities. Any integer works; higher drains first.
const (
	PriorityBackground = 0
	PriorityNormal     = 5
	PriorityHigh       = 10
)

// QueuedTask is a pending indexing request. It is consumed exactly once and
// never mutated after creation; failed tasks are logged and abandoned, never
// retried.
type QueuedTask struct {
	ID        string
	Priority  int
	CreatedAt time.Time
	Payload   TaskPayload
}
