package recall

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// taskQueue holds pending indexing tasks ordered by descending priority.
// The sort is stable, so equal priorities keep arrival order.
type taskQueue struct {
	mu      sync.Mutex
	pending []QueuedTask
}

func newTaskQueue() *taskQueue {
	return &taskQueue{}
}

// add assigns an id and creation time, appends the task and re-sorts.
func (q *taskQueue) add(payload TaskPayload, priority int) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	task := QueuedTask{
		ID:        uuid.New().String(),
		Priority:  priority,
		CreatedAt: time.Now(),
		Payload:   payload,
	}
	q.pending = append(q.pending, task)
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].Priority > q.pending[j].Priority
	})
	return task.ID
}

// take removes and returns up to n tasks from the front of the queue.
func (q *taskQueue) take(n int) []QueuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.pending) {
		n = len(q.pending)
	}
	if n <= 0 {
		return nil
	}
	batch := make([]QueuedTask, n)
	copy(batch, q.pending[:n])
	q.pending = append(q.pending[:0], q.pending[n:]...)
	return batch
}

func (q *taskQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
