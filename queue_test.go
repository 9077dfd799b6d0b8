package recall

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PriorityOrder(t *testing.T) {
	q := newTaskQueue()

	q.add(TextTask{Content: "background"}, PriorityBackground)
	q.add(TextTask{Content: "normal"}, PriorityNormal)
	q.add(TextTask{Content: "high"}, PriorityHigh)

	batch := q.take(3)
	require.Len(t, batch, 3)
	assert.Equal(t, "high", batch[0].Payload.(TextTask).Content)
	assert.Equal(t, "normal", batch[1].Payload.(TextTask).Content)
	assert.Equal(t, "background", batch[2].Payload.(TextTask).Content)
}

func TestQueue_EqualPriorityKeepsArrivalOrder(t *testing.T) {
	q := newTaskQueue()

	q.add(TextTask{Content: "first"}, PriorityNormal)
	q.add(TextTask{Content: "second"}, PriorityNormal)
	q.add(TextTask{Content: "third"}, PriorityNormal)

	batch := q.take(3)
	require.Len(t, batch, 3)
	assert.Equal(t, "first", batch[0].Payload.(TextTask).Content)
	assert.Equal(t, "second", batch[1].Payload.(TextTask).Content)
	assert.Equal(t, "third", batch[2].Payload.(TextTask).Content)
}

func TestQueue_TakeBounds(t *testing.T) {
	q := newTaskQueue()
	q.add(TextTask{Content: "only"}, PriorityNormal)

	assert.Nil(t, q.take(0))
	assert.Len(t, q.take(10), 1)
	assert.Nil(t, q.take(10))
	assert.Equal(t, 0, q.len())
}

func TestQueue_AddAssignsUniqueIDs(t *testing.T) {
	q := newTaskQueue()

	a := q.add(TextTask{Content: "a"}, PriorityNormal)
	b := q.add(TextTask{Content: "b"}, PriorityNormal)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
