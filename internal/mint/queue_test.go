package mint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabbylabs/mintpipe/internal/domain"
)

func item(taskID string, priority domain.Priority) Item {
	return Item{TaskID: taskID, Priority: priority, EnqueuedAt: time.Now()}
}

func TestQueuePriorityBands(t *testing.T) {
	t.Parallel()

	q := NewQueue(10)
	require.NoError(t, q.Push(item("t1", domain.PriorityLow)))
	require.NoError(t, q.Push(item("t2", domain.PriorityNormal)))
	require.NoError(t, q.Push(item("t3", domain.PriorityHigh)))
	require.NoError(t, q.Push(item("t4", domain.PriorityNormal)))
	require.NoError(t, q.Push(item("t5", domain.PriorityHigh)))

	var order []string
	for {
		it, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, it.TaskID)
	}

	// high before normal before low, FIFO within a band
	assert.Equal(t, []string{"t3", "t5", "t2", "t4", "t1"}, order)
}

func TestQueueCapacity(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Push(item("t1", domain.PriorityNormal)))
	require.NoError(t, q.Push(item("t2", domain.PriorityNormal)))

	err := q.Push(item("t3", domain.PriorityNormal))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 2, q.Len())
}

func TestQueuePopEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestQueueReseed(t *testing.T) {
	t.Parallel()

	q := NewQueue(10)
	require.NoError(t, q.Push(item("old", domain.PriorityNormal)))

	q.Reseed([]Item{
		item("n1", domain.PriorityNormal),
		item("h1", domain.PriorityHigh),
	})

	assert.Equal(t, 2, q.Len())
	first, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "h1", first.TaskID)
}

func TestQueueReseedRespectsCapacity(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	q.Reseed([]Item{
		item("t1", domain.PriorityNormal),
		item("t2", domain.PriorityNormal),
		item("t3", domain.PriorityNormal),
	})
	assert.Equal(t, 2, q.Len())
}

func TestItemFromTask(t *testing.T) {
	t.Parallel()

	task, err := domain.NewTask(7, "stability", map[string]any{"steps": 40},
		domain.PriorityHigh, &domain.MintRequest{
			Buyer:          "0xbuyer",
			Breed:          "Siamese",
			PromptExtras:   "wearing a hat",
			NegativePrompt: "blurry",
			Regenerate:     true,
		}, time.Minute)
	require.NoError(t, err)

	it := ItemFromTask(task)
	assert.Equal(t, task.ID, it.TaskID)
	assert.Equal(t, int64(7), it.TokenID)
	assert.Equal(t, "stability", it.Provider)
	assert.Equal(t, "Siamese", it.Breed)
	assert.Equal(t, "wearing a hat", it.PromptExtras)
	assert.Equal(t, "blurry", it.NegativePrompt)
	assert.Equal(t, domain.PriorityHigh, it.Priority)
	assert.True(t, it.Regeneration)
	assert.Equal(t, task.CreatedAt, it.EnqueuedAt)
}
