package mint

import (
	"errors"
	"sync"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
)

// ErrQueueFull is returned by Push when the queue is at capacity.
var ErrQueueFull = errors.New("mint queue is full")

// Item is one unit of pending work. Items are derived from tasks: the
// authoritative pending set lives in the store and the queue can always be
// rebuilt from it.
type Item struct {
	TaskID         string
	TokenID        int64
	Buyer          string
	Breed          string
	Provider       string
	PromptExtras   string
	NegativePrompt string
	Options        map[string]any
	Priority       domain.Priority
	Force          bool
	Regeneration   bool

	// EnqueuedAt is the task's creation time, used as the FIFO tie-breaker
	// within a priority band.
	EnqueuedAt time.Time
}

// ItemFromTask rebuilds a work item from a persisted task, used when the
// queue is reseeded after a restart.
func ItemFromTask(task *domain.Task) Item {
	item := Item{
		TaskID:     task.ID,
		TokenID:    task.TokenID,
		Provider:   task.Provider,
		Options:    task.ProviderOptions,
		Priority:   task.Priority,
		EnqueuedAt: task.CreatedAt,
	}
	if req := task.Request; req != nil {
		item.Buyer = req.Buyer
		item.Breed = req.Breed
		item.PromptExtras = req.PromptExtras
		item.NegativePrompt = req.NegativePrompt
		item.Force = req.Force
		item.Regeneration = req.Regenerate
	}
	return item
}

// Queue is the in-memory pending work sequence: FIFO within a priority
// band, high drained before normal before low. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	bands    [3][]Item
	capacity int
}

// NewQueue creates a queue holding at most capacity items.
func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Push appends the item to its priority band.
func (q *Queue) Push(item Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() >= q.capacity {
		return ErrQueueFull
	}
	rank := item.Priority.Rank()
	q.bands[rank] = append(q.bands[rank], item)
	return nil
}

// Pop removes and returns the next item to dispatch.
func (q *Queue) Pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for rank := range q.bands {
		if len(q.bands[rank]) == 0 {
			continue
		}
		item := q.bands[rank][0]
		q.bands[rank] = q.bands[rank][1:]
		return item, true
	}
	return Item{}, false
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue) lenLocked() int {
	n := 0
	for rank := range q.bands {
		n += len(q.bands[rank])
	}
	return n
}

// Reseed replaces the queue contents with items rebuilt from the store.
// Items beyond capacity are dropped; they will be picked up by a later
// reseed once the backlog drains.
func (q *Queue) Reseed(items []Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.bands = [3][]Item{}
	for _, item := range items {
		if q.lenLocked() >= q.capacity {
			break
		}
		rank := item.Priority.Rank()
		q.bands[rank] = append(q.bands[rank], item)
	}
}
