package mint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// TickReport summarizes one tick for the cron response.
type TickReport struct {
	Swept      int   `json:"swept"`
	Dispatched int   `json:"dispatched"`
	DurationMs int64 `json:"durationMs"`
}

// TickHandler is the idempotent, stateless entry point driven by the cron
// trigger (external hit on /cron or the in-process scheduler). Each tick
// sweeps deadlines, prunes aged terminal tasks, reseeds the queue when it
// is empty, and drains it under the wall-clock budget.
type TickHandler struct {
	logger     *slog.Logger
	states     store.StateStore
	tasks      store.TaskStore
	sweeper    *Sweeper
	dispatcher *Dispatcher
	queue      *Queue
	budget     time.Duration
}

// NewTickHandler wires the tick loop. budget bounds the drain phase of a
// single tick.
func NewTickHandler(
	logger *slog.Logger,
	states store.StateStore,
	tasks store.TaskStore,
	sweeper *Sweeper,
	dispatcher *Dispatcher,
	queue *Queue,
	budget time.Duration,
) *TickHandler {
	return &TickHandler{
		logger:     logger,
		states:     states,
		tasks:      tasks,
		sweeper:    sweeper,
		dispatcher: dispatcher,
		queue:      queue,
		budget:     budget,
	}
}

// Tick runs one full coordinator cycle. The sweep always runs before any
// new dispatch, so a task cannot be observed PROCESSING past its deadline
// after Tick returns.
func (h *TickHandler) Tick(ctx context.Context) (*TickReport, error) {
	start := time.Now()

	state, err := h.states.LoadState(ctx, domain.StateTypeCron, &domain.ProcessState{})
	if err != nil {
		return nil, fmt.Errorf("failed to load cron state: %w", err)
	}

	swept, err := h.sweeper.SweepTimeouts(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := h.sweeper.CleanupTerminal(ctx); err != nil {
		// Retention is housekeeping; a failed delete must not block dispatch.
		h.logger.WarnContext(ctx, "terminal task cleanup failed", "error", err)
	}

	if h.queue.Len() == 0 {
		if err := h.reseed(ctx); err != nil {
			return nil, err
		}
	}

	dispatched, err := h.dispatcher.Drain(ctx, h.budget)
	if err != nil {
		return nil, fmt.Errorf("drain aborted: %w", err)
	}

	if err := h.updateState(ctx, state); err != nil {
		h.logger.WarnContext(ctx, "failed to persist cron state", "error", err)
	}

	report := &TickReport{
		Swept:      swept,
		Dispatched: dispatched,
		DurationMs: time.Since(start).Milliseconds(),
	}
	h.logger.InfoContext(ctx, "tick complete",
		"swept", report.Swept,
		"dispatched", report.Dispatched,
		"duration_ms", report.DurationMs)
	return report, nil
}

// reseed rebuilds the queue from the store's non-terminal tasks in
// created_at order, the authoritative pending set.
func (h *TickHandler) reseed(ctx context.Context) error {
	pending, err := h.tasks.FindTasks(ctx, store.TaskFilter{NonTerminal: true})
	if err != nil {
		return fmt.Errorf("failed to reseed queue: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	items := make([]Item, 0, len(pending))
	for _, task := range pending {
		items = append(items, ItemFromTask(task))
	}
	h.queue.Reseed(items)

	h.logger.InfoContext(ctx, "queue reseeded from store",
		"items", len(items))
	return nil
}

// updateState records the post-drain pending set, the tokens that have
// completed, and the high-water block from their finalize receipts, then
// persists the cron document for the next invocation.
func (h *TickHandler) updateState(ctx context.Context, state *domain.ProcessState) error {
	pending, err := h.tasks.FindTasks(ctx, store.TaskFilter{NonTerminal: true})
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(pending))
	for _, task := range pending {
		ids = append(ids, task.ID)
	}
	state.PendingTasks = ids

	completed, err := h.tasks.FindTasks(ctx, store.TaskFilter{
		Statuses: []domain.Status{domain.StatusCompleted},
	})
	if err != nil {
		return err
	}
	for _, task := range completed {
		state.MarkProcessed(task.TokenID)
		if task.Result != nil {
			state.Advance(task.Result.BlockNumber)
		}
	}

	return h.states.SaveState(ctx, domain.StateTypeCron, state)
}
