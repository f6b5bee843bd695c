package mint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tabbylabs/mintpipe/internal/chain"
	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/provider"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// Dispatcher pulls work items off the queue and runs them through the
// provider fallback chain, writing every transition back to the store with
// a compare-and-swap on the observed status. The sweeper may time a task
// out while its provider call is in flight; the stale-update error from
// the store is the signal to discard the late result.
type Dispatcher struct {
	logger      *slog.Logger
	txs         store.TxRunner
	tasks       store.TaskStore
	metrics     store.MetricsStore
	registry    *provider.Registry
	finalizer   chain.Finalizer
	queue       *Queue
	concurrency int
}

// NewDispatcher wires the worker pool. concurrency bounds the number of
// in-flight provider calls.
func NewDispatcher(
	logger *slog.Logger,
	txs store.TxRunner,
	tasks store.TaskStore,
	metrics store.MetricsStore,
	registry *provider.Registry,
	finalizer chain.Finalizer,
	queue *Queue,
	concurrency int,
) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		logger:      logger,
		txs:         txs,
		tasks:       tasks,
		metrics:     metrics,
		registry:    registry,
		finalizer:   finalizer,
		queue:       queue,
		concurrency: concurrency,
	}
}

// Drain processes queued items until the queue empties, the budget
// elapses, or ctx is canceled. The budget is a soft limit: items already
// handed to a worker run to completion. Returns the number of items
// handed to workers.
func (d *Dispatcher) Drain(ctx context.Context, budget time.Duration) (int, error) {
	deadline := time.Now().Add(budget)
	slots := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup

	dispatched := 0
	for {
		if ctx.Err() != nil {
			break
		}
		if budget > 0 && time.Now().After(deadline) {
			d.logger.InfoContext(ctx, "drain budget elapsed",
				"remaining", d.queue.Len())
			break
		}

		item, ok := d.queue.Pop()
		if !ok {
			break
		}

		slots <- struct{}{}
		wg.Add(1)
		dispatched++
		go func(item Item) {
			defer wg.Done()
			defer func() { <-slots }()
			d.processItem(ctx, item)
		}(item)
	}

	wg.Wait()
	return dispatched, ctx.Err()
}

// processItem runs one work item end to end. Every store write is guarded
// by the status the dispatcher last observed, so a concurrent sweeper
// transition wins and the dispatcher's change is discarded.
func (d *Dispatcher) processItem(ctx context.Context, item Item) {
	log := d.logger.With("task_id", item.TaskID, "token_id", item.TokenID)

	task, err := d.tasks.GetTask(ctx, item.TaskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			log.DebugContext(ctx, "task vanished before dispatch, dropping item")
		} else {
			log.ErrorContext(ctx, "failed to load task", "error", err)
		}
		return
	}
	if task.Status.Terminal() {
		log.DebugContext(ctx, "task already terminal, dropping item",
			"status", string(task.Status))
		return
	}

	now := time.Now().UTC()
	if task.Expired(now) {
		d.abortToTimeout(ctx, task, log)
		return
	}

	expected := task.Status
	if err := task.Apply(domain.DispatchCmd{Provider: item.Provider}); err != nil {
		log.WarnContext(ctx, "dispatch transition rejected", "error", err)
		return
	}
	if err := d.tasks.UpdateTaskIf(ctx, task, expected); err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			log.InfoContext(ctx, "lost dispatch race, dropping item")
			return
		}
		log.ErrorContext(ctx, "failed to write dispatch transition", "error", err)
		return
	}

	prompt := BuildPrompt(item)
	weights := provider.WeightsFromOptions(item.Options)
	order := d.registry.FallbackOrder(item.Provider, weights)

	submission, used, lastErr := d.tryProviders(ctx, task, item, prompt, order, log)
	if submission == nil {
		if lastErr != nil && errors.Is(lastErr, errStaleTask) {
			// Another writer (sweeper or cancel) owns the task now.
			return
		}
		message := "all providers failed"
		if lastErr != nil {
			message = fmt.Sprintf("all providers failed, last error: %v", lastErr)
		}
		d.failTask(ctx, task, domain.ErrorKindProviderExhausted, message, log)
		return
	}

	// A provider call that resolves past the deadline is a late result;
	// the artifact is discarded, not written.
	now = time.Now().UTC()
	if task.Expired(now) {
		log.WarnContext(ctx, "provider resolved past deadline, discarding result",
			"provider", used,
			"image_url_present", submission.ImageURL != "")
		d.abortToTimeout(ctx, task, log)
		return
	}

	if !d.writeProgress(ctx, task, 90, "finalizing mint", log) {
		return
	}

	receipt, err := d.finalizer.FinalizeMint(ctx, item.TokenID, submission.ImageURL)
	if err != nil {
		log.ErrorContext(ctx, "finalizeMint failed", "error", err)
		d.failTask(ctx, task, domain.ErrorKindChainFinalize,
			fmt.Sprintf("finalizeMint failed: %v", err), log)
		return
	}

	durationMs := time.Now().UTC().Sub(task.CreatedAt).Milliseconds()
	expected = task.Status
	err = task.Apply(domain.CompleteCmd{Result: domain.Result{
		TokenURI:     submission.ImageURL,
		ProviderUsed: used,
		DurationMs:   durationMs,
		BlockNumber:  receipt.BlockNumber,
	}})
	if err != nil {
		log.ErrorContext(ctx, "complete transition rejected", "error", err)
		return
	}

	err = d.writeTerminal(ctx, task, expected, func(m *domain.Metrics) {
		m.RecordCompleted(durationMs)
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			log.WarnContext(ctx, "task changed during finalize, completion discarded")
			return
		}
		log.ErrorContext(ctx, "failed to write completion", "error", err)
		return
	}

	log.InfoContext(ctx, "task completed",
		"provider", used,
		"tx_hash", receipt.TxHash,
		"block", receipt.BlockNumber,
		"duration_ms", durationMs)
}

// errStaleTask aborts the provider loop when a progress write loses to a
// concurrent transition.
var errStaleTask = errors.New("task was transitioned by another writer")

// tryProviders walks the fallback order until one submission succeeds.
// Milestone progress is written through CAS updates; losing one means the
// task is no longer ours and the loop stops.
func (d *Dispatcher) tryProviders(
	ctx context.Context,
	task *domain.Task,
	item Item,
	prompt provider.Prompt,
	order []provider.Adapter,
	log *slog.Logger,
) (*provider.Submission, string, error) {
	var lastErr error

	for i, adapter := range order {
		options, err := adapter.CleanOptions(item.Options)
		if err != nil {
			// The options were validated against the primary provider; a
			// fallback that cannot accept them is skipped, not failed.
			log.DebugContext(ctx, "provider does not support options, skipping",
				"provider", adapter.Name())
			continue
		}

		if i > 0 {
			message := fmt.Sprintf("falling back to %s", adapter.Name())
			if !d.writeProgress(ctx, task, task.Progress, message, log) {
				return nil, "", errStaleTask
			}
		}

		stale := false
		report := func(progress int, message string) {
			if stale {
				return
			}
			if !d.writeProgress(ctx, task, progress, message, log) {
				stale = true
			}
		}

		submission, err := adapter.Submit(ctx, prompt, options, report)
		if stale {
			return nil, "", errStaleTask
		}
		if err != nil {
			lastErr = err
			log.WarnContext(ctx, "provider submission failed",
				"provider", adapter.Name(),
				"error", err)
			continue
		}

		return submission, adapter.Name(), nil
	}

	return nil, "", lastErr
}

// writeProgress applies a progress command and persists it with a CAS on
// PROCESSING. Returns false when the task is no longer the dispatcher's.
func (d *Dispatcher) writeProgress(ctx context.Context, task *domain.Task, progress int, message string, log *slog.Logger) bool {
	if progress < task.Progress {
		progress = task.Progress
	}
	if err := task.Apply(domain.ProgressCmd{Progress: progress, Message: message}); err != nil {
		log.WarnContext(ctx, "progress transition rejected", "error", err)
		return false
	}
	if err := d.tasks.UpdateTaskIf(ctx, task, domain.StatusProcessing); err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			log.InfoContext(ctx, "progress write lost to concurrent transition",
				"progress", progress)
		} else {
			log.ErrorContext(ctx, "failed to write progress", "error", err)
		}
		return false
	}
	return true
}

// failTask moves the task to FAILED and updates metrics in one transaction.
func (d *Dispatcher) failTask(ctx context.Context, task *domain.Task, kind domain.ErrorKind, message string, log *slog.Logger) {
	expected := task.Status
	if err := task.Apply(domain.FailCmd{Kind: kind, Message: message}); err != nil {
		log.WarnContext(ctx, "fail transition rejected", "error", err)
		return
	}
	err := d.writeTerminal(ctx, task, expected, func(m *domain.Metrics) {
		m.RecordFailed()
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			log.InfoContext(ctx, "failure write lost to concurrent transition")
			return
		}
		log.ErrorContext(ctx, "failed to write task failure", "error", err)
		return
	}
	log.InfoContext(ctx, "task failed", "kind", string(kind), "message", message)
}

// abortToTimeout moves an overdue task to TIMEOUT the same way the sweeper
// does. Losing the CAS means the sweeper got there first, which is fine.
func (d *Dispatcher) abortToTimeout(ctx context.Context, task *domain.Task, log *slog.Logger) {
	expected := task.Status
	if err := task.Apply(domain.TimeoutCmd{Message: "task timed out"}); err != nil {
		log.WarnContext(ctx, "timeout transition rejected", "error", err)
		return
	}
	err := d.writeTerminal(ctx, task, expected, func(m *domain.Metrics) {
		m.RecordInactive()
	})
	if err != nil && !errors.Is(err, store.ErrStaleUpdate) {
		log.ErrorContext(ctx, "failed to write timeout", "error", err)
		return
	}
	log.InfoContext(ctx, "task timed out before completion")
}

// writeTerminal persists a terminal transition and the metrics change it
// implies in a single transaction, guarded by the expected status.
func (d *Dispatcher) writeTerminal(ctx context.Context, task *domain.Task, expected domain.Status, record func(*domain.Metrics)) error {
	return d.txs.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := d.tasks.WithTx(tx).UpdateTaskIf(ctx, task, expected); err != nil {
			return err
		}
		metrics, err := d.metrics.WithTx(tx).LoadMetrics(ctx)
		if err != nil {
			return err
		}
		record(metrics)
		return d.metrics.WithTx(tx).UpsertMetrics(ctx, metrics)
	})
}
