package mint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// Sweeper enforces task deadlines and the terminal-task retention policy.
// It runs at the start of every tick, before any new dispatch, so a task
// is never observed PROCESSING past its deadline once a tick returns.
type Sweeper struct {
	logger     *slog.Logger
	txs        store.TxRunner
	tasks      store.TaskStore
	metrics    store.MetricsStore
	cleanupTTL time.Duration
}

// NewSweeper wires the sweeper. cleanupTTL is how long terminal tasks are
// retained before deletion.
func NewSweeper(logger *slog.Logger, txs store.TxRunner, tasks store.TaskStore, metrics store.MetricsStore, cleanupTTL time.Duration) *Sweeper {
	return &Sweeper{
		logger:     logger,
		txs:        txs,
		tasks:      tasks,
		metrics:    metrics,
		cleanupTTL: cleanupTTL,
	}
}

// SweepTimeouts transitions every overdue PENDING or PROCESSING task to
// TIMEOUT. Each write is a compare-and-swap on the status observed during
// the scan; losing the swap means the dispatcher finished the task in the
// meantime and the sweep skips it. Returns the number of tasks timed out.
func (s *Sweeper) SweepTimeouts(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	overdue, err := s.tasks.FindTasks(ctx, store.TaskFilter{
		NonTerminal:   true,
		ExpiredBefore: &now,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to scan for overdue tasks: %w", err)
	}

	swept := 0
	for _, task := range overdue {
		err := s.TimeoutTask(ctx, task)
		if err != nil {
			if errors.Is(err, store.ErrStaleUpdate) {
				s.logger.DebugContext(ctx, "task transitioned before sweep write, skipping",
					"task_id", task.ID)
				continue
			}
			return swept, fmt.Errorf("failed to time out task %s: %w", task.ID, err)
		}

		s.logger.InfoContext(ctx, "task swept to timeout",
			"task_id", task.ID,
			"token_id", task.TokenID)
		swept++
	}

	return swept, nil
}

// TimeoutTask moves one overdue task to TIMEOUT with the CAS-plus-metrics
// write the sweep uses. The status read path shares it for lazy timeout
// evaluation. Returns store.ErrStaleUpdate when another writer won.
func (s *Sweeper) TimeoutTask(ctx context.Context, task *domain.Task) error {
	expected := task.Status
	if err := task.Apply(domain.TimeoutCmd{Message: "task timed out"}); err != nil {
		return err
	}

	return s.txs.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.tasks.WithTx(tx).UpdateTaskIf(ctx, task, expected); err != nil {
			return err
		}
		metrics, err := s.metrics.WithTx(tx).LoadMetrics(ctx)
		if err != nil {
			return err
		}
		metrics.RecordInactive()
		return s.metrics.WithTx(tx).UpsertMetrics(ctx, metrics)
	})
}

// CleanupTerminal deletes terminal tasks whose last update is older than
// the retention TTL. Returns the number of rows removed.
func (s *Sweeper) CleanupTerminal(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cleanupTTL)
	removed, err := s.tasks.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete aged terminal tasks: %w", err)
	}
	if removed > 0 {
		s.logger.InfoContext(ctx, "aged terminal tasks removed",
			"removed", removed,
			"cutoff", cutoff)
	}
	return removed, nil
}
