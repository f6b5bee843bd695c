package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
)

// TaskFilter narrows FindTasks results. Zero-value fields are ignored.
type TaskFilter struct {
	// TokenID restricts results to tasks for one token.
	TokenID *int64
	// Statuses restricts results to the given statuses.
	Statuses []domain.Status
	// NonTerminal restricts results to PENDING and PROCESSING tasks.
	// Mutually exclusive with Statuses.
	NonTerminal bool
	// ExpiredBefore restricts results to tasks whose timeout deadline lies
	// before the given instant.
	ExpiredBefore *time.Time
	// NewestFirst orders by created_at descending; the default is ascending
	// (FIFO reseed order).
	NewestFirst bool
	// Limit caps the number of rows returned; zero means no cap.
	Limit int
}

// TaskStore defines the persistence contract for tasks. All writes are
// idempotent under retry: UpsertTask keys on the task id.
type TaskStore interface {
	// UpsertTask inserts the task or replaces the row with the same id.
	UpsertTask(ctx context.Context, task *domain.Task) error

	// UpdateTaskIf replaces the task row only while the stored status still
	// equals expected. Returns ErrStaleUpdate when the guard fails, which
	// means another writer (usually the sweeper) got there first and the
	// caller's pending change must be discarded.
	UpdateTaskIf(ctx context.Context, task *domain.Task, expected domain.Status) error

	// GetTask loads a task by id. Returns ErrTaskNotFound for unknown ids;
	// callers must not treat that as a failure.
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	// FindTasks returns the tasks matching the filter.
	FindTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// DeleteTerminalBefore removes terminal tasks whose last update is
	// older than the cutoff. Returns the number of rows removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// CountByStatus returns the number of tasks per status.
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) TaskStore
}
