package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/platform/logger"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// taskColumns is the canonical column list shared by every task query.
const taskColumns = `task_id, token_id, status, progress, message, provider,
	provider_options, priority, request, created_at, updated_at, completed_at,
	failed_at, canceled_at, timeout_at, estimated_completion_time, history,
	result, error`

// TaskStore implements store.TaskStore on PostgreSQL.
type TaskStore struct {
	db store.DBTX
}

// NewTaskStore creates a new TaskStore.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db}
}

// WithTx returns a TaskStore bound to the given transaction.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{db: tx}
}

// UpsertTask inserts the task or replaces the row with the same id. The
// write is idempotent: applying the same task twice leaves the same row.
func (s *TaskStore) UpsertTask(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return store.NewStoreError("task", "upsert", "task failed validation", err)
	}

	args, err := taskRowArgs(task)
	if err != nil {
		return store.NewStoreError("task", "upsert", "task failed to encode", err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		ON CONFLICT (task_id) DO UPDATE SET
			token_id = EXCLUDED.token_id,
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			message = EXCLUDED.message,
			provider = EXCLUDED.provider,
			provider_options = EXCLUDED.provider_options,
			priority = EXCLUDED.priority,
			request = EXCLUDED.request,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at,
			canceled_at = EXCLUDED.canceled_at,
			timeout_at = EXCLUDED.timeout_at,
			estimated_completion_time = EXCLUDED.estimated_completion_time,
			history = EXCLUDED.history,
			result = EXCLUDED.result,
			error = EXCLUDED.error
	`

	err = withRetry(ctx, func(ctx context.Context) error {
		_, execErr := s.db.ExecContext(ctx, query, args...)
		return mapError(execErr)
	})
	if err != nil {
		logger.FromContext(ctx).Error("failed to upsert task",
			"task_id", task.ID,
			"token_id", task.TokenID,
			"error", err)
		return fmt.Errorf("failed to upsert task: %w", err)
	}
	return nil
}

// UpdateTaskIf replaces the task row only while the stored status still
// equals expected. A zero-row update means the guard failed and the caller
// lost a race; the pending change must be discarded.
func (s *TaskStore) UpdateTaskIf(ctx context.Context, task *domain.Task, expected domain.Status) error {
	if err := task.Validate(); err != nil {
		return store.NewStoreError("task", "update", "task failed validation", err)
	}

	args, err := taskRowArgs(task)
	if err != nil {
		return store.NewStoreError("task", "update", "task failed to encode", err)
	}
	args = append(args, string(expected))

	query := `
		UPDATE tasks SET
			token_id = $2,
			status = $3,
			progress = $4,
			message = $5,
			provider = $6,
			provider_options = $7,
			priority = $8,
			request = $9,
			updated_at = $11,
			completed_at = $12,
			failed_at = $13,
			canceled_at = $14,
			timeout_at = $15,
			estimated_completion_time = $16,
			history = $17,
			result = $18,
			error = $19
		WHERE task_id = $1 AND status = $20
	`

	err = withRetry(ctx, func(ctx context.Context) error {
		result, execErr := s.db.ExecContext(ctx, query, args...)
		if execErr != nil {
			return mapError(execErr)
		}
		affected, raErr := result.RowsAffected()
		if raErr != nil {
			return mapError(raErr)
		}
		if affected == 0 {
			return store.ErrStaleUpdate
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrStaleUpdate) {
			return store.ErrStaleUpdate
		}
		logger.FromContext(ctx).Error("failed conditional task update",
			"task_id", task.ID,
			"expected_status", expected,
			"error", err)
		return fmt.Errorf("failed conditional task update: %w", err)
	}
	return nil
}

// GetTask loads a task by id. Returns store.ErrTaskNotFound for unknown ids.
func (s *TaskStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE task_id = $1`

	var task *domain.Task
	err := withRetry(ctx, func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx, query, taskID)
		t, scanErr := scanTask(row)
		if scanErr != nil {
			return mapError(scanErr)
		}
		task = t
		return nil
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task %s: %w", taskID, err)
	}
	return task, nil
}

// FindTasks returns the tasks matching the filter, ordered by created_at.
func (s *TaskStore) FindTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	var (
		conds []string
		args  []any
	)

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.TokenID != nil {
		conds = append(conds, "token_id = "+arg(*filter.TokenID))
	}
	if filter.NonTerminal {
		conds = append(conds, fmt.Sprintf("status IN (%s, %s)",
			arg(string(domain.StatusPending)), arg(string(domain.StatusProcessing))))
	} else if len(filter.Statuses) > 0 {
		placeholders := make([]string, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			placeholders = append(placeholders, arg(string(status)))
		}
		conds = append(conds, "status IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.ExpiredBefore != nil {
		conds = append(conds, "timeout_at IS NOT NULL AND timeout_at < "+arg(filter.ExpiredBefore.UTC()))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.NewestFirst {
		query += " ORDER BY created_at DESC"
	} else {
		query += " ORDER BY created_at ASC"
	}
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	var tasks []*domain.Task
	err := withRetry(ctx, func(ctx context.Context) error {
		rows, queryErr := s.db.QueryContext(ctx, query, args...)
		if queryErr != nil {
			return mapError(queryErr)
		}
		defer func() { _ = rows.Close() }()

		var found []*domain.Task
		for rows.Next() {
			task, scanErr := scanTask(rows)
			if scanErr != nil {
				return mapError(scanErr)
			}
			found = append(found, task)
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			return mapError(rowsErr)
		}
		tasks = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTerminalBefore removes terminal tasks whose last update is older
// than the cutoff.
func (s *TaskStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM tasks
		WHERE status IN ($1, $2, $3, $4) AND updated_at < $5
	`

	var deleted int64
	err := withRetry(ctx, func(ctx context.Context) error {
		result, execErr := s.db.ExecContext(ctx, query,
			string(domain.StatusCompleted),
			string(domain.StatusFailed),
			string(domain.StatusCanceled),
			string(domain.StatusTimeout),
			cutoff.UTC(),
		)
		if execErr != nil {
			return mapError(execErr)
		}
		affected, raErr := result.RowsAffected()
		if raErr != nil {
			return mapError(raErr)
		}
		deleted = affected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal tasks: %w", err)
	}
	return deleted, nil
}

// CountByStatus returns the number of tasks per status.
func (s *TaskStore) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	query := `SELECT status, COUNT(*) FROM tasks GROUP BY status`

	counts := make(map[domain.Status]int64)
	err := withRetry(ctx, func(ctx context.Context) error {
		rows, queryErr := s.db.QueryContext(ctx, query)
		if queryErr != nil {
			return mapError(queryErr)
		}
		defer func() { _ = rows.Close() }()

		found := make(map[domain.Status]int64)
		for rows.Next() {
			var status string
			var count int64
			if scanErr := rows.Scan(&status, &count); scanErr != nil {
				return mapError(scanErr)
			}
			found[domain.Status(status)] = count
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			return mapError(rowsErr)
		}
		counts = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}
	return counts, nil
}

// taskRowArgs encodes a task into the positional arguments matching
// taskColumns.
func taskRowArgs(task *domain.Task) ([]any, error) {
	options, err := json.Marshal(task.ProviderOptions)
	if err != nil {
		return nil, fmt.Errorf("encoding provider options: %w", err)
	}
	history, err := json.Marshal(task.History)
	if err != nil {
		return nil, fmt.Errorf("encoding history: %w", err)
	}

	var request, result, taskErr []byte
	if task.Request != nil {
		if request, err = json.Marshal(task.Request); err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
	}
	if task.Result != nil {
		if result, err = json.Marshal(task.Result); err != nil {
			return nil, fmt.Errorf("encoding result: %w", err)
		}
	}
	if task.Error != nil {
		if taskErr, err = json.Marshal(task.Error); err != nil {
			return nil, fmt.Errorf("encoding error: %w", err)
		}
	}

	return []any{
		task.ID,
		task.TokenID,
		string(task.Status),
		task.Progress,
		task.Message,
		nullString(task.Provider),
		options,
		string(task.Priority),
		nullBytes(request),
		task.CreatedAt.UTC(),
		task.UpdatedAt.UTC(),
		nullTime(task.CompletedAt),
		nullTime(task.FailedAt),
		nullTime(task.CanceledAt),
		nullTime(task.TimeoutAt),
		nullTime(task.EstimatedCompletionAt),
		history,
		nullBytes(result),
		nullBytes(taskErr),
	}, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task      domain.Task
		status    string
		priority  string
		provider  sql.NullString
		options   []byte
		request   []byte
		history   []byte
		result    []byte
		taskErr   []byte
		completed sql.NullTime
		failed    sql.NullTime
		canceled  sql.NullTime
		timeoutAt sql.NullTime
		estimated sql.NullTime
	)

	if err := row.Scan(
		&task.ID,
		&task.TokenID,
		&status,
		&task.Progress,
		&task.Message,
		&provider,
		&options,
		&priority,
		&request,
		&task.CreatedAt,
		&task.UpdatedAt,
		&completed,
		&failed,
		&canceled,
		&timeoutAt,
		&estimated,
		&history,
		&result,
		&taskErr,
	); err != nil {
		return nil, err
	}

	task.Status = domain.Status(status)
	task.Priority = domain.Priority(priority)
	task.Provider = provider.String
	task.CompletedAt = timePtr(completed)
	task.FailedAt = timePtr(failed)
	task.CanceledAt = timePtr(canceled)
	task.TimeoutAt = timePtr(timeoutAt)
	task.EstimatedCompletionAt = timePtr(estimated)

	if len(options) > 0 {
		if err := json.Unmarshal(options, &task.ProviderOptions); err != nil {
			return nil, fmt.Errorf("decoding provider options: %w", err)
		}
	}
	if len(request) > 0 {
		task.Request = &domain.MintRequest{}
		if err := json.Unmarshal(request, task.Request); err != nil {
			return nil, fmt.Errorf("decoding request: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &task.History); err != nil {
			return nil, fmt.Errorf("decoding history: %w", err)
		}
	}
	if len(result) > 0 {
		task.Result = &domain.Result{}
		if err := json.Unmarshal(result, task.Result); err != nil {
			return nil, fmt.Errorf("decoding result: %w", err)
		}
	}
	if len(taskErr) > 0 {
		task.Error = &domain.TaskError{}
		if err := json.Unmarshal(taskErr, task.Error); err != nil {
			return nil, fmt.Errorf("decoding error: %w", err)
		}
	}

	return &task, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time.UTC()
	return &value
}
