package testutils

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NoopTxRunner satisfies store.TxRunner without a database; the in-memory
// stores ignore the transaction handle.
type NoopTxRunner struct{}

func (NoopTxRunner) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	return fn(ctx, nil)
}

// CloneTask deep-copies a task through its JSON form.
func CloneTask(task *domain.Task) *domain.Task {
	raw, err := json.Marshal(task)
	if err != nil {
		panic(fmt.Sprintf("cloning task: %v", err))
	}
	var clone domain.Task
	if err := json.Unmarshal(raw, &clone); err != nil {
		panic(fmt.Sprintf("cloning task: %v", err))
	}
	return &clone
}

// MemTaskStore is an in-memory store.TaskStore with the same conditional
// update semantics as the Postgres implementation.
type MemTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
}

// NewMemTaskStore returns an empty MemTaskStore.
func NewMemTaskStore() *MemTaskStore {
	return &MemTaskStore{tasks: make(map[string]*domain.Task)}
}

func (m *MemTaskStore) UpsertTask(ctx context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// One live row per token, matching the partial unique index on tasks.
	if !task.Status.Terminal() {
		for id, existing := range m.tasks {
			if id != task.ID && existing.TokenID == task.TokenID && !existing.Status.Terminal() {
				return store.ErrDuplicate
			}
		}
	}
	m.tasks[task.ID] = CloneTask(task)
	return nil
}

func (m *MemTaskStore) UpdateTaskIf(ctx context.Context, task *domain.Task, expected domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.tasks[task.ID]
	if !ok || current.Status != expected {
		return store.ErrStaleUpdate
	}
	m.tasks[task.ID] = CloneTask(task)
	return nil
}

func (m *MemTaskStore) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	return CloneTask(task), nil
}

func (m *MemTaskStore) FindTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Task
	for _, task := range m.tasks {
		if filter.TokenID != nil && task.TokenID != *filter.TokenID {
			continue
		}
		if filter.NonTerminal && task.Status.Terminal() {
			continue
		}
		if len(filter.Statuses) > 0 {
			found := false
			for _, s := range filter.Statuses {
				if task.Status == s {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.ExpiredBefore != nil {
			if task.TimeoutAt == nil || !task.TimeoutAt.Before(*filter.ExpiredBefore) {
				continue
			}
		}
		matched = append(matched, CloneTask(task))
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.NewestFirst {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MemTaskStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for id, task := range m.tasks {
		if task.Status.Terminal() && task.UpdatedAt.Before(cutoff) {
			delete(m.tasks, id)
			removed++
		}
	}
	return removed, nil
}

func (m *MemTaskStore) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.Status]int64)
	for _, task := range m.tasks {
		counts[task.Status]++
	}
	return counts, nil
}

func (m *MemTaskStore) WithTx(tx *sql.Tx) store.TaskStore { return m }

// MemStateStore is an in-memory store.StateStore.
type MemStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.ProcessState
}

// NewMemStateStore returns an empty MemStateStore.
func NewMemStateStore() *MemStateStore {
	return &MemStateStore{states: make(map[string]*domain.ProcessState)}
}

func (m *MemStateStore) SaveState(ctx context.Context, stateType string, state *domain.ProcessState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *state
	m.states[stateType] = &copied
	return nil
}

func (m *MemStateStore) LoadState(ctx context.Context, stateType string, def *domain.ProcessState) (*domain.ProcessState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.states[stateType]; ok {
		copied := *state
		return &copied, nil
	}
	copied := *def
	return &copied, nil
}

func (m *MemStateStore) WithTx(tx *sql.Tx) store.StateStore { return m }

// MemMetricsStore is an in-memory store.MetricsStore.
type MemMetricsStore struct {
	mu      sync.Mutex
	metrics domain.Metrics
}

func (m *MemMetricsStore) UpsertMetrics(ctx context.Context, metrics *domain.Metrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = *metrics
	return nil
}

func (m *MemMetricsStore) LoadMetrics(ctx context.Context) (*domain.Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := m.metrics
	return &copied, nil
}

func (m *MemMetricsStore) WithTx(tx *sql.Tx) store.MetricsStore { return m }

// MemPreferenceStore is an in-memory store.PreferenceStore.
type MemPreferenceStore struct {
	mu    sync.Mutex
	prefs map[int64]*domain.ProviderPreference
}

// NewMemPreferenceStore returns an empty MemPreferenceStore.
func NewMemPreferenceStore() *MemPreferenceStore {
	return &MemPreferenceStore{prefs: make(map[int64]*domain.ProviderPreference)}
}

func (m *MemPreferenceStore) UpsertPreference(ctx context.Context, pref *domain.ProviderPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *pref
	m.prefs[pref.TokenID] = &copied
	return nil
}

func (m *MemPreferenceStore) GetPreference(ctx context.Context, tokenID int64) (*domain.ProviderPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pref, ok := m.prefs[tokenID]
	if !ok {
		return nil, store.ErrPreferenceNotFound
	}
	copied := *pref
	return &copied, nil
}

func (m *MemPreferenceStore) WithTx(tx *sql.Tx) store.PreferenceStore { return m }
