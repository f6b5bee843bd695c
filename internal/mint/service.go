package mint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/provider"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// EnqueueRequest carries the validated-at-the-edge inputs of a process
// call. String fields arrive raw; Enqueue sanitizes them.
type EnqueueRequest struct {
	TokenID        int64
	Breed          string
	Provider       string
	PromptExtras   string
	NegativePrompt string
	Buyer          string
	Options        map[string]any
	Priority       domain.Priority
	Force          bool
	Regenerate     bool
}

// EnqueueResult is the outcome of an enqueue. When AlreadyProcessed is set,
// Task is the existing task the request collapsed into (or the newest
// terminal task for the token).
type EnqueueResult struct {
	AlreadyProcessed bool
	Task             *domain.Task
}

// Service owns the enqueue path: validation, duplicate suppression,
// preference recording, task creation, and queueing.
type Service struct {
	logger      *slog.Logger
	txs         store.TxRunner
	tasks       store.TaskStore
	metrics     store.MetricsStore
	prefs       store.PreferenceStore
	registry    *provider.Registry
	queue       *Queue
	maxTokenID  int64
	taskTimeout time.Duration
}

// NewService wires the enqueue path. taskTimeout is the default deadline
// applied to every new task.
func NewService(
	logger *slog.Logger,
	txs store.TxRunner,
	tasks store.TaskStore,
	metrics store.MetricsStore,
	prefs store.PreferenceStore,
	registry *provider.Registry,
	queue *Queue,
	maxTokenID int64,
	taskTimeout time.Duration,
) *Service {
	return &Service{
		logger:      logger,
		txs:         txs,
		tasks:       tasks,
		metrics:     metrics,
		prefs:       prefs,
		registry:    registry,
		queue:       queue,
		maxTokenID:  maxTokenID,
		taskTimeout: taskTimeout,
	}
}

// Enqueue validates the request, suppresses duplicates, records the
// provider preference, creates a PENDING task, and queues a work item.
// An empty Provider resolves from the token's recorded preference and
// falls back to dall-e for tokens without one.
//
// At most one non-terminal task may exist per token: a request against a
// token with live work collapses into that task regardless of the force
// flag. When the newest prior task is terminal, force creates a fresh task
// and a plain request reports the token as already processed.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*EnqueueResult, error) {
	if req.TokenID < 0 || req.TokenID > s.maxTokenID {
		return nil, fmt.Errorf("%w: token id %d out of range [0, %d]",
			domain.ErrValidation, req.TokenID, s.maxTokenID)
	}
	if !ValidBreed(req.Breed) {
		return nil, fmt.Errorf("%w: unknown breed %q", domain.ErrValidation, req.Breed)
	}

	// A request without an explicit provider inherits the token's recorded
	// preference, so a regeneration keeps the user's last choice.
	providerName := req.Provider
	if providerName == "" {
		pref, err := s.prefs.GetPreference(ctx, req.TokenID)
		switch {
		case err == nil:
			providerName = pref.Provider
			if req.Options == nil {
				req.Options = pref.Options
			}
		case errors.Is(err, store.ErrPreferenceNotFound):
			providerName = provider.NameDallE
		default:
			return nil, fmt.Errorf("failed to load provider preference: %w", err)
		}
	}

	adapter, err := s.registry.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrValidation, providerName)
	}

	extras, err := SanitizePromptInput(req.PromptExtras)
	if err != nil {
		return nil, err
	}
	negative, err := SanitizePromptInput(req.NegativePrompt)
	if err != nil {
		return nil, err
	}
	buyer, err := SanitizePromptInput(req.Buyer)
	if err != nil {
		return nil, err
	}

	options, err := adapter.CleanOptions(req.Options)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	// Live work for this token wins over any new request.
	live, err := s.tasks.FindTasks(ctx, store.TaskFilter{
		TokenID:     &req.TokenID,
		NonTerminal: true,
		Limit:       1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to check for live tasks: %w", err)
	}
	if len(live) > 0 {
		s.logger.InfoContext(ctx, "enqueue collapsed into live task",
			"token_id", req.TokenID,
			"task_id", live[0].ID)
		return &EnqueueResult{AlreadyProcessed: true, Task: live[0]}, nil
	}

	if !req.Force {
		prior, err := s.tasks.FindTasks(ctx, store.TaskFilter{
			TokenID:     &req.TokenID,
			NewestFirst: true,
			Limit:       1,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to check for prior tasks: %w", err)
		}
		if len(prior) > 0 {
			s.logger.InfoContext(ctx, "token already processed",
				"token_id", req.TokenID,
				"task_id", prior[0].ID)
			return &EnqueueResult{AlreadyProcessed: true, Task: prior[0]}, nil
		}
	}

	mintReq := &domain.MintRequest{
		Buyer:          buyer,
		Breed:          req.Breed,
		PromptExtras:   extras,
		NegativePrompt: negative,
		Force:          req.Force,
		Regenerate:     req.Regenerate,
	}

	task, err := domain.NewTask(req.TokenID, providerName, options, req.Priority, mintReq, s.taskTimeout)
	if err != nil {
		return nil, err
	}
	if err := task.Validate(); err != nil {
		return nil, err
	}

	pref := domain.NewProviderPreference(req.TokenID, providerName, options)

	err = s.txs.RunInTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.prefs.WithTx(tx).UpsertPreference(ctx, pref); err != nil {
			return err
		}
		if err := s.tasks.WithTx(tx).UpsertTask(ctx, task); err != nil {
			return err
		}
		metrics, err := s.metrics.WithTx(tx).LoadMetrics(ctx)
		if err != nil {
			return err
		}
		metrics.RecordCreated()
		return s.metrics.WithTx(tx).UpsertMetrics(ctx, metrics)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// A concurrent enqueue for this token won the insert race; its
			// task is the live one.
			live, findErr := s.tasks.FindTasks(ctx, store.TaskFilter{
				TokenID:     &req.TokenID,
				NonTerminal: true,
				Limit:       1,
			})
			if findErr == nil && len(live) > 0 {
				s.logger.InfoContext(ctx, "enqueue collapsed into live task",
					"token_id", req.TokenID,
					"task_id", live[0].ID)
				return &EnqueueResult{AlreadyProcessed: true, Task: live[0]}, nil
			}
		}
		return nil, fmt.Errorf("failed to persist task %s: %w", task.ID, err)
	}

	if err := s.queue.Push(ItemFromTask(task)); err != nil {
		if errors.Is(err, ErrQueueFull) {
			// The task is durable; the next tick's reseed picks it up.
			s.logger.WarnContext(ctx, "queue full, task deferred to next reseed",
				"task_id", task.ID,
				"token_id", task.TokenID)
		} else {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "task enqueued",
		"task_id", task.ID,
		"token_id", task.TokenID,
		"provider", providerName,
		"priority", string(task.Priority))

	return &EnqueueResult{Task: task}, nil
}
