package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tabbylabs/mintpipe/internal/api/shared"
	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/mint"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// StatusHandler serves the read-only task lookups.
type StatusHandler struct {
	tasks   store.TaskStore
	sweeper *mint.Sweeper
	logger  *slog.Logger
}

// NewStatusHandler creates the handler. The sweeper is used for lazy
// timeout evaluation on reads.
func NewStatusHandler(tasks store.TaskStore, sweeper *mint.Sweeper, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{tasks: tasks, sweeper: sweeper, logger: logger}
}

// Status handles GET /status/{taskId}: a fresh read from the store. An
// overdue non-terminal task is flipped to TIMEOUT before responding, so a
// poll never observes a task past its deadline.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskId")
	if !domain.ValidTaskID(taskID) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task id")
		return
	}

	task, err := h.tasks.GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			shared.RespondWithJSON(w, r, http.StatusNotFound, UnknownTaskResponse{
				Status: string(domain.StatusUnknown),
				TaskID: taskID,
			})
			return
		}
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if !task.Status.Terminal() && task.Expired(time.Now().UTC()) {
		if err := h.sweeper.TimeoutTask(r.Context(), task); err != nil {
			if !errors.Is(err, store.ErrStaleUpdate) {
				shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
				return
			}
			// Another writer transitioned the task first; serve its view.
			if task, err = h.tasks.GetTask(r.Context(), taskID); err != nil {
				shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
				return
			}
		} else {
			h.logger.InfoContext(r.Context(), "task lazily timed out on status read",
				"task_id", taskID)
		}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, task)
}

// TasksByToken handles GET /tasks/{tokenId}: every task recorded for the
// token, newest first.
func (h *StatusHandler) TasksByToken(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseInt(chi.URLParam(r, "tokenId"), 10, 64)
	if err != nil || tokenID < 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid token id")
		return
	}

	tasks, err := h.tasks.FindTasks(r.Context(), store.TaskFilter{
		TokenID:     &tokenID,
		NewestFirst: true,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if tasks == nil {
		tasks = []*domain.Task{}
	}

	shared.RespondWithJSON(w, r, http.StatusOK, tasks)
}
