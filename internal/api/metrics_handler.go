package api

import (
	"log/slog"
	"net/http"

	"github.com/tabbylabs/mintpipe/internal/api/shared"
	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// MetricsHandler serves the aggregate counters.
type MetricsHandler struct {
	metrics store.MetricsStore
	tasks   store.TaskStore
	logger  *slog.Logger
}

// NewMetricsHandler creates the handler.
func NewMetricsHandler(metrics store.MetricsStore, tasks store.TaskStore, logger *slog.Logger) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, tasks: tasks, logger: logger}
}

// Metrics handles GET /metrics: the persisted counters plus live
// per-status counts from the tasks table.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.metrics.LoadMetrics(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	counts, err := h.tasks.CountByStatus(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	shared.RespondWithJSON(w, r, http.StatusOK, MetricsResponse{
		Created:                      metrics.Created,
		Completed:                    metrics.Completed,
		Failed:                       metrics.Failed,
		Active:                       metrics.Active,
		AverageCompletionTimeSeconds: metrics.AverageCompletionMs / 1000,
		Pending:                      counts[domain.StatusPending],
		Processing:                   counts[domain.StatusProcessing],
		Total:                        total,
	})
}
