package api

import (
	"log/slog"
	"net/http"

	"github.com/tabbylabs/mintpipe/internal/api/shared"
	"github.com/tabbylabs/mintpipe/internal/mint"
)

// CronHandler exposes the tick over HTTP for external schedulers.
type CronHandler struct {
	tick   *mint.TickHandler
	logger *slog.Logger
}

// NewCronHandler creates the handler.
func NewCronHandler(tick *mint.TickHandler, logger *slog.Logger) *CronHandler {
	return &CronHandler{tick: tick, logger: logger}
}

// Cron handles GET /cron: one full sweep-and-drain cycle. The tick is
// idempotent, so overlapping triggers are safe.
func (h *CronHandler) Cron(w http.ResponseWriter, r *http.Request) {
	report, err := h.tick.Tick(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Tick failed", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, report)
}
