package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tabbylabs/mintpipe/internal/api/shared"
	"github.com/tabbylabs/mintpipe/internal/chain"
	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/mint"
)

// maxProviderOptionsBytes caps the raw providerOptions query value.
const maxProviderOptionsBytes = 4096

// ProcessHandler serves the enqueue endpoint.
type ProcessHandler struct {
	service        *mint.Service
	finalizer      chain.Finalizer
	placeholderURI string
	logger         *slog.Logger
}

// NewProcessHandler creates the handler. placeholderURI is reported as the
// token's current URI until a mint finalizes a real one.
func NewProcessHandler(service *mint.Service, finalizer chain.Finalizer, placeholderURI string, logger *slog.Logger) *ProcessHandler {
	return &ProcessHandler{
		service:        service,
		finalizer:      finalizer,
		placeholderURI: placeholderURI,
		logger:         logger,
	}
}

// Process handles GET /process/{tokenId}: validates the inputs, records
// the provider preference, creates a PENDING task, and returns its id.
func (h *ProcessHandler) Process(w http.ResponseWriter, r *http.Request) {
	tokenID, err := strconv.ParseInt(chi.URLParam(r, "tokenId"), 10, 64)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid token id")
		return
	}

	q := r.URL.Query()

	options, err := parseProviderOptions(q.Get("providerOptions"))
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, GetSafeErrorMessage(err), err)
		return
	}

	req := mint.EnqueueRequest{
		TokenID:        tokenID,
		Breed:          q.Get("breed"),
		Provider:       q.Get("imageProvider"),
		PromptExtras:   q.Get("promptExtras"),
		NegativePrompt: q.Get("negativePrompt"),
		Buyer:          q.Get("buyer"),
		Options:        options,
		Priority:       domain.Priority(q.Get("priority")),
		Force:          q.Get("force") == "true",
		Regenerate:     q.Get("regenerate") == "true",
	}

	res, err := h.service.Enqueue(r.Context(), req)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	if res.AlreadyProcessed {
		shared.RespondWithJSON(w, r, http.StatusOK, ProcessResponse{
			Status:  "already_processed",
			TaskID:  res.Task.ID,
			TokenID: tokenID,
		})
		return
	}

	// Chain reads are best-effort decoration; an unminted token simply
	// reports the placeholder and no owner.
	currentURI := h.placeholderURI
	if uri, err := h.finalizer.TokenURI(r.Context(), tokenID); err == nil && uri != "" {
		currentURI = uri
	}
	owner := ""
	if addr, err := h.finalizer.OwnerOf(r.Context(), tokenID); err == nil {
		owner = addr
	}

	shared.RespondWithJSON(w, r, http.StatusOK, ProcessResponse{
		Status:        "queued",
		TaskID:        res.Task.ID,
		TokenID:       tokenID,
		Breed:         req.Breed,
		ImageProvider: res.Task.Provider,
		CurrentURI:    currentURI,
		Owner:         owner,
		Options:       res.Task.ProviderOptions,
	})
}

// parseProviderOptions decodes the providerOptions query value: a JSON
// object of at most 4KiB. Per-key validation happens against the chosen
// adapter's allow-list inside the enqueue path.
func parseProviderOptions(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	if len(raw) > maxProviderOptionsBytes {
		return nil, fmt.Errorf("%w: providerOptions exceeds %d bytes",
			domain.ErrValidation, maxProviderOptionsBytes)
	}
	var options map[string]any
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, fmt.Errorf("%w: providerOptions is not a JSON object", domain.ErrValidation)
	}
	return options, nil
}
