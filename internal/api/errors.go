package api

import (
	"errors"
	"net/http"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/provider"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking internal error types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTaskID),
		errors.Is(err, domain.ErrInvalidTokenID),
		errors.Is(err, provider.ErrInvalidOption),
		errors.Is(err, provider.ErrUnknownProvider):
		return http.StatusBadRequest

	case store.IsNotFoundError(err):
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-facing message for the
// error. Validation errors carry their own safe text; everything else is
// collapsed into a generic summary.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidTokenID),
		errors.Is(err, provider.ErrInvalidOption),
		errors.Is(err, provider.ErrUnknownProvider):
		// Validation messages are built from already-sanitized inputs.
		return err.Error()

	case errors.Is(err, domain.ErrInvalidTaskID):
		return "Invalid task id"

	case store.IsNotFoundError(err):
		return "Not found"

	case store.IsTransientError(err), errors.Is(err, store.ErrFatal):
		return "Storage is temporarily unavailable"

	default:
		return "An unexpected error occurred"
	}
}
