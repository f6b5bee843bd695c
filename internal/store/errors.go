package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is a generic version of the entity-specific not found
	// errors (e.g., ErrTaskNotFound). Callers must not treat a not-found
	// lookup as a failure; it is an expected result.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrTransient marks a store error that is worth retrying: connection
	// drops, serialization failures, pool exhaustion. The persistence
	// adapter retries these internally with backoff.
	ErrTransient = errors.New("transient store error")

	// ErrFatal marks a store error that retrying cannot fix. It surfaces
	// to the HTTP boundary as an opaque 500.
	ErrFatal = errors.New("fatal store error")

	// ErrStaleUpdate is returned by conditional writes when the row's
	// status no longer matches the status the caller observed. The caller
	// lost a race (typically against the sweeper) and must reload.
	ErrStaleUpdate = errors.New("conditional update found a different status")

	// Entity-specific "not found" errors

	// ErrTaskNotFound indicates that the requested task does not exist.
	ErrTaskNotFound = fmt.Errorf("%w: task", ErrNotFound)

	// ErrStateNotFound indicates that no state document exists for the type.
	ErrStateNotFound = fmt.Errorf("%w: state", ErrNotFound)

	// ErrMetricsNotFound indicates that no metrics document exists yet.
	ErrMetricsNotFound = fmt.Errorf("%w: metrics", ErrNotFound)

	// ErrPreferenceNotFound indicates that no provider preference is
	// recorded for the token.
	ErrPreferenceNotFound = fmt.Errorf("%w: provider preference", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransientError checks if the error is retryable.
func IsTransientError(err error) bool {
	return errors.Is(err, ErrTransient)
}

// StoreError is a custom error type for store-specific errors with
// additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "task", "metrics")
	Operation string // The operation that failed (e.g., "upsert", "load")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
