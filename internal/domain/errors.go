// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTaskID is returned when a task id does not match the
	// task_<ms-epoch>_<16 hex> shape.
	ErrInvalidTaskID = errors.New("invalid task ID")

	// ErrInvalidTokenID is returned when a token id is negative or above
	// the contract maximum.
	ErrInvalidTokenID = errors.New("invalid token ID")

	// ErrInvalidStatus is returned when a status value is not a member of
	// the closed status set.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrInvalidTransition is returned by Apply when a command is not
	// legal in the task's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTaskTerminal is returned when a command targets a task that has
	// already reached a terminal status.
	ErrTaskTerminal = errors.New("task already in a terminal status")

	// ErrProgressRegression is returned when a progress update would move
	// progress backwards within a single task.
	ErrProgressRegression = errors.New("progress cannot decrease")
)
