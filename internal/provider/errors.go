package provider

import "errors"

// Error definitions for the provider package.
var (
	// ErrUnknownProvider is returned when a name does not match any
	// registered adapter.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidOption is returned when a known option key carries a value
	// its predicate rejects.
	ErrInvalidOption = errors.New("invalid provider option")

	// ErrNotConfigured is returned by Submit when the adapter has no API
	// key. The deployment may legitimately configure only a subset of
	// providers; the dispatcher treats this like any other provider failure
	// and falls through to the next adapter.
	ErrNotConfigured = errors.New("provider API key is not configured")

	// ErrTransient marks rate limits, 5xx responses, and connection-level
	// failures. The dispatcher does not retry in place; it counts the
	// provider as failed and moves on.
	ErrTransient = errors.New("transient provider error")

	// ErrRejected marks a terminal non-2xx response for this request.
	ErrRejected = errors.New("provider rejected the request")

	// ErrNoArtifact is returned when a 2xx response carries no usable
	// artifact URL.
	ErrNoArtifact = errors.New("provider response contained no artifact")
)
