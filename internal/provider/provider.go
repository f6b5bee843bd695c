// Package provider defines the uniform contract over external
// image-generation services and the fallback policy used to pick between
// them. Each adapter hides one provider's request shape behind Submit and
// publishes an allow-list of the options it understands.
package provider

import (
	"context"
)

// Prompt is the provider-agnostic generation input assembled by the mint
// service. Negative may be empty; adapters that have no native negative
// prompt support fold it into the main text.
type Prompt struct {
	Text     string
	Negative string
}

// Submission is the successful outcome of a provider call.
type Submission struct {
	// ImageURL is the hosted artifact produced by the provider.
	ImageURL string

	// CostEstimate is the approximate cost of this call in USD.
	CostEstimate float64

	// LatencyMs is the wall-clock duration of the call.
	LatencyMs int64
}

// Estimate describes the expected cost and latency envelope of a provider
// for the given options, used for fallback scoring and reporting.
type Estimate struct {
	Cost        float64
	TimeSeconds int
}

// ProgressFunc receives milestone updates while a submission is in flight.
// Adapters call it with a progress percentage and a short status line;
// implementations must be cheap and must not block.
type ProgressFunc func(progress int, message string)

// Adapter is the uniform contract every image provider implements.
//
// CleanOptions strips unknown keys and rejects known keys with invalid
// values; it is called on the enqueue path so a bad request never reaches
// the dispatcher. Submit performs the actual generation and reports
// milestones through the callback.
type Adapter interface {
	Name() string
	Supports(options map[string]any) bool
	CleanOptions(options map[string]any) (map[string]any, error)
	Submit(ctx context.Context, prompt Prompt, options map[string]any, report ProgressFunc) (*Submission, error)
	Estimated(options map[string]any) Estimate
}

// noProgress is used when the caller does not care about milestones.
func noProgress(int, string) {}

// reportOrNoop returns report, or a no-op when report is nil, so adapters
// never have to nil-check the callback.
func reportOrNoop(report ProgressFunc) ProgressFunc {
	if report == nil {
		return noProgress
	}
	return report
}
