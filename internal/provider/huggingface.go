package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// NameHuggingFace identifies the Hugging Face inference adapter.
	NameHuggingFace = "huggingface"

	defaultHuggingFaceBaseURL = "https://api-inference.huggingface.co"
	defaultHuggingFaceModel   = "stabilityai/stable-diffusion-xl-base-1.0"
)

// HuggingFaceAdapter submits prompts to a hosted inference endpoint
// serving an open-weights diffusion model. The endpoint is deployed with a
// JSON response wrapper that returns the hosted artifact URL.
type HuggingFaceAdapter struct {
	logger  *slog.Logger
	apiKey  string
	baseURL string
	client  *http.Client
	rules   Rules
}

// NewHuggingFaceAdapter creates the adapter. baseURL overrides the
// endpoint, mainly for tests.
func NewHuggingFaceAdapter(logger *slog.Logger, apiKey, baseURL string) *HuggingFaceAdapter {
	if baseURL == "" {
		baseURL = defaultHuggingFaceBaseURL
	}
	return &HuggingFaceAdapter{
		logger:  logger,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  newHTTPClient(),
		rules: withPreferenceRules(Rules{
			"model":               NonEmptyString(),
			"guidance_scale":      NumberBetween(0, 20),
			"num_inference_steps": NumberBetween(1, 100),
		}),
	}
}

func (a *HuggingFaceAdapter) Name() string { return NameHuggingFace }

func (a *HuggingFaceAdapter) Supports(options map[string]any) bool {
	return a.rules.Supports(options)
}

func (a *HuggingFaceAdapter) CleanOptions(options map[string]any) (map[string]any, error) {
	return a.rules.Clean(options)
}

type huggingFaceParameters struct {
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	GuidanceScale     float64 `json:"guidance_scale,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps,omitempty"`
}

type huggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
	Options    struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

type huggingFaceResponse struct {
	URL string `json:"url"`
}

func (a *HuggingFaceAdapter) Submit(ctx context.Context, prompt Prompt, options map[string]any, report ProgressFunc) (*Submission, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", NameHuggingFace, ErrNotConfigured)
	}
	report = reportOrNoop(report)

	payload := huggingFaceRequest{
		Inputs: prompt.Text,
		Parameters: huggingFaceParameters{
			NegativePrompt:    prompt.Negative,
			GuidanceScale:     floatOption(options, "guidance_scale", 0),
			NumInferenceSteps: int(floatOption(options, "num_inference_steps", 0)),
		},
	}
	// Cold models spin up on first request; waiting avoids a 503 loop.
	payload.Options.WaitForModel = true

	model := stringOption(options, "model", defaultHuggingFaceModel)
	url := fmt.Sprintf("%s/models/%s", a.baseURL, model)
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}

	start := time.Now()
	report(20, "submitted to huggingface")

	var decoded huggingFaceResponse
	if err := postJSON(ctx, a.client, url, headers, payload, &decoded); err != nil {
		return nil, fmt.Errorf("huggingface submit failed: %w", err)
	}
	report(50, "huggingface inference accepted")

	if decoded.URL == "" {
		return nil, fmt.Errorf("huggingface: %w", ErrNoArtifact)
	}
	report(80, "artifact received from huggingface")

	latency := time.Since(start)
	a.logger.DebugContext(ctx, "huggingface submission complete",
		"model", model,
		"latency_ms", latency.Milliseconds())

	return &Submission{
		ImageURL:     decoded.URL,
		CostEstimate: a.Estimated(options).Cost,
		LatencyMs:    latency.Milliseconds(),
	}, nil
}

func (a *HuggingFaceAdapter) Estimated(options map[string]any) Estimate {
	// Shared inference capacity is free at the metered tier but slow,
	// especially on a cold model.
	return Estimate{Cost: 0, TimeSeconds: 25}
}
