package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// NameStability identifies the Stability AI adapter.
	NameStability = "stability"

	defaultStabilityBaseURL = "https://api.stability.ai"
	defaultStabilityEngine  = "stable-diffusion-xl-1024-v1-0"
)

// StabilityAdapter submits prompts to Stability AI's text-to-image
// endpoint. It is the style-preset-driven option in the fallback chain.
type StabilityAdapter struct {
	logger  *slog.Logger
	apiKey  string
	baseURL string
	client  *http.Client
	rules   Rules
}

// NewStabilityAdapter creates the adapter. baseURL overrides the endpoint,
// mainly for tests.
func NewStabilityAdapter(logger *slog.Logger, apiKey, baseURL string) *StabilityAdapter {
	if baseURL == "" {
		baseURL = defaultStabilityBaseURL
	}
	return &StabilityAdapter{
		logger:  logger,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  newHTTPClient(),
		rules: withPreferenceRules(Rules{
			"engine": NonEmptyString(),
			"style_preset": OneOf(
				"3d-model", "analog-film", "anime", "cinematic", "comic-book",
				"digital-art", "enhance", "fantasy-art", "isometric", "line-art",
				"low-poly", "neon-punk", "origami", "photographic", "pixel-art",
			),
			"cfg_scale": NumberBetween(0, 35),
			"steps":     NumberBetween(10, 150),
		}),
	}
}

func (a *StabilityAdapter) Name() string { return NameStability }

func (a *StabilityAdapter) Supports(options map[string]any) bool {
	return a.rules.Supports(options)
}

func (a *StabilityAdapter) CleanOptions(options map[string]any) (map[string]any, error) {
	return a.rules.Clean(options)
}

type stabilityTextPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

type stabilityRequest struct {
	TextPrompts []stabilityTextPrompt `json:"text_prompts"`
	CfgScale    float64               `json:"cfg_scale,omitempty"`
	Steps       int                   `json:"steps,omitempty"`
	StylePreset string                `json:"style_preset,omitempty"`
	Samples     int                   `json:"samples"`
}

type stabilityResponse struct {
	Artifacts []struct {
		URL          string `json:"url"`
		FinishReason string `json:"finishReason"`
	} `json:"artifacts"`
}

func (a *StabilityAdapter) Submit(ctx context.Context, prompt Prompt, options map[string]any, report ProgressFunc) (*Submission, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", NameStability, ErrNotConfigured)
	}
	report = reportOrNoop(report)

	prompts := []stabilityTextPrompt{{Text: prompt.Text, Weight: 1}}
	if prompt.Negative != "" {
		prompts = append(prompts, stabilityTextPrompt{Text: prompt.Negative, Weight: -1})
	}

	payload := stabilityRequest{
		TextPrompts: prompts,
		CfgScale:    floatOption(options, "cfg_scale", 0),
		Steps:       int(floatOption(options, "steps", 0)),
		StylePreset: stringOption(options, "style_preset", ""),
		Samples:     1,
	}

	engine := stringOption(options, "engine", defaultStabilityEngine)
	url := fmt.Sprintf("%s/v1/generation/%s/text-to-image", a.baseURL, engine)
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}

	start := time.Now()
	report(20, "submitted to stability")

	var decoded stabilityResponse
	if err := postJSON(ctx, a.client, url, headers, payload, &decoded); err != nil {
		return nil, fmt.Errorf("stability submit failed: %w", err)
	}
	report(50, "stability generation accepted")

	if len(decoded.Artifacts) == 0 || decoded.Artifacts[0].URL == "" {
		return nil, fmt.Errorf("stability: %w", ErrNoArtifact)
	}
	report(80, "artifact received from stability")

	latency := time.Since(start)
	a.logger.DebugContext(ctx, "stability submission complete",
		"engine", engine,
		"latency_ms", latency.Milliseconds())

	return &Submission{
		ImageURL:     decoded.Artifacts[0].URL,
		CostEstimate: a.Estimated(options).Cost,
		LatencyMs:    latency.Milliseconds(),
	}, nil
}

func (a *StabilityAdapter) Estimated(options map[string]any) Estimate {
	// Pricing scales with step count; 30 steps is the engine default.
	steps := floatOption(options, "steps", 30)
	return Estimate{Cost: 0.0004 * steps, TimeSeconds: 8}
}
