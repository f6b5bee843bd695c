package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// NameDallE identifies the DALL-E adapter.
	NameDallE = "dall-e"

	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultDallEModel    = "dall-e-3"
)

// DallEAdapter submits prompts to OpenAI's image generation endpoint.
type DallEAdapter struct {
	logger  *slog.Logger
	apiKey  string
	baseURL string
	client  *http.Client
	rules   Rules
}

// NewDallEAdapter creates the adapter. An empty apiKey is allowed; Submit
// then fails fast with ErrNotConfigured. baseURL overrides the OpenAI
// endpoint, mainly for tests.
func NewDallEAdapter(logger *slog.Logger, apiKey, baseURL string) *DallEAdapter {
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &DallEAdapter{
		logger:  logger,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  newHTTPClient(),
		rules: withPreferenceRules(Rules{
			"model":   OneOf("dall-e-2", "dall-e-3"),
			"size":    OneOf("256x256", "512x512", "1024x1024", "1792x1024", "1024x1792"),
			"quality": OneOf("standard", "hd"),
			"style":   OneOf("vivid", "natural"),
		}),
	}
}

func (a *DallEAdapter) Name() string { return NameDallE }

func (a *DallEAdapter) Supports(options map[string]any) bool {
	return a.rules.Supports(options)
}

func (a *DallEAdapter) CleanOptions(options map[string]any) (map[string]any, error) {
	return a.rules.Clean(options)
}

type dalleRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

type dalleResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func (a *DallEAdapter) Submit(ctx context.Context, prompt Prompt, options map[string]any, report ProgressFunc) (*Submission, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("%s: %w", NameDallE, ErrNotConfigured)
	}
	report = reportOrNoop(report)

	// DALL-E has no native negative prompt; fold it into the text.
	text := prompt.Text
	if prompt.Negative != "" {
		text = fmt.Sprintf("%s. Avoid: %s", text, prompt.Negative)
	}

	payload := dalleRequest{
		Model:   stringOption(options, "model", defaultDallEModel),
		Prompt:  text,
		N:       1,
		Size:    stringOption(options, "size", "1024x1024"),
		Quality: stringOption(options, "quality", ""),
		Style:   stringOption(options, "style", ""),
	}

	start := time.Now()
	report(20, "submitted to dall-e")

	var decoded dalleResponse
	url := a.baseURL + "/v1/images/generations"
	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	if err := postJSON(ctx, a.client, url, headers, payload, &decoded); err != nil {
		return nil, fmt.Errorf("dall-e submit failed: %w", err)
	}
	report(50, "dall-e generation accepted")

	if len(decoded.Data) == 0 || decoded.Data[0].URL == "" {
		return nil, fmt.Errorf("dall-e: %w", ErrNoArtifact)
	}
	report(80, "artifact received from dall-e")

	latency := time.Since(start)
	a.logger.DebugContext(ctx, "dall-e submission complete",
		"model", payload.Model,
		"latency_ms", latency.Milliseconds())

	return &Submission{
		ImageURL:     decoded.Data[0].URL,
		CostEstimate: a.Estimated(options).Cost,
		LatencyMs:    latency.Milliseconds(),
	}, nil
}

func (a *DallEAdapter) Estimated(options map[string]any) Estimate {
	cost := 0.04
	if stringOption(options, "quality", "standard") == "hd" {
		cost = 0.08
	}
	return Estimate{Cost: cost, TimeSeconds: 15}
}
