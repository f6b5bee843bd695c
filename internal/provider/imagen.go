package provider

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const (
	// NameImagen identifies the Google Imagen adapter.
	NameImagen = "imagen"

	defaultImagenModel = "imagen-3.0-generate-002"
)

// ImagenAdapter generates artifacts through the Gemini API's Imagen
// models. Unlike the HTTP adapters it returns image bytes rather than a
// hosted URL, so Submit falls back to a data URI when no storage URI is
// present in the response.
type ImagenAdapter struct {
	logger *slog.Logger
	client *genai.Client
	rules  Rules
}

// NewImagenAdapter creates the adapter. It fails when apiKey is empty
// because the underlying client cannot be constructed without one; the
// caller should skip registration in that case.
func NewImagenAdapter(ctx context.Context, logger *slog.Logger, apiKey string) (*ImagenAdapter, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", NameImagen, ErrNotConfigured)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create imagen client: %w", err)
	}

	return &ImagenAdapter{
		logger: logger,
		client: client,
		rules: withPreferenceRules(Rules{
			"model":        NonEmptyString(),
			"aspect_ratio": OneOf("1:1", "4:3", "3:4", "16:9", "9:16"),
		}),
	}, nil
}

func (a *ImagenAdapter) Name() string { return NameImagen }

func (a *ImagenAdapter) Supports(options map[string]any) bool {
	return a.rules.Supports(options)
}

func (a *ImagenAdapter) CleanOptions(options map[string]any) (map[string]any, error) {
	return a.rules.Clean(options)
}

func (a *ImagenAdapter) Submit(ctx context.Context, prompt Prompt, options map[string]any, report ProgressFunc) (*Submission, error) {
	report = reportOrNoop(report)

	text := prompt.Text
	if prompt.Negative != "" {
		text = fmt.Sprintf("%s. Avoid: %s", text, prompt.Negative)
	}

	model := stringOption(options, "model", defaultImagenModel)
	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    stringOption(options, "aspect_ratio", "1:1"),
	}

	start := time.Now()
	report(20, "submitted to imagen")

	resp, err := a.client.Models.GenerateImages(ctx, model, text, config)
	if err != nil {
		// The SDK does not expose a stable error taxonomy; treat every
		// failure as transient so the dispatcher moves to the next provider.
		return nil, fmt.Errorf("%w: imagen: %v", ErrTransient, err)
	}
	report(50, "imagen generation accepted")

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, fmt.Errorf("imagen: %w", ErrNoArtifact)
	}

	image := resp.GeneratedImages[0].Image
	url := image.GCSURI
	if url == "" {
		if len(image.ImageBytes) == 0 {
			return nil, fmt.Errorf("imagen: %w", ErrNoArtifact)
		}
		mime := image.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		url = fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(image.ImageBytes))
	}
	report(80, "artifact received from imagen")

	latency := time.Since(start)
	a.logger.DebugContext(ctx, "imagen submission complete",
		"model", model,
		"latency_ms", latency.Milliseconds())

	return &Submission{
		ImageURL:     url,
		CostEstimate: a.Estimated(options).Cost,
		LatencyMs:    latency.Milliseconds(),
	}, nil
}

func (a *ImagenAdapter) Estimated(options map[string]any) Estimate {
	return Estimate{Cost: 0.03, TimeSeconds: 12}
}
