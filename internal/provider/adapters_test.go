package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// milestoneRecorder captures progress callbacks for assertions.
type milestoneRecorder struct {
	progress []int
	messages []string
}

func (m *milestoneRecorder) report(progress int, message string) {
	m.progress = append(m.progress, progress)
	m.messages = append(m.messages, message)
}

func TestDallESubmit(t *testing.T) {
	t.Parallel()

	t.Run("success returns artifact and milestones", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/images/generations", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var req dalleRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, 1, req.N)
			assert.Contains(t, req.Prompt, "a tabby cat")
			assert.Contains(t, req.Prompt, "Avoid: blurry")

			_ = json.NewEncoder(w).Encode(map[string]any{
				"created": 1700000000,
				"data":    []map[string]string{{"url": "https://img.test/cat.png"}},
			})
		}))
		defer server.Close()

		adapter := NewDallEAdapter(testLogger(), "test-key", server.URL)
		recorder := &milestoneRecorder{}

		sub, err := adapter.Submit(context.Background(),
			Prompt{Text: "a tabby cat", Negative: "blurry"},
			map[string]any{"size": "1024x1024"},
			recorder.report)
		require.NoError(t, err)

		assert.Equal(t, "https://img.test/cat.png", sub.ImageURL)
		assert.GreaterOrEqual(t, sub.LatencyMs, int64(0))
		assert.Equal(t, []int{20, 50, 80}, recorder.progress)
	})

	t.Run("503 is transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		adapter := NewDallEAdapter(testLogger(), "test-key", server.URL)
		_, err := adapter.Submit(context.Background(), Prompt{Text: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrTransient)
	})

	t.Run("429 is transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		adapter := NewDallEAdapter(testLogger(), "test-key", server.URL)
		_, err := adapter.Submit(context.Background(), Prompt{Text: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrTransient)
	})

	t.Run("400 is rejected", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		adapter := NewDallEAdapter(testLogger(), "test-key", server.URL)
		_, err := adapter.Submit(context.Background(), Prompt{Text: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrRejected)
	})

	t.Run("empty data is no artifact", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		}))
		defer server.Close()

		adapter := NewDallEAdapter(testLogger(), "test-key", server.URL)
		_, err := adapter.Submit(context.Background(), Prompt{Text: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrNoArtifact)
	})

	t.Run("missing key fails fast without a request", func(t *testing.T) {
		t.Parallel()

		adapter := NewDallEAdapter(testLogger(), "", "http://unreachable.invalid")
		_, err := adapter.Submit(context.Background(), Prompt{Text: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}

func TestStabilitySubmit(t *testing.T) {
	t.Parallel()

	t.Run("success uses engine path and negative prompt", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/generation/sd-test-engine/text-to-image", r.URL.Path)

			var req stabilityRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Len(t, req.TextPrompts, 2)
			assert.Equal(t, float64(1), req.TextPrompts[0].Weight)
			assert.Equal(t, float64(-1), req.TextPrompts[1].Weight)
			assert.Equal(t, "blurry", req.TextPrompts[1].Text)

			_ = json.NewEncoder(w).Encode(map[string]any{
				"artifacts": []map[string]string{{"url": "https://img.test/s.png", "finishReason": "SUCCESS"}},
			})
		}))
		defer server.Close()

		adapter := NewStabilityAdapter(testLogger(), "test-key", server.URL)
		sub, err := adapter.Submit(context.Background(),
			Prompt{Text: "a cat", Negative: "blurry"},
			map[string]any{"engine": "sd-test-engine", "steps": 40},
			nil)
		require.NoError(t, err)
		assert.Equal(t, "https://img.test/s.png", sub.ImageURL)
	})

	t.Run("server error is transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		adapter := NewStabilityAdapter(testLogger(), "test-key", server.URL)
		_, err := adapter.Submit(context.Background(), Prompt{Text: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrTransient)
	})
}

func TestHuggingFaceSubmit(t *testing.T) {
	t.Parallel()

	t.Run("success with model path and wait flag", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models/test-org/test-model", r.URL.Path)

			var req huggingFaceRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Options.WaitForModel)
			assert.Equal(t, "a cat", req.Inputs)

			_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://img.test/h.png"})
		}))
		defer server.Close()

		adapter := NewHuggingFaceAdapter(testLogger(), "test-key", server.URL)
		sub, err := adapter.Submit(context.Background(),
			Prompt{Text: "a cat"},
			map[string]any{"model": "test-org/test-model"},
			nil)
		require.NoError(t, err)
		assert.Equal(t, "https://img.test/h.png", sub.ImageURL)
	})

	t.Run("connection failure is transient", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // refuse connections

		adapter := NewHuggingFaceAdapter(testLogger(), "test-key", server.URL)
		_, err := adapter.Submit(context.Background(), Prompt{Text: "x"}, nil, nil)
		assert.ErrorIs(t, err, ErrTransient)
	})
}

func TestAdapterOptionValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		adapter Adapter
		valid   map[string]any
		invalid map[string]any
	}{
		{
			name:    "dall-e",
			adapter: NewDallEAdapter(testLogger(), "k", ""),
			valid:   map[string]any{"model": "dall-e-3", "quality": "hd", "style": "vivid"},
			invalid: map[string]any{"size": "2048x2048"},
		},
		{
			name:    "stability",
			adapter: NewStabilityAdapter(testLogger(), "k", ""),
			valid:   map[string]any{"style_preset": "anime", "cfg_scale": 7.5, "steps": 40},
			invalid: map[string]any{"cfg_scale": 99},
		},
		{
			name:    "huggingface",
			adapter: NewHuggingFaceAdapter(testLogger(), "k", ""),
			valid:   map[string]any{"model": "org/model", "guidance_scale": 7},
			invalid: map[string]any{"num_inference_steps": 0},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.True(t, tc.adapter.Supports(tc.valid))
			assert.False(t, tc.adapter.Supports(tc.invalid))

			cleaned, err := tc.adapter.CleanOptions(tc.valid)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, cleaned)

			_, err = tc.adapter.CleanOptions(tc.invalid)
			assert.ErrorIs(t, err, ErrInvalidOption)
		})
	}
}

func TestEstimated(t *testing.T) {
	t.Parallel()

	dalle := NewDallEAdapter(testLogger(), "k", "")
	assert.Equal(t, 0.04, dalle.Estimated(nil).Cost)
	assert.Equal(t, 0.08, dalle.Estimated(map[string]any{"quality": "hd"}).Cost)

	stability := NewStabilityAdapter(testLogger(), "k", "")
	assert.InDelta(t, 0.012, stability.Estimated(nil).Cost, 1e-9)

	hf := NewHuggingFaceAdapter(testLogger(), "k", "")
	assert.Zero(t, hf.Estimated(nil).Cost)
}
