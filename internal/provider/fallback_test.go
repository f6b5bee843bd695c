package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAdapter is a minimal Adapter for registry tests.
type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string                      { return s.name }
func (s *stubAdapter) Supports(map[string]any) bool      { return true }
func (s *stubAdapter) Estimated(map[string]any) Estimate { return Estimate{} }

func (s *stubAdapter) CleanOptions(options map[string]any) (map[string]any, error) {
	return options, nil
}

func (s *stubAdapter) Submit(context.Context, Prompt, map[string]any, ProgressFunc) (*Submission, error) {
	return &Submission{ImageURL: "https://img.test/" + s.name}, nil
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(&stubAdapter{name: NameDallE}, Traits{Quality: 0.95, Speed: 0.6, Cost: 0.8})
	r.Register(&stubAdapter{name: NameStability}, Traits{Quality: 0.85, Speed: 0.8, Cost: 0.4})
	r.Register(&stubAdapter{name: NameHuggingFace}, Traits{Quality: 0.6, Speed: 0.4, Cost: 0.3, OpenSource: true})
	r.Register(&stubAdapter{name: NameImagen}, Traits{Quality: 0.9, Speed: 0.7, Cost: 0.6})
	return r
}

func orderNames(adapters []Adapter) []string {
	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	return names
}

func TestRegistryGet(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	adapter, err := r.Get(NameStability)
	require.NoError(t, err)
	assert.Equal(t, NameStability, adapter.Name())

	_, err = r.Get("midjourney")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestFallbackOrderPrimaryFirst(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	order := orderNames(r.FallbackOrder(NameStability, DefaultWeights()))
	require.Len(t, order, 4)
	assert.Equal(t, NameStability, order[0])
}

func TestFallbackOrderWeighted(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()

	t.Run("default weights rank stability right after the primary", func(t *testing.T) {
		t.Parallel()

		// The normalized cost term keeps huggingface's low cost from
		// outweighing stability's quality and speed.
		order := orderNames(r.FallbackOrder(NameDallE, DefaultWeights()))
		assert.Equal(t, []string{NameDallE, NameStability, NameHuggingFace, NameImagen}, order)
	})

	t.Run("cheap preference promotes huggingface", func(t *testing.T) {
		t.Parallel()

		w := WeightsFromOptions(map[string]any{"prefer_cheap": true})
		order := orderNames(r.FallbackOrder(NameDallE, w))
		assert.Equal(t, []string{NameDallE, NameHuggingFace, NameStability, NameImagen}, order)
	})

	t.Run("quality preference promotes dall-e", func(t *testing.T) {
		t.Parallel()

		w := WeightsFromOptions(map[string]any{"prefer_quality": true})
		order := orderNames(r.FallbackOrder(NameHuggingFace, w))
		assert.Equal(t, NameHuggingFace, order[0])
		assert.Contains(t, order, NameDallE)
	})
}

func TestFallbackOrderTiesByDeclaration(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	same := Traits{Quality: 0.5, Speed: 0.5, Cost: 0.5}
	r.Register(&stubAdapter{name: "alpha"}, same)
	r.Register(&stubAdapter{name: "beta"}, same)
	r.Register(&stubAdapter{name: "gamma"}, same)

	order := orderNames(r.FallbackOrder("beta", DefaultWeights()))
	assert.Equal(t, []string{"beta", "alpha", "gamma"}, order)
}

func TestRegisterReplacesInPlace(t *testing.T) {
	t.Parallel()

	r := newTestRegistry()
	r.Register(&stubAdapter{name: NameDallE}, Traits{Quality: 0.99, Speed: 0.6, Cost: 0.8})

	assert.Equal(t, []string{NameDallE, NameStability, NameHuggingFace, NameImagen}, r.Names())
}
