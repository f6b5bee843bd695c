package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRulesClean(t *testing.T) {
	t.Parallel()

	rules := Rules{
		"size":  OneOf("small", "large"),
		"steps": NumberBetween(10, 150),
		"model": NonEmptyString(),
	}

	t.Run("strips unknown keys silently", func(t *testing.T) {
		t.Parallel()

		cleaned, err := rules.Clean(map[string]any{
			"size":       "small",
			"eleventail": true,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"size": "small"}, cleaned)
	})

	t.Run("rejects known key with invalid value", func(t *testing.T) {
		t.Parallel()

		_, err := rules.Clean(map[string]any{"size": "gigantic"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidOption)
		assert.Contains(t, err.Error(), "size")
	})

	t.Run("accepts int and float for numeric rules", func(t *testing.T) {
		t.Parallel()

		cleaned, err := rules.Clean(map[string]any{"steps": 30})
		require.NoError(t, err)
		assert.Equal(t, 30, cleaned["steps"])

		cleaned, err = rules.Clean(map[string]any{"steps": float64(50)})
		require.NoError(t, err)
		assert.Equal(t, float64(50), cleaned["steps"])
	})

	t.Run("rejects out of range number", func(t *testing.T) {
		t.Parallel()

		_, err := rules.Clean(map[string]any{"steps": 500})
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("rejects wrong type", func(t *testing.T) {
		t.Parallel()

		_, err := rules.Clean(map[string]any{"model": 42})
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("empty options clean to empty map", func(t *testing.T) {
		t.Parallel()

		cleaned, err := rules.Clean(nil)
		require.NoError(t, err)
		assert.Empty(t, cleaned)
	})
}

func TestRulesSupports(t *testing.T) {
	t.Parallel()

	rules := Rules{"quality": OneOf("standard", "hd")}

	assert.True(t, rules.Supports(map[string]any{"quality": "hd"}))
	assert.True(t, rules.Supports(map[string]any{"unrelated": "x"}))
	assert.False(t, rules.Supports(map[string]any{"quality": "ultra"}))
}

func TestPreferenceFlagsAreAccepted(t *testing.T) {
	t.Parallel()

	rules := withPreferenceRules(Rules{"size": OneOf("small")})

	cleaned, err := rules.Clean(map[string]any{
		"size":           "small",
		"prefer_quality": true,
		"prefer_cheap":   false,
	})
	require.NoError(t, err)
	assert.Equal(t, true, cleaned["prefer_quality"])
	assert.Equal(t, false, cleaned["prefer_cheap"])

	_, err = rules.Clean(map[string]any{"prefer_speed": "yes"})
	assert.ErrorIs(t, err, ErrInvalidOption)
}

func TestWeightsFromOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults when no flags set", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, DefaultWeights(), WeightsFromOptions(nil))
	})

	t.Run("flags boost their dimension", func(t *testing.T) {
		t.Parallel()

		w := WeightsFromOptions(map[string]any{
			"prefer_quality": true,
			"prefer_open":    true,
		})
		assert.Greater(t, w.Quality, DefaultWeights().Quality)
		assert.Greater(t, w.Open, DefaultWeights().Open)
		assert.Equal(t, DefaultWeights().Speed, w.Speed)
		assert.Equal(t, DefaultWeights().Cost, w.Cost)
	})
}
