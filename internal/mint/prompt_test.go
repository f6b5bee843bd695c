package mint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidBreed(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidBreed("Tabby"))
	assert.True(t, ValidBreed("Maine Coon"))
	assert.False(t, ValidBreed("tabby"))
	assert.False(t, ValidBreed("Dragon"))
	assert.False(t, ValidBreed(""))
}

func TestSanitizePromptInput(t *testing.T) {
	t.Parallel()

	t.Run("strips control characters", func(t *testing.T) {
		t.Parallel()

		out, err := SanitizePromptInput("hello\x00wor\x1bld")
		require.NoError(t, err)
		assert.Equal(t, "helloworld", out)
	})

	t.Run("escapes html", func(t *testing.T) {
		t.Parallel()

		out, err := SanitizePromptInput(`<script>alert("x")</script>`)
		require.NoError(t, err)
		assert.NotContains(t, out, "<script>")
		assert.Contains(t, out, "&lt;script&gt;")
	})

	t.Run("rejects over-long input", func(t *testing.T) {
		t.Parallel()

		_, err := SanitizePromptInput(strings.Repeat("a", maxPromptInputLen+1))
		require.Error(t, err)

		out, err := SanitizePromptInput(strings.Repeat("a", maxPromptInputLen))
		require.NoError(t, err)
		assert.Len(t, out, maxPromptInputLen)
	})

	t.Run("length limit counts characters, not bytes", func(t *testing.T) {
		t.Parallel()

		// Four bytes per rune; the limit is on runes.
		_, err := SanitizePromptInput(strings.Repeat("🐈", maxPromptInputLen))
		require.NoError(t, err)

		_, err = SanitizePromptInput(strings.Repeat("🐈", maxPromptInputLen+1))
		require.Error(t, err)
	})

	t.Run("trims whitespace", func(t *testing.T) {
		t.Parallel()

		out, err := SanitizePromptInput("  padded  ")
		require.NoError(t, err)
		assert.Equal(t, "padded", out)
	})
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	prompt := BuildPrompt(Item{
		Breed:          "Bengal",
		PromptExtras:   "wearing a crown",
		NegativePrompt: "blurry, low quality",
	})

	assert.Contains(t, prompt.Text, "Bengal cat")
	assert.Contains(t, prompt.Text, "wearing a crown")
	assert.Equal(t, "blurry, low quality", prompt.Negative)

	plain := BuildPrompt(Item{Breed: "Tabby"})
	assert.Contains(t, plain.Text, "Tabby cat")
	assert.Empty(t, plain.Negative)
}
