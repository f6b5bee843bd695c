package mint

import (
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/provider"
)

// maxPromptInputLen caps any string-valued prompt input from a client.
const maxPromptInputLen = 2000

// breeds is the closed set of accepted breed values.
var breeds = map[string]bool{
	"Tabby":             true,
	"Siamese":           true,
	"Persian":           true,
	"Bengal":            true,
	"Sphynx":            true,
	"Ragdoll":           true,
	"Maine Coon":        true,
	"Calico":            true,
	"British Shorthair": true,
	"Scottish Fold":     true,
}

// ValidBreed reports whether the breed is a member of the closed set.
func ValidBreed(breed string) bool {
	return breeds[breed]
}

// SanitizePromptInput validates and normalizes one client-supplied prompt
// string: at most 2000 characters, control characters stripped, HTML
// entities escaped.
func SanitizePromptInput(input string) (string, error) {
	if utf8.RuneCountInString(input) > maxPromptInputLen {
		return "", fmt.Errorf("%w: prompt input exceeds %d characters",
			domain.ErrValidation, maxPromptInputLen)
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
	}

	return html.EscapeString(strings.TrimSpace(b.String())), nil
}

// BuildPrompt assembles the provider-agnostic generation prompt from the
// sanitized work item fields.
func BuildPrompt(item Item) provider.Prompt {
	text := fmt.Sprintf("A portrait of a %s cat, highly detailed digital art, studio lighting", item.Breed)
	if item.PromptExtras != "" {
		text = fmt.Sprintf("%s, %s", text, item.PromptExtras)
	}
	return provider.Prompt{
		Text:     text,
		Negative: item.NegativePrompt,
	}
}
