// Package redact provides utilities for redacting sensitive information from
// strings before they are logged or returned in error responses. This package
// helps prevent the accidental leakage of signing keys, provider API keys,
// chain addresses, connection strings, and artifact URIs that might be
// included in error messages.
package redact

import (
	"regexp"
	"strings"
)

// Constants for redaction placeholders
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
)

// Precompiled regex patterns
var (
	// Database connection strings
	dbConnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|db|database|connection)://[^@\s]+@`)

	// Credentials and tokens
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|bearer|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// 32-byte hex private keys, with or without an 0x prefix
	privKeyRegex = regexp.MustCompile(`(0x)?[0-9a-fA-F]{64}`)

	// 20-byte hex chain addresses
	addressRegex = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)

	// ipfs:// and https:// artifact URIs
	uriRegex = regexp.MustCompile(`(ipfs|https?)://[^\s'"]+`)

	patterns = []*regexp.Regexp{
		dbConnRegex, passwordRegex, apiKeyRegex, privKeyRegex,
	}

	patternPlaceholders = map[*regexp.Regexp]string{
		dbConnRegex:   RedactedCredentialPlaceholder,
		passwordRegex: RedactedCredentialPlaceholder,
		apiKeyRegex:   RedactedKeyPlaceholder,
		privKeyRegex:  RedactedKeyPlaceholder,
	}
)

// Truncate shortens a sensitive value to its first 6 and last 4 characters,
// the form used for addresses, keys, and URIs in log output. Values too short
// to truncate meaningfully are fully masked.
func Truncate(value string) string {
	if value == "" {
		return value
	}
	if len(value) <= 12 {
		return RedactionPlaceholder
	}
	return value[:6] + "…" + value[len(value)-4:]
}

// String redacts sensitive information from the input string. Full-entropy
// secrets (keys, credentials) are replaced by placeholders; addresses and
// URIs are truncated to first-6/last-4 so log lines stay correlatable.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, pattern := range patterns {
		placeholder := RedactionPlaceholder
		if ph, ok := patternPlaceholders[pattern]; ok {
			placeholder = ph
		}
		result = pattern.ReplaceAllString(result, placeholder)
	}

	result = addressRegex.ReplaceAllStringFunc(result, Truncate)
	result = uriRegex.ReplaceAllStringFunc(result, func(m string) string {
		// Keep the scheme readable; truncate only the opaque part.
		if i := strings.Index(m, "://"); i >= 0 {
			return m[:i+3] + Truncate(m[i+3:])
		}
		return Truncate(m)
	})

	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
