package domain

import "time"

// ProviderPreference records the last provider and options a client chose
// for a token. It is created or overwritten on every enqueue and persists
// independently of the task, so a retry inherits the user's last choice.
// Stale preferences are harmless because every enqueue overwrites.
type ProviderPreference struct {
	TokenID   int64          `json:"token_id"`
	Provider  string         `json:"provider"`
	Options   map[string]any `json:"options,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewProviderPreference builds a preference stamped with the current time.
func NewProviderPreference(tokenID int64, provider string, options map[string]any) *ProviderPreference {
	return &ProviderPreference{
		TokenID:   tokenID,
		Provider:  provider,
		Options:   options,
		Timestamp: time.Now().UTC(),
	}
}
