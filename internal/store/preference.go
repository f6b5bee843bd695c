package store

import (
	"context"
	"database/sql"

	"github.com/tabbylabs/mintpipe/internal/domain"
)

// PreferenceStore persists the per-token provider preference. Upserts key
// on the token id; every enqueue overwrites the previous row.
type PreferenceStore interface {
	// UpsertPreference inserts or overwrites the preference for the token.
	UpsertPreference(ctx context.Context, pref *domain.ProviderPreference) error

	// GetPreference returns the preference recorded for the token, or
	// ErrPreferenceNotFound.
	GetPreference(ctx context.Context, tokenID int64) (*domain.ProviderPreference, error)

	// WithTx returns a PreferenceStore bound to the given transaction.
	WithTx(tx *sql.Tx) PreferenceStore
}
