package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// PreferenceStore implements store.PreferenceStore on PostgreSQL, one row
// per token.
type PreferenceStore struct {
	db store.DBTX
}

// NewPreferenceStore creates a new PreferenceStore.
func NewPreferenceStore(db store.DBTX) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// WithTx returns a PreferenceStore bound to the given transaction.
func (s *PreferenceStore) WithTx(tx *sql.Tx) store.PreferenceStore {
	return &PreferenceStore{db: tx}
}

// UpsertPreference inserts or overwrites the preference for the token.
func (s *PreferenceStore) UpsertPreference(ctx context.Context, pref *domain.ProviderPreference) error {
	options, err := json.Marshal(pref.Options)
	if err != nil {
		return store.NewStoreError("preference", "upsert", "options failed to encode", err)
	}

	query := `
		INSERT INTO provider_preferences (token_id, provider, options, timestamp)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			options = EXCLUDED.options,
			timestamp = EXCLUDED.timestamp
	`

	err = withRetry(ctx, func(ctx context.Context) error {
		_, execErr := s.db.ExecContext(ctx, query,
			pref.TokenID, pref.Provider, options, pref.Timestamp.UTC())
		return mapError(execErr)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert provider preference: %w", err)
	}
	return nil
}

// GetPreference returns the preference recorded for the token.
func (s *PreferenceStore) GetPreference(ctx context.Context, tokenID int64) (*domain.ProviderPreference, error) {
	query := `SELECT token_id, provider, options, timestamp FROM provider_preferences WHERE token_id = $1`

	var pref *domain.ProviderPreference
	err := withRetry(ctx, func(ctx context.Context) error {
		var (
			decoded domain.ProviderPreference
			options []byte
		)
		scanErr := s.db.QueryRowContext(ctx, query, tokenID).Scan(
			&decoded.TokenID, &decoded.Provider, &options, &decoded.Timestamp)
		if scanErr != nil {
			return mapError(scanErr)
		}
		if len(options) > 0 {
			if decodeErr := json.Unmarshal(options, &decoded.Options); decodeErr != nil {
				return fmt.Errorf("%w: decoding options: %v", store.ErrFatal, decodeErr)
			}
		}
		pref = &decoded
		return nil
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, store.ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("failed to load provider preference: %w", err)
	}
	return pref, nil
}
