package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tabbylabs/mintpipe/internal/domain"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// StateStore implements store.StateStore on PostgreSQL. One row per state
// type; the document lives in the state_data JSONB column.
type StateStore struct {
	db store.DBTX
}

// NewStateStore creates a new StateStore.
func NewStateStore(db store.DBTX) *StateStore {
	return &StateStore{db: db}
}

// WithTx returns a StateStore bound to the given transaction.
func (s *StateStore) WithTx(tx *sql.Tx) store.StateStore {
	return &StateStore{db: tx}
}

// SaveState upserts the state document for the given type.
func (s *StateStore) SaveState(ctx context.Context, stateType string, state *domain.ProcessState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return store.NewStoreError("state", "save", "state failed to encode", err)
	}

	query := `
		INSERT INTO state (type, state_data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (type) DO UPDATE SET
			state_data = EXCLUDED.state_data,
			updated_at = EXCLUDED.updated_at
	`

	err = withRetry(ctx, func(ctx context.Context) error {
		_, execErr := s.db.ExecContext(ctx, query, stateType, payload, time.Now().UTC())
		return mapError(execErr)
	})
	if err != nil {
		return fmt.Errorf("failed to save state %q: %w", stateType, err)
	}
	return nil
}

// LoadState returns the state document for the given type. A missing row is
// not an error: the provided default is returned instead.
func (s *StateStore) LoadState(ctx context.Context, stateType string, def *domain.ProcessState) (*domain.ProcessState, error) {
	query := `SELECT state_data FROM state WHERE type = $1`

	var state *domain.ProcessState
	err := withRetry(ctx, func(ctx context.Context) error {
		var payload []byte
		if scanErr := s.db.QueryRowContext(ctx, query, stateType).Scan(&payload); scanErr != nil {
			return mapError(scanErr)
		}
		decoded := &domain.ProcessState{}
		if decodeErr := json.Unmarshal(payload, decoded); decodeErr != nil {
			return fmt.Errorf("%w: decoding state: %v", store.ErrFatal, decodeErr)
		}
		state = decoded
		return nil
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return def, nil
		}
		return nil, fmt.Errorf("failed to load state %q: %w", stateType, err)
	}
	return state, nil
}
