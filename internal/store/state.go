package store

import (
	"context"
	"database/sql"

	"github.com/tabbylabs/mintpipe/internal/domain"
)

// StateStore persists the small resumption documents keyed by state type.
// SaveState keys on the type, so repeated saves are idempotent.
type StateStore interface {
	// SaveState upserts the state document for the given type.
	SaveState(ctx context.Context, stateType string, state *domain.ProcessState) error

	// LoadState returns the state document for the given type, or the
	// provided default (never an error) when none exists yet.
	LoadState(ctx context.Context, stateType string, def *domain.ProcessState) (*domain.ProcessState, error)

	// WithTx returns a StateStore bound to the given transaction.
	WithTx(tx *sql.Tx) StateStore
}
