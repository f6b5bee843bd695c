package store

import (
	"context"
	"database/sql"

	"github.com/tabbylabs/mintpipe/internal/domain"
)

// MetricsStore persists the aggregate counters document. Callers update the
// counters in the same transaction as the task write that triggered the
// change, via WithTx.
type MetricsStore interface {
	// UpsertMetrics writes the metrics document, keyed on the mint type.
	UpsertMetrics(ctx context.Context, metrics *domain.Metrics) error

	// LoadMetrics returns the metrics document, or a zero-value document
	// when none has been written yet.
	LoadMetrics(ctx context.Context) (*domain.Metrics, error)

	// WithTx returns a MetricsStore bound to the given transaction.
	WithTx(tx *sql.Tx) MetricsStore
}
