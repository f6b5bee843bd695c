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

// MetricsStore implements store.MetricsStore on PostgreSQL as a single-row
// document keyed by the mint metrics type.
type MetricsStore struct {
	db store.DBTX
}

// NewMetricsStore creates a new MetricsStore.
func NewMetricsStore(db store.DBTX) *MetricsStore {
	return &MetricsStore{db: db}
}

// WithTx returns a MetricsStore bound to the given transaction.
func (s *MetricsStore) WithTx(tx *sql.Tx) store.MetricsStore {
	return &MetricsStore{db: tx}
}

// UpsertMetrics writes the metrics document.
func (s *MetricsStore) UpsertMetrics(ctx context.Context, metrics *domain.Metrics) error {
	payload, err := json.Marshal(metrics)
	if err != nil {
		return store.NewStoreError("metrics", "upsert", "metrics failed to encode", err)
	}

	query := `
		INSERT INTO metrics (type, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (type) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	err = withRetry(ctx, func(ctx context.Context) error {
		_, execErr := s.db.ExecContext(ctx, query, domain.MetricsTypeMint, payload, time.Now().UTC())
		return mapError(execErr)
	})
	if err != nil {
		return fmt.Errorf("failed to upsert metrics: %w", err)
	}
	return nil
}

// LoadMetrics returns the metrics document, or a zero-value document when
// none has been written yet.
func (s *MetricsStore) LoadMetrics(ctx context.Context) (*domain.Metrics, error) {
	query := `SELECT data FROM metrics WHERE type = $1`

	var metrics *domain.Metrics
	err := withRetry(ctx, func(ctx context.Context) error {
		var payload []byte
		if scanErr := s.db.QueryRowContext(ctx, query, domain.MetricsTypeMint).Scan(&payload); scanErr != nil {
			return mapError(scanErr)
		}
		decoded := &domain.Metrics{}
		if decodeErr := json.Unmarshal(payload, decoded); decodeErr != nil {
			return fmt.Errorf("%w: decoding metrics: %v", store.ErrFatal, decodeErr)
		}
		metrics = decoded
		return nil
	})
	if err != nil {
		if store.IsNotFoundError(err) {
			return &domain.Metrics{}, nil
		}
		return nil, fmt.Errorf("failed to load metrics: %w", err)
	}
	return metrics, nil
}
