package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// healthCheckTimeout bounds the ping so a wedged pool cannot hang the
// health endpoint.
const healthCheckTimeout = 5 * time.Second

// HealthCheck verifies that the database connection is usable. It is called
// before serving /health and lazily before long-lived workers start.
func HealthCheck(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
