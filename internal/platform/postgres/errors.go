package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tabbylabs/mintpipe/internal/store"
)

// mapError classifies a driver error into the store error taxonomy so
// callers can branch on errors.Is instead of driver internals.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", store.ErrTransient, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violations.
		if strings.HasPrefix(pgErr.Code, "23") {
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pgErr.Code)
		}
	}

	return fmt.Errorf("%w: %v", store.ErrFatal, err)
}

// isTransient reports whether the error is worth retrying: connection
// failures, serialization/deadlock aborts, and admin-initiated shutdowns.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57P01", // admin_shutdown
			"57P02", // crash_shutdown
			"57P03", // cannot_connect_now
			"53300": // too_many_connections
			return true
		}
		// Class 08: connection exceptions.
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
	}

	return false
}
