// Package postgres implements the store interfaces on PostgreSQL through
// database/sql with the pgx driver. Every operation classifies driver errors
// into transient and fatal kinds and retries the transient ones with
// exponential backoff before surfacing a failure.
package postgres
