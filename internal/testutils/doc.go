// Package testutils provides in-memory doubles of the persistence
// contracts and the external collaborators (providers, chain) for unit
// tests that should not touch Postgres or the network.
package testutils
