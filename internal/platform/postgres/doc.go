// Package postgres provides the PostgreSQL implementation of store.TaskStore,
// the connection pool setup, and the embedded goose migrations that define
// the deck_tasks schema.
package postgres
