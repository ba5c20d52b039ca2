// Package store defines the persistence contract for deck generation tasks.
// Implementations live under internal/platform; callers depend only on the
// interfaces here so the orchestrator and HTTP layer stay independent of
// the database technology.
package store
