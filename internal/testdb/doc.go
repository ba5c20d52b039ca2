// Package testdb provides helpers for PostgreSQL integration tests.
//
// Tests are skipped unless DATABASE_URL (or DECKGEN_TEST_DB_URL) is set.
// The schema is brought up to date with the embedded migrations before the
// connection is handed to the test. Task stores open their own short
// transactions, so tests isolate their data by using fresh owner IDs rather
// than wrapping everything in one rolled-back transaction.
package testdb
