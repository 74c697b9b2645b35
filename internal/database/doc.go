// Package database owns the SQLite file shared by the job queue and the
// catalog: connection pragmas, the embedded schema with its version check,
// and busy-retry wrappers for statements and transactions.
package database
