// Package daemon coordinates the long-running reelsub process.
//
// It ties the worker pool, the cleanup sweeper, and the HTTP API into a
// single lifecycle with flock-based locking to prevent multiple instances
// from claiming jobs out of the same database. The daemon runs preflight
// checks before starting workers, exposes a status snapshot that includes
// external dependency health, and can send a test notification.
//
// Keep orchestration logic here: job semantics live in dispatch and
// workflow while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
