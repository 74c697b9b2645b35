// Package logs reads daemon log output for the CLI.
//
// StreamClient pulls structured events from the daemon's /api/logs endpoint,
// including long-poll follow mode. When the daemon is not reachable, Tail
// reads the newest lines of the current JSON log file on disk instead.
package logs
